package handler

import (
	"context"

	"github.com/gamekeys/backend/internal/application/admin"
	"github.com/gamekeys/backend/internal/application/identity"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserService is the admin user management API
type UserService interface {
	List(ctx context.Context, filter identity.UserListFilter) (*identity.UserListResult, error)
	Get(ctx context.Context, userID uuid.UUID) (*identity.UserDTO, error)
	Enable(ctx context.Context, userID uuid.UUID) (*identity.UserDTO, error)
	Disable(ctx context.Context, actorID, userID uuid.UUID) (*identity.UserDTO, error)
}

// DashboardService builds the admin dashboard summary
type DashboardService interface {
	GetSummary(ctx context.Context, filter admin.DashboardFilter) (*admin.DashboardResponse, error)
}

// AdminHandler handles the admin user and dashboard requests
type AdminHandler struct {
	BaseHandler
	userService      UserService
	dashboardService DashboardService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(userService UserService, dashboardService DashboardService) *AdminHandler {
	return &AdminHandler{
		userService:      userService,
		dashboardService: dashboardService,
	}
}

// ListUsers godoc
// @Summary      List users
// @Tags         admin-users
// @Security     BearerAuth
// @Param        search  query  string  false  "Email or name"
// @Param        role    query  string  false  "customer or admin"
// @Param        status  query  string  false  "active or disabled"
// @Router       /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var filter identity.UserListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	result, err := h.userService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Users, result.Total, result.Page, result.PageSize)
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	userID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.Get(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

func (h *AdminHandler) EnableUser(c *gin.Context) {
	userID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.Enable(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// DisableUser disables an account and revokes its tokens. Admins cannot disable themselves.
func (h *AdminHandler) DisableUser(c *gin.Context) {
	actorID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	userID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.Disable(c.Request.Context(), actorID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// Dashboard godoc
// @Summary      Dashboard summary
// @Description  Order counts by status, revenue of delivered orders in the period, low-stock products and background job health
// @Tags         admin-dashboard
// @Security     BearerAuth
// @Param        from                 query  string  false  "Period start (YYYY-MM-DD)"
// @Param        to                   query  string  false  "Period end (YYYY-MM-DD)"
// @Param        low_stock_threshold  query  int     false  "Available keys at or below this count"
// @Router       /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	var filter admin.DashboardFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	summary, err := h.dashboardService.GetSummary(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
