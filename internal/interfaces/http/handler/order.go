package handler

import (
	"context"

	"github.com/gamekeys/backend/internal/application/order"
	"github.com/gamekeys/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderService is the order and checkout API used by OrderHandler
type OrderService interface {
	CreateFromCart(ctx context.Context, userID uuid.UUID) (*order.Response, error)
	CreateDirect(ctx context.Context, userID uuid.UUID, req order.CreateDirectRequest) (*order.Response, error)
	Get(ctx context.Context, actor order.Actor, orderID uuid.UUID) (*order.Response, error)
	List(ctx context.Context, userID uuid.UUID, filter order.ListFilter) ([]order.Response, int64, error)
	ListAll(ctx context.Context, filter order.ListFilter) ([]order.Response, int64, error)
	Cancel(ctx context.Context, actor order.Actor, orderID uuid.UUID, req order.CancelRequest) (*order.Response, error)
	GetKeys(ctx context.Context, actor order.Actor, orderID uuid.UUID) (*order.KeysResponse, error)
	StartCheckout(ctx context.Context, userID, orderID uuid.UUID) (*order.Response, error)
	GetPaymentStatus(ctx context.Context, actor order.Actor, orderID uuid.UUID) (*order.PaymentStatusResponse, error)
}

// OrderHandler handles order requests for customers and admins
type OrderHandler struct {
	BaseHandler
	orderService OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) actor(c *gin.Context) (order.Actor, bool) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return order.Actor{}, false
	}
	return order.Actor{UserID: userID, IsAdmin: middleware.IsAdmin(c)}, true
}

// CreateFromCart godoc
// @Summary      Place an order from the cart
// @Description  Reserves one key per unit and clears the cart. Fails with INSUFFICIENT_STOCK when keys are missing.
// @Tags         orders
// @Security     BearerAuth
// @Router       /orders [post]
func (h *OrderHandler) CreateFromCart(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	result, err := h.orderService.CreateFromCart(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// CreateDirect places a "buy now" order without touching the cart
func (h *OrderHandler) CreateDirect(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	var req order.CreateDirectRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.orderService.CreateDirect(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// List returns the caller's orders
func (h *OrderHandler) List(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	var filter order.ListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	orders, total, err := h.orderService.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, orders, total, filter.Page, filter.PageSize)
}

// ListAll godoc
// @Summary      List all orders
// @Tags         admin-orders
// @Security     BearerAuth
// @Param        status   query  string  false  "Order status"
// @Param        user_id  query  string  false  "Customer ID"
// @Param        from     query  string  false  "Created on or after (YYYY-MM-DD)"
// @Param        to       query  string  false  "Created on or before (YYYY-MM-DD)"
// @Router       /admin/orders [get]
func (h *OrderHandler) ListAll(c *gin.Context) {
	var filter order.ListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	userID, ok := h.QueryUUID(c, "user_id")
	if !ok {
		return
	}
	filter.UserID = userID

	orders, total, err := h.orderService.ListAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, orders, total, filter.Page, filter.PageSize)
}

// Get returns an order. Customers only see their own orders.
func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	orderID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.orderService.Get(c.Request.Context(), actor, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	orderID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req order.CancelRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}
	result, err := h.orderService.Cancel(c.Request.Context(), actor, orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetKeys godoc
// @Summary      Get the activation keys of a delivered order
// @Tags         orders
// @Security     BearerAuth
// @Router       /orders/{id}/keys [get]
func (h *OrderHandler) GetKeys(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	orderID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.orderService.GetKeys(c.Request.Context(), actor, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// StartCheckout godoc
// @Summary      Start PIX checkout
// @Description  Creates the PIX charge and returns the copia-e-cola payload and QR image.
// @Description  Calling it again while the charge is open returns the same charge.
// @Tags         checkout
// @Security     BearerAuth
// @Router       /orders/{id}/checkout/pix [post]
func (h *OrderHandler) StartCheckout(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	orderID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.orderService.StartCheckout(c.Request.Context(), userID, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetPaymentStatus godoc
// @Summary      Poll the payment status of an order
// @Tags         checkout
// @Security     BearerAuth
// @Router       /orders/{id}/payment [get]
func (h *OrderHandler) GetPaymentStatus(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	orderID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.orderService.GetPaymentStatus(c.Request.Context(), actor, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
