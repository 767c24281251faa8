package handler

import (
	"context"

	"github.com/gamekeys/backend/internal/application/cart"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CartService is the shopping cart API of the authenticated customer
type CartService interface {
	Get(ctx context.Context, userID uuid.UUID) (*cart.CartResponse, error)
	AddItem(ctx context.Context, userID uuid.UUID, req cart.AddItemRequest) (*cart.CartResponse, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, req cart.UpdateItemRequest) (*cart.CartResponse, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*cart.CartResponse, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// CartHandler handles cart requests. Every route acts on the caller's own cart.
type CartHandler struct {
	BaseHandler
	cartService CartService
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// Get godoc
// @Summary      Get the cart with current prices and stock
// @Tags         cart
// @Security     BearerAuth
// @Router       /cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	result, err := h.cartService.Get(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// AddItem godoc
// @Summary      Add a product to the cart
// @Description  Quantities of the same product are merged, up to 10 per line
// @Tags         cart
// @Security     BearerAuth
// @Router       /cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	var req cart.AddItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.cartService.AddItem(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// UpdateItem sets the quantity of a line; zero removes it
func (h *CartHandler) UpdateItem(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	productID, ok := h.ParamUUID(c, "product_id")
	if !ok {
		return
	}
	var req cart.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.cartService.UpdateItem(c.Request.Context(), userID, productID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	productID, ok := h.ParamUUID(c, "product_id")
	if !ok {
		return
	}
	result, err := h.cartService.RemoveItem(c.Request.Context(), userID, productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func (h *CartHandler) Clear(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	if err := h.cartService.Clear(c.Request.Context(), userID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
