package handler

import (
	"context"

	"github.com/gamekeys/backend/internal/application/catalog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// KeyService manages the key inventory of a product
type KeyService interface {
	AddKeys(ctx context.Context, productID uuid.UUID, req catalog.AddKeysRequest) (*catalog.AddKeysResponse, error)
	ListKeys(ctx context.Context, productID uuid.UUID, filter catalog.KeyListFilter) ([]catalog.GameKeyResponse, int64, error)
	Stock(ctx context.Context, productID uuid.UUID) (*catalog.KeyStockResponse, error)
}

// KeyHandler exposes key inventory to admins
type KeyHandler struct {
	BaseHandler
	keyService KeyService
}

// NewKeyHandler creates a new KeyHandler
func NewKeyHandler(keyService KeyService) *KeyHandler {
	return &KeyHandler{keyService: keyService}
}

// AddKeys godoc
// @Summary      Upload game keys
// @Description  Adds keys to a product. Codes already stored are reported as duplicates.
// @Tags         admin-keys
// @Security     BearerAuth
// @Router       /admin/products/{id}/keys [post]
func (h *KeyHandler) AddKeys(c *gin.Context) {
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req catalog.AddKeysRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.keyService.AddKeys(c.Request.Context(), productID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

func (h *KeyHandler) ListKeys(c *gin.Context) {
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var filter catalog.KeyListFilter
	if !h.BindQuery(c, &filter) {
		return
	}

	keys, total, err := h.keyService.ListKeys(c.Request.Context(), productID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, keys, total, filter.Page, filter.PageSize)
}

func (h *KeyHandler) Stock(c *gin.Context) {
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	stock, err := h.keyService.Stock(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stock)
}
