package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddItemRequest adds keys of a product to the cart
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=10"`
}

// UpdateItemRequest sets the quantity of a cart line. Zero removes it.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0,max=10"`
}

// CartItemResponse is a cart line priced with the current catalog price
type CartItemResponse struct {
	ProductID          uuid.UUID       `json:"product_id"`
	Title              string          `json:"title"`
	Platform           string          `json:"platform,omitempty"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	UnitPriceFormatted string          `json:"unit_price_formatted"`
	Quantity           int             `json:"quantity"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	SubtotalFormatted  string          `json:"subtotal_formatted"`
	Stock              int64           `json:"stock"`
	Available          bool            `json:"available"`
	PriceChanged       bool            `json:"price_changed"`
}

// CartResponse is the customer's cart with totals
type CartResponse struct {
	Items          []CartItemResponse `json:"items"`
	ItemCount      int                `json:"item_count"`
	Total          decimal.Decimal    `json:"total"`
	TotalFormatted string             `json:"total_formatted"`
	UpdatedAt      *time.Time         `json:"updated_at,omitempty"`
}
