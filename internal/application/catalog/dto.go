package catalog

import (
	"time"

	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	Title       string          `json:"title" binding:"required,min=1,max=200"`
	Slug        string          `json:"slug" binding:"omitempty,max=220"`
	Description string          `json:"description" binding:"max=5000"`
	Platform    string          `json:"platform" binding:"required,oneof=steam epic gog xbox playstation nintendo other"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  *uuid.UUID      `json:"category_id"`
	Inactive    bool            `json:"inactive"`
}

// UpdateProductRequest represents a request to update a product.
// Nil fields are left unchanged.
type UpdateProductRequest struct {
	Title         *string          `json:"title" binding:"omitempty,min=1,max=200"`
	Slug          *string          `json:"slug" binding:"omitempty,min=1,max=220"`
	Description   *string          `json:"description" binding:"omitempty,max=5000"`
	Platform      *string          `json:"platform" binding:"omitempty,oneof=steam epic gog xbox playstation nintendo other"`
	Price         *decimal.Decimal `json:"price"`
	CategoryID    *uuid.UUID       `json:"category_id"`
	ClearCategory bool             `json:"clear_category"`
}

// ProductListFilter represents filter options for product list
type ProductListFilter struct {
	Search      string     `form:"search"`
	CategoryID  *uuid.UUID `form:"-"`        // set from the category_id query by the handler
	Category    string     `form:"category"` // slug
	Platform    string     `form:"platform" binding:"omitempty,oneof=steam epic gog xbox playstation nintendo other"`
	Status      string     `form:"status" binding:"omitempty,oneof=active inactive"`
	MinPrice    *float64   `form:"min_price" binding:"omitempty,min=0"`
	MaxPrice    *float64   `form:"max_price" binding:"omitempty,min=0"`
	OnlyInStock bool       `form:"in_stock"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string     `form:"order_by"`
	OrderDir    string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID             uuid.UUID       `json:"id"`
	CategoryID     *uuid.UUID      `json:"category_id"`
	Title          string          `json:"title"`
	Slug           string          `json:"slug"`
	Description    string          `json:"description"`
	Platform       string          `json:"platform"`
	Price          decimal.Decimal `json:"price"`
	PriceFormatted string          `json:"price_formatted"`
	Status         string          `json:"status"`
	Stock          int64           `json:"stock"`
	InStock        bool            `json:"in_stock"`
	CoverImageURL  string          `json:"cover_image_url,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// ToProductResponse converts a domain Product to ProductResponse.
// The cover URL is filled in by the service.
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:             p.ID,
		CategoryID:     p.CategoryID,
		Title:          p.Title,
		Slug:           p.Slug,
		Description:    p.Description,
		Platform:       string(p.Platform),
		Price:          p.Price,
		PriceFormatted: shared.FormatBRL(p.Price),
		Status:         string(p.Status),
		Stock:          p.AvailableKeys,
		InStock:        p.AvailableKeys > 0,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		Version:        p.Version,
	}
}

// CreateCategoryRequest represents a request to create a category
type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=500"`
	SortOrder   int    `json:"sort_order"`
}

// UpdateCategoryRequest represents a request to update a category
type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	SortOrder   *int    `json:"sort_order"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToCategoryResponse converts a domain Category to CategoryResponse
func ToCategoryResponse(c *catalog.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		SortOrder:   c.SortOrder,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// AddKeysRequest uploads activation codes for a product
type AddKeysRequest struct {
	Codes []string `json:"codes" binding:"required,min=1,max=1000,dive,required,max=255"`
}

// AddKeysResponse reports how many codes were stored
type AddKeysResponse struct {
	Added      int      `json:"added"`
	Duplicates []string `json:"duplicates"`
	Stock      int64    `json:"stock"`
}

// KeyListFilter represents filter options for listing a product's keys
type KeyListFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=available reserved sold"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// GameKeyResponse is an admin view of a key. The code is masked.
type GameKeyResponse struct {
	ID         uuid.UUID  `json:"id"`
	ProductID  uuid.UUID  `json:"product_id"`
	Code       string     `json:"code"`
	Status     string     `json:"status"`
	OrderID    *uuid.UUID `json:"order_id,omitempty"`
	ReservedAt *time.Time `json:"reserved_at,omitempty"`
	SoldAt     *time.Time `json:"sold_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ToGameKeyResponse converts a domain GameKey to GameKeyResponse
func ToGameKeyResponse(k *catalog.GameKey) GameKeyResponse {
	return GameKeyResponse{
		ID:         k.ID,
		ProductID:  k.ProductID,
		Code:       k.MaskedCode(),
		Status:     string(k.Status),
		OrderID:    k.OrderID,
		ReservedAt: k.ReservedAt,
		SoldAt:     k.SoldAt,
		CreatedAt:  k.CreatedAt,
	}
}

// KeyStockResponse summarizes key counts of a product
type KeyStockResponse struct {
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
	Sold      int64 `json:"sold"`
}

// CoverUploadRequest asks for a presigned cover upload URL
type CoverUploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	Size        int64  `json:"size" binding:"required,min=1"`
}

// CoverUploadResponse carries the presigned PUT URL
type CoverUploadResponse struct {
	UploadURL  string    `json:"upload_url"`
	StorageKey string    `json:"storage_key"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ConfirmCoverRequest confirms an upload made with a presigned URL
type ConfirmCoverRequest struct {
	StorageKey string `json:"storage_key" binding:"required"`
}
