package catalog

import (
	"context"

	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductFilter narrows product listings
type ProductFilter struct {
	shared.Filter
	CategoryID  *uuid.UUID
	Platform    Platform
	Status      ProductStatus
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	OnlyInStock bool
}

// CategoryRepository defines the interface for category persistence
type CategoryRepository interface {
	// FindByID finds a category by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Category, error)

	// FindBySlug finds a category by its slug
	FindBySlug(ctx context.Context, slug string) (*Category, error)

	// FindAll returns every category ordered by sort order then name
	FindAll(ctx context.Context) ([]Category, error)

	// ExistsBySlug checks whether another category already uses the slug
	ExistsBySlug(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error)

	// Save creates or updates a category
	Save(ctx context.Context, category *Category) error

	// Delete deletes a category
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductRepository defines the interface for product persistence.
// Products returned by finders carry AvailableKeys.
type ProductRepository interface {
	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindBySlug finds a product by its slug
	FindBySlug(ctx context.Context, slug string) (*Product, error)

	// FindByIDs finds multiple products by their IDs
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// FindAll returns a page of products matching the filter and the total count
	FindAll(ctx context.Context, filter ProductFilter) ([]Product, int64, error)

	// FindLowStock returns active products with fewer than threshold available keys
	FindLowStock(ctx context.Context, threshold int64, limit int) ([]Product, error)

	// ExistsBySlug checks whether another product already uses the slug
	ExistsBySlug(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error)

	// CountByCategory counts products in a category
	CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)

	// Save creates or updates a product
	Save(ctx context.Context, product *Product) error

	// Delete deletes a product
	Delete(ctx context.Context, id uuid.UUID) error
}

// GameKeyRepository defines the interface for activation key persistence
type GameKeyRepository interface {
	// AddBatch inserts keys for a product, skipping codes that already exist.
	// Returns the number inserted and the skipped duplicate codes.
	AddBatch(ctx context.Context, keys []*GameKey) (int, []string, error)

	// FindByProduct lists keys of a product, optionally filtered by status
	FindByProduct(ctx context.Context, productID uuid.UUID, status KeyStatus, filter shared.Filter) ([]GameKey, int64, error)

	// FindByOrder returns the keys reserved or sold for an order
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]GameKey, error)

	// CountByStatus returns key counts per status for a product
	CountByStatus(ctx context.Context, productID uuid.UUID) (map[KeyStatus]int64, error)

	// Reserve locks qty available keys of a product for an order.
	// Returns ErrInsufficientStock when fewer than qty keys are available.
	Reserve(ctx context.Context, productID, orderID uuid.UUID, qty int) ([]GameKey, error)

	// ReleaseByOrder returns the reserved keys of an order to the available pool
	ReleaseByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)

	// MarkSoldByOrder marks the reserved keys of an order as sold
	MarkSoldByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)

	// DeleteAvailableByProduct removes the unsold keys of a product
	DeleteAvailableByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}
