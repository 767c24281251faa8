package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductServiceConfig holds configuration for the product service
type ProductServiceConfig struct {
	// CoverUploadExpiry is how long a presigned cover upload URL stays valid
	CoverUploadExpiry time.Duration
	// CoverDownloadExpiry is how long cover URLs in responses stay valid
	CoverDownloadExpiry time.Duration
	// MaxCoverSize is the largest accepted cover image in bytes
	MaxCoverSize int64
}

// DefaultProductServiceConfig returns the default configuration
func DefaultProductServiceConfig() ProductServiceConfig {
	return ProductServiceConfig{
		CoverUploadExpiry:   15 * time.Minute,
		CoverDownloadExpiry: time.Hour,
		MaxCoverSize:        5 << 20,
	}
}

// ProductService handles product-related business operations
type ProductService struct {
	productRepo    catalog.ProductRepository
	categoryRepo   catalog.CategoryRepository
	keyRepo        catalog.GameKeyRepository
	txManager      shared.TransactionManager
	storage        ObjectStorage
	eventPublisher shared.EventPublisher
	config         ProductServiceConfig
	logger         *zap.Logger
}

// NewProductService creates a new ProductService
func NewProductService(
	productRepo catalog.ProductRepository,
	categoryRepo catalog.CategoryRepository,
	keyRepo catalog.GameKeyRepository,
	txManager shared.TransactionManager,
	logger *zap.Logger,
) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		keyRepo:      keyRepo,
		txManager:    txManager,
		config:       DefaultProductServiceConfig(),
		logger:       logger,
	}
}

// SetConfig sets the service configuration
func (s *ProductService) SetConfig(config ProductServiceConfig) {
	s.config = config
}

// SetObjectStorage enables cover images
func (s *ProductService) SetObjectStorage(storage ObjectStorage) {
	s.storage = storage
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ProductService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create creates a new product
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest) (*ProductResponse, error) {
	product, err := catalog.NewProduct(req.Title, catalog.Platform(req.Platform), req.Price)
	if err != nil {
		return nil, err
	}
	if req.Description != "" {
		if err := product.Update(product.Title, req.Description, product.Platform); err != nil {
			return nil, err
		}
	}
	if req.Slug != "" {
		if err := product.SetSlug(req.Slug); err != nil {
			return nil, err
		}
	}
	if err := s.ensureSlugFree(ctx, product.Slug, nil); err != nil {
		return nil, err
	}
	if req.CategoryID != nil {
		if err := s.ensureCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		product.SetCategory(req.CategoryID)
	}
	if req.Inactive {
		if err := product.Deactivate(); err != nil {
			return nil, err
		}
	}

	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, product)

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("slug", product.Slug))

	return s.toResponse(ctx, product), nil
}

// Get retrieves a product by ID or slug. Inactive products are hidden unless
// includeInactive is set.
func (s *ProductService) Get(ctx context.Context, idOrSlug string, includeInactive bool) (*ProductResponse, error) {
	var (
		product *catalog.Product
		err     error
	)
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		product, err = s.productRepo.FindByID(ctx, id)
	} else {
		product, err = s.productRepo.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(idOrSlug)))
	}
	if err != nil {
		return nil, err
	}
	if !product.IsActive() && !includeInactive {
		return nil, shared.ErrNotFound
	}
	return s.toResponse(ctx, product), nil
}

// List retrieves products with filtering and pagination. Customers only see
// active products.
func (s *ProductService) List(ctx context.Context, filter ProductListFilter, includeInactive bool) ([]ProductResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := catalog.ProductFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   strings.TrimSpace(filter.Search),
		},
		CategoryID:  filter.CategoryID,
		Platform:    catalog.Platform(filter.Platform),
		OnlyInStock: filter.OnlyInStock,
	}
	if filter.Category != "" && filter.CategoryID == nil {
		category, err := s.categoryRepo.FindBySlug(ctx, filter.Category)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return []ProductResponse{}, 0, nil
			}
			return nil, 0, err
		}
		domainFilter.CategoryID = &category.ID
	}
	if filter.MinPrice != nil {
		minPrice := decimal.NewFromFloat(*filter.MinPrice)
		domainFilter.MinPrice = &minPrice
	}
	if filter.MaxPrice != nil {
		maxPrice := decimal.NewFromFloat(*filter.MaxPrice)
		domainFilter.MaxPrice = &maxPrice
	}
	switch {
	case !includeInactive:
		domainFilter.Status = catalog.ProductStatusActive
	case filter.Status != "":
		domainFilter.Status = catalog.ProductStatus(filter.Status)
	}

	products, total, err := s.productRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]ProductResponse, len(products))
	for i := range products {
		responses[i] = *s.toResponse(ctx, &products[i])
	}
	return responses, total, nil
}

// Update updates a product
func (s *ProductService) Update(ctx context.Context, productID uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	title := product.Title
	if req.Title != nil {
		title = *req.Title
	}
	description := product.Description
	if req.Description != nil {
		description = *req.Description
	}
	platform := product.Platform
	if req.Platform != nil {
		platform = catalog.Platform(*req.Platform)
	}
	if err := product.Update(title, description, platform); err != nil {
		return nil, err
	}

	if req.Slug != nil {
		if err := product.SetSlug(*req.Slug); err != nil {
			return nil, err
		}
		if err := s.ensureSlugFree(ctx, product.Slug, &product.ID); err != nil {
			return nil, err
		}
	}

	if req.Price != nil {
		if err := product.ChangePrice(*req.Price); err != nil {
			return nil, err
		}
	}

	switch {
	case req.ClearCategory:
		product.SetCategory(nil)
	case req.CategoryID != nil:
		if err := s.ensureCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		product.SetCategory(req.CategoryID)
	}

	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, product)

	return s.toResponse(ctx, product), nil
}

// Activate makes a product visible in the storefront
func (s *ProductService) Activate(ctx context.Context, productID uuid.UUID) (*ProductResponse, error) {
	return s.changeStatus(ctx, productID, (*catalog.Product).Activate)
}

// Deactivate hides a product from the storefront
func (s *ProductService) Deactivate(ctx context.Context, productID uuid.UUID) (*ProductResponse, error) {
	return s.changeStatus(ctx, productID, (*catalog.Product).Deactivate)
}

func (s *ProductService) changeStatus(ctx context.Context, productID uuid.UUID, change func(*catalog.Product) error) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := change(product); err != nil {
		return nil, err
	}
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	return s.toResponse(ctx, product), nil
}

// Delete removes a product and its unsold keys. Products with reserved or
// sold keys cannot be deleted; deactivate them instead.
func (s *ProductService) Delete(ctx context.Context, productID uuid.UUID) error {
	var coverKey string
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		product, err := s.productRepo.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		coverKey = product.CoverImageKey

		counts, err := s.keyRepo.CountByStatus(ctx, productID)
		if err != nil {
			return err
		}
		if counts[catalog.KeyStatusReserved] > 0 || counts[catalog.KeyStatusSold] > 0 {
			return shared.NewDomainError("PRODUCT_HAS_SALES",
				"Product has reserved or sold keys and cannot be deleted; deactivate it instead")
		}

		if _, err := s.keyRepo.DeleteAvailableByProduct(ctx, productID); err != nil {
			return err
		}
		return s.productRepo.Delete(ctx, productID)
	})
	if err != nil {
		return err
	}

	if coverKey != "" && s.storage != nil {
		if err := s.storage.DeleteObject(ctx, coverKey); err != nil {
			s.logger.Warn("Failed to delete cover image of deleted product",
				zap.String("product_id", productID.String()),
				zap.String("storage_key", coverKey),
				zap.Error(err))
		}
	}

	s.logger.Info("Product deleted", zap.String("product_id", productID.String()))
	return nil
}

func (s *ProductService) ensureSlugFree(ctx context.Context, slug string, excludeID *uuid.UUID) error {
	exists, err := s.productRepo.ExistsBySlug(ctx, slug, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Product with slug %q already exists", slug))
	}
	return nil
}

func (s *ProductService) ensureCategory(ctx context.Context, categoryID uuid.UUID) error {
	if _, err := s.categoryRepo.FindByID(ctx, categoryID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("INVALID_CATEGORY", "Category not found")
		}
		return err
	}
	return nil
}

// toResponse converts a product and signs its cover URL
func (s *ProductService) toResponse(ctx context.Context, product *catalog.Product) *ProductResponse {
	response := ToProductResponse(product)
	if product.CoverImageKey == "" || s.storage == nil {
		return &response
	}

	url, _, err := s.storage.GenerateDownloadURL(ctx, product.CoverImageKey, s.config.CoverDownloadExpiry)
	if err != nil {
		s.logger.Warn("Failed to sign cover image URL",
			zap.String("product_id", product.ID.String()),
			zap.Error(err))
		return &response
	}
	response.CoverImageURL = url
	return &response
}

// publishDomainEvents publishes all domain events from the product
func (s *ProductService) publishDomainEvents(ctx context.Context, product *catalog.Product) {
	if s.eventPublisher == nil {
		return
	}
	events := product.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Publish errors are logged by the event bus, not propagated
	_ = s.eventPublisher.Publish(ctx, events...)
	product.ClearDomainEvents()
}
