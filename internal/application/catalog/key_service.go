package catalog

import (
	"context"
	"strings"

	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KeyService manages the activation key stock of products
type KeyService struct {
	productRepo catalog.ProductRepository
	keyRepo     catalog.GameKeyRepository
	logger      *zap.Logger
}

// NewKeyService creates a new KeyService
func NewKeyService(
	productRepo catalog.ProductRepository,
	keyRepo catalog.GameKeyRepository,
	logger *zap.Logger,
) *KeyService {
	return &KeyService{
		productRepo: productRepo,
		keyRepo:     keyRepo,
		logger:      logger,
	}
}

// AddKeys stores new codes for a product. Codes repeated in the request or
// already stored for the product are skipped and reported as duplicates.
func (s *KeyService) AddKeys(ctx context.Context, productID uuid.UUID, req AddKeysRequest) (*AddKeysResponse, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	keys := make([]*catalog.GameKey, 0, len(req.Codes))
	seen := make(map[string]bool, len(req.Codes))
	duplicates := make([]string, 0)
	for _, code := range req.Codes {
		code = strings.TrimSpace(code)
		if seen[code] {
			duplicates = append(duplicates, code)
			continue
		}
		seen[code] = true

		key, err := catalog.NewGameKey(productID, code)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	added, skipped, err := s.keyRepo.AddBatch(ctx, keys)
	if err != nil {
		return nil, err
	}
	duplicates = append(duplicates, skipped...)

	counts, err := s.keyRepo.CountByStatus(ctx, productID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Keys added",
		zap.String("product_id", productID.String()),
		zap.Int("added", added),
		zap.Int("duplicates", len(duplicates)))

	return &AddKeysResponse{
		Added:      added,
		Duplicates: duplicates,
		Stock:      counts[catalog.KeyStatusAvailable],
	}, nil
}

// ListKeys lists a product's keys with masked codes
func (s *KeyService) ListKeys(ctx context.Context, productID uuid.UUID, filter KeyListFilter) ([]GameKeyResponse, int64, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, 0, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}

	keys, total, err := s.keyRepo.FindByProduct(ctx, productID, catalog.KeyStatus(filter.Status), shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
	})
	if err != nil {
		return nil, 0, err
	}

	responses := make([]GameKeyResponse, len(keys))
	for i := range keys {
		responses[i] = ToGameKeyResponse(&keys[i])
	}
	return responses, total, nil
}

// Stock returns key counts per status for a product
func (s *KeyService) Stock(ctx context.Context, productID uuid.UUID) (*KeyStockResponse, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	counts, err := s.keyRepo.CountByStatus(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &KeyStockResponse{
		Available: counts[catalog.KeyStatusAvailable],
		Reserved:  counts[catalog.KeyStatusReserved],
		Sold:      counts[catalog.KeyStatusSold],
	}, nil
}
