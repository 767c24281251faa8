package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/gamekeys/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const keyInsertBatchSize = 500

// GormGameKeyRepository implements GameKeyRepository using GORM
type GormGameKeyRepository struct {
	db *gorm.DB
}

// NewGormGameKeyRepository creates a new GormGameKeyRepository
func NewGormGameKeyRepository(db *gorm.DB) *GormGameKeyRepository {
	return &GormGameKeyRepository{db: db}
}

// AddBatch inserts keys, skipping codes that already exist for the product
// or repeat inside the batch
func (r *GormGameKeyRepository) AddBatch(ctx context.Context, keys []*catalog.GameKey) (int, []string, error) {
	if len(keys) == 0 {
		return 0, nil, nil
	}

	byProduct := make(map[uuid.UUID][]string)
	for _, k := range keys {
		byProduct[k.ProductID] = append(byProduct[k.ProductID], k.Code)
	}

	existing := make(map[string]bool)
	for productID, codes := range byProduct {
		var found []string
		err := conn(ctx, r.db).Model(&models.GameKeyModel{}).
			Where("product_id = ? AND code IN ?", productID, codes).
			Pluck("code", &found).Error
		if err != nil {
			return 0, nil, err
		}
		for _, code := range found {
			existing[productID.String()+"/"+code] = true
		}
	}

	var skipped []string
	toInsert := make([]*models.GameKeyModel, 0, len(keys))
	for _, k := range keys {
		id := k.ProductID.String() + "/" + k.Code
		if existing[id] {
			skipped = append(skipped, k.Code)
			continue
		}
		existing[id] = true
		toInsert = append(toInsert, models.GameKeyModelFromDomain(k))
	}
	if len(toInsert) == 0 {
		return 0, skipped, nil
	}

	result := conn(ctx, r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(toInsert, keyInsertBatchSize)
	if result.Error != nil {
		return 0, nil, result.Error
	}
	return int(result.RowsAffected), skipped, nil
}

// FindByProduct lists keys of a product, optionally filtered by status
func (r *GormGameKeyRepository) FindByProduct(ctx context.Context, productID uuid.UUID, status catalog.KeyStatus, filter shared.Filter) ([]catalog.GameKey, int64, error) {
	query := conn(ctx, r.db).Model(&models.GameKeyModel{}).Where("product_id = ?", productID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var keyModels []models.GameKeyModel
	err := query.
		Order(orderClause(filter.OrderBy, filter.OrderDir, GameKeySortFields, "created_at")).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&keyModels).Error
	if err != nil {
		return nil, 0, err
	}
	return toGameKeys(keyModels), total, nil
}

// FindByOrder returns the keys reserved or sold for an order
func (r *GormGameKeyRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]catalog.GameKey, error) {
	var keyModels []models.GameKeyModel
	err := conn(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("product_id ASC, created_at ASC").
		Find(&keyModels).Error
	if err != nil {
		return nil, err
	}
	return toGameKeys(keyModels), nil
}

// CountByStatus returns key counts per status for a product
func (r *GormGameKeyRepository) CountByStatus(ctx context.Context, productID uuid.UUID) (map[catalog.KeyStatus]int64, error) {
	var rows []struct {
		Status catalog.KeyStatus
		Count  int64
	}
	err := conn(ctx, r.db).Model(&models.GameKeyModel{}).
		Select("status, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[catalog.KeyStatus]int64{
		catalog.KeyStatusAvailable: 0,
		catalog.KeyStatusReserved:  0,
		catalog.KeyStatusSold:      0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Reserve locks qty available keys of a product for an order. Rows locked by
// concurrent checkouts are skipped instead of waited on. Must run inside a
// transaction for the row locks to hold until commit.
func (r *GormGameKeyRepository) Reserve(ctx context.Context, productID, orderID uuid.UUID, qty int) ([]catalog.GameKey, error) {
	if qty <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}

	var keyModels []models.GameKeyModel
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("product_id = ? AND status = ?", productID, catalog.KeyStatusAvailable).
		Order("created_at ASC").
		Limit(qty).
		Find(&keyModels).Error
	if err != nil {
		return nil, err
	}
	if len(keyModels) < qty {
		return nil, insufficientStock(productID, qty, len(keyModels))
	}

	ids := make([]uuid.UUID, len(keyModels))
	for i := range keyModels {
		ids[i] = keyModels[i].ID
	}

	now := time.Now()
	result := conn(ctx, r.db).Model(&models.GameKeyModel{}).
		Where("id IN ? AND status = ?", ids, catalog.KeyStatusAvailable).
		Updates(map[string]any{
			"status":      catalog.KeyStatusReserved,
			"order_id":    orderID,
			"reserved_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected != int64(qty) {
		return nil, insufficientStock(productID, qty, int(result.RowsAffected))
	}

	keys := toGameKeys(keyModels)
	for i := range keys {
		keys[i].Status = catalog.KeyStatusReserved
		keys[i].OrderID = &orderID
		keys[i].ReservedAt = &now
		keys[i].UpdatedAt = now
	}
	return keys, nil
}

// ReleaseByOrder returns the reserved keys of an order to the available pool
func (r *GormGameKeyRepository) ReleaseByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).Model(&models.GameKeyModel{}).
		Where("order_id = ? AND status = ?", orderID, catalog.KeyStatusReserved).
		Updates(map[string]any{
			"status":      catalog.KeyStatusAvailable,
			"order_id":    nil,
			"reserved_at": nil,
			"updated_at":  time.Now(),
		})
	return result.RowsAffected, result.Error
}

// MarkSoldByOrder marks the reserved keys of an order as sold
func (r *GormGameKeyRepository) MarkSoldByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	now := time.Now()
	result := conn(ctx, r.db).Model(&models.GameKeyModel{}).
		Where("order_id = ? AND status = ?", orderID, catalog.KeyStatusReserved).
		Updates(map[string]any{
			"status":     catalog.KeyStatusSold,
			"sold_at":    now,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// DeleteAvailableByProduct removes the unsold keys of a product
func (r *GormGameKeyRepository) DeleteAvailableByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).
		Where("product_id = ? AND status = ?", productID, catalog.KeyStatusAvailable).
		Delete(&models.GameKeyModel{})
	return result.RowsAffected, result.Error
}

func insufficientStock(productID uuid.UUID, want, got int) error {
	return fmt.Errorf("%w: product %s needs %d keys, %d available",
		shared.ErrInsufficientStock, productID, want, got)
}

func toGameKeys(keyModels []models.GameKeyModel) []catalog.GameKey {
	keys := make([]catalog.GameKey, len(keyModels))
	for i, model := range keyModels {
		keys[i] = *model.ToDomain()
	}
	return keys
}

var _ catalog.GameKeyRepository = (*GormGameKeyRepository)(nil)
