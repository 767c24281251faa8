package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamekeys/backend/internal/domain/order"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/gamekeys/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) withItems(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("title ASC")
	})
}

// Create inserts a new order and its items
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	if err := conn(ctx, r.db).Create(models.OrderModelFromDomain(o)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update saves order state guarded by the optimistic lock version.
// Items are immutable once the order exists and are never rewritten.
func (r *GormOrderRepository) Update(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	model.Version = o.Version + 1
	model.Items = nil

	result := conn(ctx, r.db).Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", o.ID, o.Version).
		Select("*").
		Omit("id", "created_at", "number", "user_id", clause.Associations).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := conn(ctx, r.db).Model(&models.OrderModel{}).Where("id = ?", o.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return fmt.Errorf("%w: order %s at version %d", shared.ErrConcurrencyConflict, o.Number, o.Version)
	}

	o.Version++
	return nil
}

// FindByID finds an order by ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.first(r.withItems(ctx).Where("id = ?", id))
}

// FindByIDForUser finds an order by ID only if it belongs to the user
func (r *GormOrderRepository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*order.Order, error) {
	return r.first(r.withItems(ctx).Where("id = ? AND user_id = ?", id, userID))
}

// FindByNumber finds an order by its public number
func (r *GormOrderRepository) FindByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.first(r.withItems(ctx).Where("number = ?", number))
}

// FindByChargeID finds the order a provider charge belongs to
func (r *GormOrderRepository) FindByChargeID(ctx context.Context, chargeID string) (*order.Order, error) {
	if chargeID == "" {
		return nil, shared.ErrNotFound
	}
	return r.first(r.withItems(ctx).Where("charge_id = ?", chargeID))
}

func (r *GormOrderRepository) first(query *gorm.DB) (*order.Order, error) {
	var model models.OrderModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns a page of orders and the total count
func (r *GormOrderRepository) FindAll(ctx context.Context, filter order.Filter) ([]order.Order, int64, error) {
	query := conn(ctx, r.db).Model(&models.OrderModel{})
	if filter.Search != "" {
		query = query.Where("number LIKE ?", "%"+filter.Search+"%")
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orderModels []models.OrderModel
	err := query.
		Preload("Items").
		Order(orderClause(filter.OrderBy, filter.OrderDir, OrderSortFields, "created_at")).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&orderModels).Error
	if err != nil {
		return nil, 0, err
	}
	return toOrders(orderModels), total, nil
}

// FindAwaitingPayment returns orders with an open charge, never-checked
// orders first and then by last check time
func (r *GormOrderRepository) FindAwaitingPayment(ctx context.Context, limit int) ([]order.Order, error) {
	var orderModels []models.OrderModel
	err := r.withItems(ctx).
		Where("status = ? AND charge_id <> ''", order.StatusAwaitingPayment).
		Order("payment_checked_at IS NOT NULL, payment_checked_at ASC, created_at ASC").
		Limit(limit).
		Find(&orderModels).Error
	if err != nil {
		return nil, err
	}
	return toOrders(orderModels), nil
}

// FindExpired returns unpaid orders whose reservation deadline is before now
func (r *GormOrderRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]order.Order, error) {
	var orderModels []models.OrderModel
	err := r.withItems(ctx).
		Where("status IN ? AND expires_at < ?", holdingStatuses(), now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&orderModels).Error
	if err != nil {
		return nil, err
	}
	return toOrders(orderModels), nil
}

// CountByStatus returns the number of orders in every status
func (r *GormOrderRepository) CountByStatus(ctx context.Context) (map[order.Status]int64, error) {
	var rows []struct {
		Status order.Status
		Count  int64
	}
	err := conn(ctx, r.db).Model(&models.OrderModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[order.Status]int64, len(order.AllStatuses()))
	for _, s := range order.AllStatuses() {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// SumRevenue totals paid and delivered orders whose payment landed in [from, to)
func (r *GormOrderRepository) SumRevenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := conn(ctx, r.db).Model(&models.OrderModel{}).
		Select("SUM(total)").
		Where("status IN ? AND paid_at >= ? AND paid_at < ?",
			[]order.Status{order.StatusPaid, order.StatusDelivered}, from, to).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func holdingStatuses() []order.Status {
	var statuses []order.Status
	for _, s := range order.AllStatuses() {
		if s.HoldsReservation() {
			statuses = append(statuses, s)
		}
	}
	return statuses
}

func toOrders(orderModels []models.OrderModel) []order.Order {
	orders := make([]order.Order, len(orderModels))
	for i, model := range orderModels {
		orders[i] = *model.ToDomain()
	}
	return orders
}

var _ order.Repository = (*GormOrderRepository)(nil)
