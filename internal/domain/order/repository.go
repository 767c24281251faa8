package order

import (
	"context"
	"time"

	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Filter narrows order listings
type Filter struct {
	shared.Filter
	UserID *uuid.UUID
	Status *Status
	From   *time.Time
	To     *time.Time
}

// Repository persists orders together with their items
type Repository interface {
	// Create inserts a new order and its items
	Create(ctx context.Context, o *Order) error

	// Update saves order state. It fails with ErrConcurrencyConflict when the
	// stored version differs from o.Version; on success o.Version is incremented.
	Update(ctx context.Context, o *Order) error

	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*Order, error)
	FindByNumber(ctx context.Context, number string) (*Order, error)
	FindByChargeID(ctx context.Context, chargeID string) (*Order, error)
	FindAll(ctx context.Context, filter Filter) ([]Order, int64, error)

	// FindAwaitingPayment returns orders with an open charge, least recently
	// checked first
	FindAwaitingPayment(ctx context.Context, limit int) ([]Order, error)

	// FindExpired returns unpaid orders whose reservation deadline is before now
	FindExpired(ctx context.Context, now time.Time, limit int) ([]Order, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
	SumRevenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}
