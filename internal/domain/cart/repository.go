package cart

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists carts, one per user
type Repository interface {
	// FindByUser returns the user's cart or shared.ErrNotFound
	FindByUser(ctx context.Context, userID uuid.UUID) (*Cart, error)

	// Save replaces the stored cart and its items
	Save(ctx context.Context, cart *Cart) error

	// DeleteByUser removes the user's cart
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
