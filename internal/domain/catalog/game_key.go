package catalog

import (
	"strings"
	"time"

	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// KeyStatus is the lifecycle state of a single activation key
type KeyStatus string

const (
	KeyStatusAvailable KeyStatus = "available"
	KeyStatusReserved  KeyStatus = "reserved"
	KeyStatusSold      KeyStatus = "sold"
)

// IsValid checks if the key status is known
func (s KeyStatus) IsValid() bool {
	switch s {
	case KeyStatusAvailable, KeyStatusReserved, KeyStatusSold:
		return true
	}
	return false
}

// GameKey is one redeemable activation code for a product.
// A key is reserved by exactly one order and becomes sold when that order is delivered.
type GameKey struct {
	shared.BaseEntity
	ProductID  uuid.UUID
	Code       string
	Status     KeyStatus
	OrderID    *uuid.UUID
	ReservedAt *time.Time
	SoldAt     *time.Time
}

// NewGameKey creates an available key for a product
func NewGameKey(productID uuid.UUID, code string) (*GameKey, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_KEY", "Key code cannot be empty")
	}
	if len(code) > 255 {
		return nil, shared.NewDomainError("INVALID_KEY", "Key code cannot exceed 255 characters")
	}

	return &GameKey{
		BaseEntity: shared.NewBaseEntity(),
		ProductID:  productID,
		Code:       code,
		Status:     KeyStatusAvailable,
	}, nil
}

// Reserve assigns the key to an order
func (k *GameKey) Reserve(orderID uuid.UUID) error {
	if k.Status != KeyStatusAvailable {
		return shared.NewDomainError("KEY_NOT_AVAILABLE", "Key is not available")
	}
	now := time.Now()
	k.Status = KeyStatusReserved
	k.OrderID = &orderID
	k.ReservedAt = &now
	k.UpdatedAt = now
	return nil
}

// Release puts a reserved key back on sale
func (k *GameKey) Release() error {
	if k.Status != KeyStatusReserved {
		return shared.NewDomainError("KEY_NOT_RESERVED", "Key is not reserved")
	}
	k.Status = KeyStatusAvailable
	k.OrderID = nil
	k.ReservedAt = nil
	k.UpdatedAt = time.Now()
	return nil
}

// MarkSold finalizes a reserved key
func (k *GameKey) MarkSold() error {
	if k.Status != KeyStatusReserved {
		return shared.NewDomainError("KEY_NOT_RESERVED", "Key is not reserved")
	}
	now := time.Now()
	k.Status = KeyStatusSold
	k.SoldAt = &now
	k.UpdatedAt = now
	return nil
}

// MaskedCode hides all but the last four characters, for admin listings
func (k *GameKey) MaskedCode() string {
	if len(k.Code) <= 4 {
		return strings.Repeat("*", len(k.Code))
	}
	return strings.Repeat("*", len(k.Code)-4) + k.Code[len(k.Code)-4:]
}
