package models

import (
	"time"

	"github.com/gamekeys/backend/internal/domain/cart"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartModel is the persistence model for the Cart domain entity.
type CartModel struct {
	BaseModel
	UserID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Items  []CartItemModel `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (CartModel) TableName() string {
	return "carts"
}

// CartItemModel is one product line of a cart
type CartItemModel struct {
	CartID    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Title     string          `gorm:"type:varchar(200);not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity  int             `gorm:"not null"`
	AddedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartItemModel) TableName() string {
	return "cart_items"
}

// ToDomain converts the persistence model to a domain Cart entity.
func (m *CartModel) ToDomain() *cart.Cart {
	c := &cart.Cart{
		BaseEntity: m.BaseModel.ToDomain(),
		UserID:     m.UserID,
		Items:      make([]cart.Item, len(m.Items)),
	}
	for i, item := range m.Items {
		c.Items[i] = cart.Item{
			ProductID: item.ProductID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		}
	}
	return c
}

// CartModelFromDomain creates a new persistence model from a domain Cart entity.
func CartModelFromDomain(c *cart.Cart) *CartModel {
	m := &CartModel{
		UserID: c.UserID,
		Items:  make([]CartItemModel, len(c.Items)),
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	for i, item := range c.Items {
		m.Items[i] = CartItemModel{
			CartID:    c.ID,
			ProductID: item.ProductID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		}
	}
	return m
}
