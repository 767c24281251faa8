package models

import (
	"time"

	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryModel is the persistence model for the Category domain entity.
type CategoryModel struct {
	AggregateModel
	Name        string `gorm:"type:varchar(100);not null"`
	Slug        string `gorm:"type:varchar(120);not null;uniqueIndex"`
	Description string `gorm:"type:text"`
	SortOrder   int    `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category entity.
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Name:              m.Name,
		Slug:              m.Slug,
		Description:       m.Description,
		SortOrder:         m.SortOrder,
	}
}

// FromDomain populates the persistence model from a domain Category entity.
func (m *CategoryModel) FromDomain(c *catalog.Category) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Name = c.Name
	m.Slug = c.Slug
	m.Description = c.Description
	m.SortOrder = c.SortOrder
}

// CategoryModelFromDomain creates a new persistence model from a domain Category entity.
func CategoryModelFromDomain(c *catalog.Category) *CategoryModel {
	m := &CategoryModel{}
	m.FromDomain(c)
	return m
}

// ProductModel is the persistence model for the Product domain entity.
// AvailableKeys is read-only and filled by a subquery over game_keys.
type ProductModel struct {
	AggregateModel
	CategoryID    *uuid.UUID            `gorm:"type:uuid;index"`
	Title         string                `gorm:"type:varchar(200);not null"`
	Slug          string                `gorm:"type:varchar(220);not null;uniqueIndex"`
	Description   string                `gorm:"type:text"`
	Platform      catalog.Platform      `gorm:"type:varchar(20);not null;index"`
	Price         decimal.Decimal       `gorm:"type:decimal(12,2);not null"`
	Status        catalog.ProductStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	CoverImageKey string                `gorm:"type:varchar(500)"`
	AvailableKeys int64                 `gorm:"->;-:migration"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.ToAggregateRoot(),
		CategoryID:        m.CategoryID,
		Title:             m.Title,
		Slug:              m.Slug,
		Description:       m.Description,
		Platform:          m.Platform,
		Price:             m.Price,
		Status:            m.Status,
		CoverImageKey:     m.CoverImageKey,
		AvailableKeys:     m.AvailableKeys,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.CategoryID = p.CategoryID
	m.Title = p.Title
	m.Slug = p.Slug
	m.Description = p.Description
	m.Platform = p.Platform
	m.Price = p.Price
	m.Status = p.Status
	m.CoverImageKey = p.CoverImageKey
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// GameKeyModel is the persistence model for the GameKey domain entity.
type GameKeyModel struct {
	BaseModel
	ProductID  uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_game_keys_product_code,priority:1"`
	Code       string            `gorm:"type:varchar(255);not null;uniqueIndex:idx_game_keys_product_code,priority:2"`
	Status     catalog.KeyStatus `gorm:"type:varchar(20);not null;default:'available';index"`
	OrderID    *uuid.UUID        `gorm:"type:uuid;index"`
	ReservedAt *time.Time
	SoldAt     *time.Time
}

// TableName returns the table name for GORM
func (GameKeyModel) TableName() string {
	return "game_keys"
}

// ToDomain converts the persistence model to a domain GameKey entity.
func (m *GameKeyModel) ToDomain() *catalog.GameKey {
	return &catalog.GameKey{
		BaseEntity: m.BaseModel.ToDomain(),
		ProductID:  m.ProductID,
		Code:       m.Code,
		Status:     m.Status,
		OrderID:    m.OrderID,
		ReservedAt: m.ReservedAt,
		SoldAt:     m.SoldAt,
	}
}

// GameKeyModelFromDomain creates a new persistence model from a domain GameKey entity.
func GameKeyModelFromDomain(k *catalog.GameKey) *GameKeyModel {
	m := &GameKeyModel{
		ProductID:  k.ProductID,
		Code:       k.Code,
		Status:     k.Status,
		OrderID:    k.OrderID,
		ReservedAt: k.ReservedAt,
		SoldAt:     k.SoldAt,
	}
	m.FromDomainBaseEntity(k.BaseEntity)
	return m
}
