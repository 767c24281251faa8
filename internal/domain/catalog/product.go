package catalog

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// IsValid checks if the status is a known value
func (s ProductStatus) IsValid() bool {
	return s == ProductStatusActive || s == ProductStatusInactive
}

// Platform is the store/launcher a key is redeemed on
type Platform string

const (
	PlatformSteam       Platform = "steam"
	PlatformEpic        Platform = "epic"
	PlatformGOG         Platform = "gog"
	PlatformXbox        Platform = "xbox"
	PlatformPlayStation Platform = "playstation"
	PlatformNintendo    Platform = "nintendo"
	PlatformOther       Platform = "other"
)

// AllPlatforms returns every supported platform
func AllPlatforms() []Platform {
	return []Platform{
		PlatformSteam,
		PlatformEpic,
		PlatformGOG,
		PlatformXbox,
		PlatformPlayStation,
		PlatformNintendo,
		PlatformOther,
	}
}

// IsValid checks if the platform is supported
func (p Platform) IsValid() bool {
	for _, known := range AllPlatforms() {
		if p == known {
			return true
		}
	}
	return false
}

// Product is a sellable game title. Stock is the number of available keys.
type Product struct {
	shared.BaseAggregateRoot
	CategoryID    *uuid.UUID
	Title         string
	Slug          string
	Description   string
	Platform      Platform
	Price         decimal.Decimal
	Status        ProductStatus
	CoverImageKey string
	AvailableKeys int64 // read model, filled by the repository
}

// NewProduct creates a new active product
func NewProduct(title string, platform Platform, price decimal.Decimal) (*Product, error) {
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if !platform.IsValid() {
		return nil, shared.NewDomainError("INVALID_PLATFORM", "Unsupported platform: "+string(platform))
	}
	price = price.Round(2)
	if err := validatePrice(price); err != nil {
		return nil, err
	}

	product := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Title:             title,
		Slug:              Slugify(title),
		Platform:          platform,
		Price:             price,
		Status:            ProductStatusActive,
	}

	product.AddDomainEvent(NewProductCreatedEvent(product))

	return product, nil
}

// Update changes the descriptive fields of the product
func (p *Product) Update(title, description string, platform Platform) error {
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return err
	}
	if !platform.IsValid() {
		return shared.NewDomainError("INVALID_PLATFORM", "Unsupported platform: "+string(platform))
	}
	if utf8.RuneCountInString(description) > 5000 {
		return shared.NewDomainError("INVALID_DESCRIPTION", "Description cannot exceed 5000 characters")
	}

	p.Title = title
	p.Description = description
	p.Platform = platform
	p.touch()

	return nil
}

// SetSlug overrides the generated slug
func (p *Product) SetSlug(slug string) error {
	slug = Slugify(slug)
	if slug == "" {
		return shared.NewDomainError("INVALID_SLUG", "Slug cannot be empty")
	}
	p.Slug = slug
	p.touch()
	return nil
}

// ChangePrice sets a new selling price
func (p *Product) ChangePrice(price decimal.Decimal) error {
	price = price.Round(2)
	if err := validatePrice(price); err != nil {
		return err
	}
	if p.Price.Equal(price) {
		return nil
	}

	old := p.Price
	p.Price = price
	p.touch()
	p.AddDomainEvent(NewProductPriceChangedEvent(p, old))

	return nil
}

// SetCategory sets or clears the product category
func (p *Product) SetCategory(categoryID *uuid.UUID) {
	p.CategoryID = categoryID
	p.touch()
}

// SetCoverImage records the object storage key of the cover image
func (p *Product) SetCoverImage(key string) {
	p.CoverImageKey = key
	p.touch()
}

// Activate makes the product visible in the storefront
func (p *Product) Activate() error {
	if p.Status == ProductStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Product is already active")
	}
	p.Status = ProductStatusActive
	p.touch()
	return nil
}

// Deactivate hides the product from the storefront
func (p *Product) Deactivate() error {
	if p.Status == ProductStatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Product is already inactive")
	}
	p.Status = ProductStatusInactive
	p.touch()
	return nil
}

// IsActive reports whether customers can buy the product
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// InStock reports whether at least qty keys are available
func (p *Product) InStock(qty int) bool {
	return p.AvailableKeys >= int64(qty)
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

func validateTitle(title string) error {
	if title == "" {
		return shared.NewDomainError("INVALID_TITLE", "Product title cannot be empty")
	}
	if utf8.RuneCountInString(title) > 200 {
		return shared.NewDomainError("INVALID_TITLE", "Product title cannot exceed 200 characters")
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return shared.NewDomainError("INVALID_PRICE", "Price must be greater than zero")
	}
	if price.GreaterThan(decimal.NewFromInt(100000)) {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot exceed 100000")
	}
	return nil
}
