package catalog

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gamekeys/backend/internal/domain/shared"
)

// Category groups products in the storefront (e.g. "RPG", "Indie")
type Category struct {
	shared.BaseAggregateRoot
	Name        string
	Slug        string
	Description string
	SortOrder   int
}

// NewCategory creates a new category
func NewCategory(name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if err := validateCategoryName(name); err != nil {
		return nil, err
	}

	return &Category{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Slug:              Slugify(name),
	}, nil
}

// Update changes the category fields
func (c *Category) Update(name, description string, sortOrder int) error {
	name = strings.TrimSpace(name)
	if err := validateCategoryName(name); err != nil {
		return err
	}
	if utf8.RuneCountInString(description) > 500 {
		return shared.NewDomainError("INVALID_DESCRIPTION", "Description cannot exceed 500 characters")
	}

	c.Name = name
	c.Slug = Slugify(name)
	c.Description = description
	c.SortOrder = sortOrder
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	return nil
}

func validateCategoryName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Category name cannot be empty")
	}
	if utf8.RuneCountInString(name) > 100 {
		return shared.NewDomainError("INVALID_NAME", "Category name cannot exceed 100 characters")
	}
	return nil
}
