package cart

import (
	"time"

	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantityPerLine limits how many keys of one product fit in a cart line
const MaxQuantityPerLine = 10

// MaxLines limits the number of distinct products in a cart. Orders accept at
// least this many so a full cart can always be checked out.
const MaxLines = 20

// Item is one product line in the cart. UnitPrice is the price seen when the
// item was added; orders always re-read the catalog price.
type Item struct {
	ProductID uuid.UUID
	Title     string
	UnitPrice decimal.Decimal
	Quantity  int
	AddedAt   time.Time
}

// Subtotal returns unit price times quantity
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a customer's shopping cart. Each customer owns at most one cart.
type Cart struct {
	shared.BaseEntity
	UserID uuid.UUID
	Items  []Item
}

// New creates an empty cart for a user
func New(userID uuid.UUID) *Cart {
	return &Cart{
		BaseEntity: shared.NewBaseEntity(),
		UserID:     userID,
		Items:      make([]Item, 0),
	}
}

// AddItem merges qty into the line for the product, creating it if needed
func (c *Cart) AddItem(productID uuid.UUID, title string, unitPrice decimal.Decimal, qty int) error {
	if qty <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}

	if idx := c.indexOf(productID); idx >= 0 {
		newQty := c.Items[idx].Quantity + qty
		if newQty > MaxQuantityPerLine {
			return errQuantityTooLarge()
		}
		c.Items[idx].Quantity = newQty
		c.Items[idx].Title = title
		c.Items[idx].UnitPrice = unitPrice
		c.Touch()
		return nil
	}

	if qty > MaxQuantityPerLine {
		return errQuantityTooLarge()
	}
	if len(c.Items) >= MaxLines {
		return shared.NewDomainError("CART_FULL", "Cart cannot hold more products")
	}

	c.Items = append(c.Items, Item{
		ProductID: productID,
		Title:     title,
		UnitPrice: unitPrice,
		Quantity:  qty,
		AddedAt:   time.Now(),
	})
	c.Touch()
	return nil
}

// SetQuantity sets the quantity of a line; zero removes it
func (c *Cart) SetQuantity(productID uuid.UUID, qty int) error {
	if qty < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if qty > MaxQuantityPerLine {
		return errQuantityTooLarge()
	}

	idx := c.indexOf(productID)
	if idx < 0 {
		return shared.NewDomainError("ITEM_NOT_FOUND", "Product is not in the cart")
	}
	if qty == 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	} else {
		c.Items[idx].Quantity = qty
	}
	c.Touch()
	return nil
}

// RemoveItem drops a product from the cart
func (c *Cart) RemoveItem(productID uuid.UUID) error {
	return c.SetQuantity(productID, 0)
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.Items = c.Items[:0]
	c.Touch()
}

// Quantity returns the quantity held for a product
func (c *Cart) Quantity(productID uuid.UUID) int {
	if idx := c.indexOf(productID); idx >= 0 {
		return c.Items[idx].Quantity
	}
	return 0
}

// Total returns the sum of all line subtotals
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount returns the total number of keys in the cart
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func errQuantityTooLarge() error {
	return shared.NewDomainError("INVALID_QUANTITY", "At most 10 keys of the same product per order")
}
