package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamekeys/backend/internal/domain/cart"
	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service manages customers' shopping carts
type Service struct {
	cartRepo    cart.Repository
	productRepo catalog.ProductRepository
	logger      *zap.Logger
}

// NewService creates a new cart Service
func NewService(cartRepo cart.Repository, productRepo catalog.ProductRepository, logger *zap.Logger) *Service {
	return &Service{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		logger:      logger,
	}
}

// Get returns the user's cart priced with current catalog prices
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*CartResponse, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, c)
}

// AddItem adds keys of an active product, merging into an existing line
func (s *Service) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartResponse, error) {
	product, err := s.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("PRODUCT_NOT_FOUND", "Product not found")
		}
		return nil, err
	}
	if !product.IsActive() {
		return nil, shared.NewDomainError("PRODUCT_UNAVAILABLE", "Product is not available for sale")
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	wanted := int64(c.Quantity(product.ID) + req.Quantity)
	if wanted > product.AvailableKeys {
		return nil, shared.NewDomainError("INSUFFICIENT_STOCK",
			fmt.Sprintf("Only %d keys of %s are available", product.AvailableKeys, product.Title))
	}

	if err := c.AddItem(product.ID, product.Title, product.Price, req.Quantity); err != nil {
		return nil, err
	}
	if err := s.cartRepo.Save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Debug("Cart item added",
		zap.String("user_id", userID.String()),
		zap.String("product_id", product.ID.String()),
		zap.Int("quantity", req.Quantity))

	return s.toResponse(ctx, c)
}

// UpdateItem sets the quantity of a line; zero removes it
func (s *Service) UpdateItem(ctx context.Context, userID, productID uuid.UUID, req UpdateItemRequest) (*CartResponse, error) {
	if req.Quantity == nil {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity is required")
	}
	qty := *req.Quantity

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if qty > c.Quantity(productID) {
		product, err := s.productRepo.FindByID(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !product.IsActive() {
			return nil, shared.NewDomainError("PRODUCT_UNAVAILABLE", "Product is not available for sale")
		}
		if int64(qty) > product.AvailableKeys {
			return nil, shared.NewDomainError("INSUFFICIENT_STOCK",
				fmt.Sprintf("Only %d keys of %s are available", product.AvailableKeys, product.Title))
		}
	}

	if err := c.SetQuantity(productID, qty); err != nil {
		return nil, err
	}
	if err := s.cartRepo.Save(ctx, c); err != nil {
		return nil, err
	}
	return s.toResponse(ctx, c)
}

// RemoveItem drops a product from the cart
func (s *Service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartResponse, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.RemoveItem(productID); err != nil {
		return nil, err
	}
	if err := s.cartRepo.Save(ctx, c); err != nil {
		return nil, err
	}
	return s.toResponse(ctx, c)
}

// Clear empties the user's cart
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	err := s.cartRepo.DeleteByUser(ctx, userID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	return nil
}

// load returns the user's cart, or a new empty one
func (s *Service) load(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	c, err := s.cartRepo.FindByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		return cart.New(userID), nil
	}
	return nil, err
}

func (s *Service) toResponse(ctx context.Context, c *cart.Cart) (*CartResponse, error) {
	products := make(map[uuid.UUID]catalog.Product, len(c.Items))
	if len(c.Items) > 0 {
		ids := make([]uuid.UUID, len(c.Items))
		for i, item := range c.Items {
			ids[i] = item.ProductID
		}
		found, err := s.productRepo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			products[p.ID] = p
		}
	}

	resp := &CartResponse{
		Items: make([]CartItemResponse, 0, len(c.Items)),
	}
	total := decimal.Zero
	for _, item := range c.Items {
		line := CartItemResponse{
			ProductID: item.ProductID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
		if p, ok := products[item.ProductID]; ok {
			line.Title = p.Title
			line.Platform = string(p.Platform)
			line.PriceChanged = !p.Price.Equal(item.UnitPrice)
			line.UnitPrice = p.Price
			line.Stock = p.AvailableKeys
			line.Available = p.IsActive() && p.AvailableKeys >= int64(item.Quantity)
		}
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		line.UnitPriceFormatted = shared.FormatBRL(line.UnitPrice)
		line.SubtotalFormatted = shared.FormatBRL(line.Subtotal)

		if line.Available {
			total = total.Add(line.Subtotal)
			resp.ItemCount += item.Quantity
		}
		resp.Items = append(resp.Items, line)
	}

	resp.Total = total
	resp.TotalFormatted = shared.FormatBRL(total)
	if !c.UpdatedAt.IsZero() && len(c.Items) > 0 {
		updatedAt := c.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp, nil
}
