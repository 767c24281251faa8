package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamekeys/backend/internal/domain/cart"
	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/identity"
	"github.com/gamekeys/backend/internal/domain/order"
	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/gamekeys/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxConflictRetries bounds optimistic-lock retries when the webhook, the
// polling endpoint and the reconciler touch the same order
const maxConflictRetries = 3

// Config contains order and checkout settings
type Config struct {
	ReservationTTL   time.Duration // How long reserved keys wait for payment
	MaxItems         int           // Max distinct products per order
	ChargeTTL        time.Duration // Lifetime of a PIX charge, capped by the reservation
	BatchSize        int           // Orders handled per reconciler run
	Workers          int           // Concurrent provider lookups per reconciler run
	MinCheckInterval time.Duration // Skip orders checked with the provider more recently
	WebhookDedupeTTL time.Duration // How long notification ids are remembered
	CheckoutLockTTL  time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		ReservationTTL:   30 * time.Minute,
		MaxItems:         cart.MaxLines,
		ChargeTTL:        30 * time.Minute,
		BatchSize:        100,
		Workers:          4,
		MinCheckInterval: 30 * time.Second,
		WebhookDedupeTTL: 24 * time.Hour,
		CheckoutLockTTL:  30 * time.Second,
	}
}

// Metrics receives order lifecycle counters
type Metrics interface {
	OrderCreated()
	OrderClosed(status string)
	PaymentStatusApplied(provider, status string)
	OrderDelivered(keys int, totalCents int64)
	WebhookReceived(provider, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) OrderCreated() {}
func (nopMetrics) OrderClosed(string) {}
func (nopMetrics) PaymentStatusApplied(string, string) {}
func (nopMetrics) OrderDelivered(int, int64) {}
func (nopMetrics) WebhookReceived(string, string) {}

// SandboxSimulator settles sandbox charges on an admin's request
type SandboxSimulator interface {
	Approve(chargeID string) (*payment.Charge, error)
	Reject(chargeID string, reason string) (*payment.Charge, error)
}

// Service handles order placement, PIX checkout and settlement
type Service struct {
	orderRepo      order.Repository
	productRepo    catalog.ProductRepository
	keyRepo        catalog.GameKeyRepository
	cartRepo       cart.Repository
	userRepo       identity.UserRepository
	txManager      shared.TransactionManager
	gateways       payment.GatewayRegistry
	eventPublisher shared.EventPublisher
	idempotency    shared.IdempotencyStore
	locker         cache.Locker
	sandbox        SandboxSimulator
	metrics        Metrics
	config         Config
	logger         *zap.Logger
}

// NewService creates a new order Service
func NewService(
	orderRepo order.Repository,
	productRepo catalog.ProductRepository,
	keyRepo catalog.GameKeyRepository,
	cartRepo cart.Repository,
	userRepo identity.UserRepository,
	txManager shared.TransactionManager,
	gateways payment.GatewayRegistry,
	config Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		keyRepo:     keyRepo,
		cartRepo:    cartRepo,
		userRepo:    userRepo,
		txManager:   txManager,
		gateways:    gateways,
		metrics:     nopMetrics{},
		config:      config,
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher for order events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetIdempotencyStore sets the store used to deduplicate webhook notifications
func (s *Service) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetLocker sets the locker serializing checkouts of the same order
func (s *Service) SetLocker(locker cache.Locker) {
	s.locker = locker
}

// SetSandbox enables sandbox payment simulation
func (s *Service) SetSandbox(sandbox SandboxSimulator) {
	s.sandbox = sandbox
}

// SetMetrics sets the business metrics recorder
func (s *Service) SetMetrics(metrics Metrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// CreateFromCart places an order with the contents of the user's cart and
// clears the cart
func (s *Service) CreateFromCart(ctx context.Context, userID uuid.UUID) (*Response, error) {
	c, err := s.cartRepo.FindByUser(ctx, userID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if c == nil || c.IsEmpty() {
		return nil, shared.NewDomainError("CART_EMPTY", "Cart is empty")
	}

	lines := make([]DirectItem, len(c.Items))
	for i, item := range c.Items {
		lines[i] = DirectItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return s.place(ctx, userID, lines, true)
}

// CreateDirect places an order for the given products without a cart
func (s *Service) CreateDirect(ctx context.Context, userID uuid.UUID, req CreateDirectRequest) (*Response, error) {
	if len(req.Items) == 0 {
		return nil, shared.NewDomainError("NO_ITEMS", "Order must contain at least one item")
	}

	// Repeated products are merged into one line
	merged := make([]DirectItem, 0, len(req.Items))
	index := make(map[uuid.UUID]int, len(req.Items))
	for _, item := range req.Items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return s.place(ctx, userID, merged, false)
}

func (s *Service) place(ctx context.Context, userID uuid.UUID, lines []DirectItem, fromCart bool) (*Response, error) {
	if s.config.MaxItems > 0 && len(lines) > s.config.MaxItems {
		return nil, shared.NewDomainError("TOO_MANY_ITEMS",
			fmt.Sprintf("An order can contain at most %d different products", s.config.MaxItems))
	}

	ids := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	// Prices are always taken from the catalog, never from the cart
	inputs := make([]order.NewItemInput, 0, len(lines))
	for _, line := range lines {
		if line.Quantity > cart.MaxQuantityPerLine {
			return nil, shared.NewDomainError("INVALID_QUANTITY",
				fmt.Sprintf("At most %d keys of the same product per order", cart.MaxQuantityPerLine))
		}
		p, ok := byID[line.ProductID]
		if !ok || !p.IsActive() {
			return nil, shared.NewDomainError("PRODUCT_UNAVAILABLE",
				fmt.Sprintf("Product %s is not available for sale", line.ProductID))
		}
		if int64(line.Quantity) > p.AvailableKeys {
			return nil, insufficientStock(p.Title)
		}
		inputs = append(inputs, order.NewItemInput{
			ProductID: p.ID,
			Title:     p.Title,
			Platform:  string(p.Platform),
			UnitPrice: p.Price,
			Quantity:  line.Quantity,
		})
	}

	o, err := order.NewOrder(userID, inputs, s.config.ReservationTTL)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.orderRepo.Create(ctx, o); err != nil {
			return err
		}
		for _, item := range o.Items {
			if _, err := s.keyRepo.Reserve(ctx, item.ProductID, o.ID, item.Quantity); err != nil {
				if errors.Is(err, shared.ErrInsufficientStock) {
					return insufficientStock(item.Title)
				}
				return err
			}
		}
		if fromCart {
			if err := s.cartRepo.DeleteByUser(ctx, userID); err != nil && !errors.Is(err, shared.ErrNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCreated()
	s.publish(ctx, o)

	s.logger.Info("Order created",
		zap.String("order_id", o.ID.String()),
		zap.String("number", o.Number),
		zap.String("user_id", userID.String()),
		zap.Int("keys", o.KeyCount()),
		zap.String("total", o.Total.StringFixed(2)))

	resp := ToResponse(o)
	return &resp, nil
}

// Get returns an order. Customers only see their own orders.
func (s *Service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*Response, error) {
	o, err := s.load(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	resp := ToResponse(o)
	return &resp, nil
}

// List returns a page of the user's orders
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Response, int64, error) {
	filter.UserID = &userID
	return s.list(ctx, filter)
}

// ListAll returns a page of all orders, for administrators
func (s *Service) ListAll(ctx context.Context, filter ListFilter) ([]Response, int64, error) {
	return s.list(ctx, filter)
}

func (s *Service) list(ctx context.Context, filter ListFilter) ([]Response, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
		filter.OrderDir = "desc"
	}

	query := order.Filter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		UserID: filter.UserID,
		From:   filter.From,
		To:     filter.To,
	}
	if filter.Status != "" {
		status := order.Status(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_STATUS", "Unknown order status: "+filter.Status)
		}
		query.Status = &status
	}
	if filter.To != nil {
		// Inclusive end date
		end := filter.To.Add(24*time.Hour - time.Nanosecond)
		query.To = &end
	}

	orders, total, err := s.orderRepo.FindAll(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]Response, len(orders))
	for i := range orders {
		responses[i] = ToResponse(&orders[i])
	}
	return responses, total, nil
}

// Cancel closes an unpaid order and releases its keys. When the provider
// already approved the charge the order is settled instead.
func (s *Service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, req CancelRequest) (*Response, error) {
	o, err := s.load(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(order.StatusCancelled) {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot cancel order in %s status", o.Status))
	}

	if o.Status == order.StatusAwaitingPayment && o.Payment.HasCharge() {
		// Keys are only released once the provider confirms the charge is unpaid
		charge, err := s.fetchCharge(ctx, o)
		switch {
		case errors.Is(err, payment.ErrChargeNotFound):
		case err != nil:
			s.logger.Warn("Could not check charge before cancelling",
				zap.String("order_id", o.ID.String()),
				zap.Error(err))
			return nil, errPaymentUnavailable
		case charge.Status == payment.ProviderStatusApproved:
			if _, err := s.settle(ctx, o.ID, charge); err != nil {
				return nil, err
			}
			return nil, shared.NewDomainError("ORDER_ALREADY_PAID", "Payment for this order was already received")
		}
	}

	reason := req.Reason
	if reason == "" {
		reason = "cancelled by customer"
		if actor.IsAdmin && !o.IsOwnedBy(actor.UserID) {
			reason = "cancelled by administrator"
		}
	}

	closed, err := s.close(ctx, o.ID, func(o *order.Order) error { return o.Cancel(reason) })
	if err != nil {
		return nil, err
	}
	s.cancelCharge(ctx, closed)

	s.logger.Info("Order cancelled",
		zap.String("order_id", closed.ID.String()),
		zap.String("actor_id", actor.UserID.String()),
		zap.String("reason", reason))

	resp := ToResponse(closed)
	return &resp, nil
}

// GetKeys returns the activation codes of a delivered order
func (s *Service) GetKeys(ctx context.Context, actor Actor, orderID uuid.UUID) (*KeysResponse, error) {
	o, err := s.load(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusDelivered {
		return nil, shared.NewDomainError("KEYS_NOT_AVAILABLE", "Keys are available once the order is delivered")
	}

	keys, err := s.keyRepo.FindByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order keys viewed",
		zap.String("order_id", o.ID.String()),
		zap.String("actor_id", actor.UserID.String()),
		zap.Bool("admin", actor.IsAdmin))

	resp := toKeysResponse(o, keys)
	return &resp, nil
}

func (s *Service) load(ctx context.Context, actor Actor, orderID uuid.UUID) (*order.Order, error) {
	if actor.IsAdmin {
		return s.orderRepo.FindByID(ctx, orderID)
	}
	return s.orderRepo.FindByIDForUser(ctx, orderID, actor.UserID)
}

// close applies a closing transition and releases the reserved keys
func (s *Service) close(ctx context.Context, orderID uuid.UUID, transition func(*order.Order) error) (*order.Order, error) {
	var closed *order.Order
	err := s.withRetry(ctx, func(ctx context.Context) error {
		o, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := transition(o); err != nil {
			return err
		}
		released, err := s.keyRepo.ReleaseByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := s.orderRepo.Update(ctx, o); err != nil {
			return err
		}
		s.logger.Debug("Order keys released",
			zap.String("order_id", o.ID.String()),
			zap.Int64("released", released))
		closed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderClosed(string(closed.Status))
	s.publish(ctx, closed)
	return closed, nil
}

// withRetry runs fn in a transaction, retrying on optimistic lock conflicts
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.txManager.WithinTransaction(ctx, fn)
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		s.logger.Debug("Order update conflict, retrying", zap.Int("attempt", attempt+1))
	}
	return err
}

func (s *Service) publish(ctx context.Context, o *order.Order) {
	if s.eventPublisher == nil {
		o.ClearDomainEvents()
		return
	}
	events := o.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Publish errors are logged by the event bus, not propagated
	_ = s.eventPublisher.Publish(ctx, events...)
	o.ClearDomainEvents()
}

func insufficientStock(title string) error {
	return shared.NewDomainError("INSUFFICIENT_STOCK", fmt.Sprintf("Not enough keys in stock for %s", title))
}
