package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gamekeys/backend/internal/domain/cart"
	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/identity"
	"github.com/gamekeys/backend/internal/domain/order"
	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// passthroughTx runs fn without a real transaction
type passthroughTx struct{}

func (passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeOrderRepo keeps orders in memory and enforces optimistic locking
type fakeOrderRepo struct {
	order.Repository
	mu          sync.Mutex
	orders      map[uuid.UUID]order.Order
	conflicts   int // Update calls that fail before succeeding
	updateCalls int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]order.Order)}
}

func snapshot(o *order.Order) order.Order {
	c := *o
	c.Items = append([]order.Item(nil), o.Items...)
	c.ClearDomainEvents()
	return c
}

func (r *fakeOrderRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = snapshot(o)
	return nil
}

func (r *fakeOrderRepo) Update(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.conflicts > 0 {
		r.conflicts--
		return shared.ErrConcurrencyConflict
	}
	stored, ok := r.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != o.Version {
		return shared.ErrConcurrencyConflict
	}
	o.IncrementVersion()
	r.orders[o.ID] = snapshot(o)
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := snapshot(&stored)
	return &c, nil
}

func (r *fakeOrderRepo) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*order.Order, error) {
	o, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) FindByChargeID(_ context.Context, chargeID string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.orders {
		if stored.Payment.ChargeID == chargeID {
			c := snapshot(&stored)
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOrderRepo) FindAll(_ context.Context, filter order.Filter) ([]order.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []order.Order
	for _, stored := range r.orders {
		if filter.UserID != nil && stored.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && stored.Status != *filter.Status {
			continue
		}
		result = append(result, snapshot(&stored))
	}
	return result, int64(len(result)), nil
}

func (r *fakeOrderRepo) FindAwaitingPayment(_ context.Context, limit int) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []order.Order
	for _, stored := range r.orders {
		if stored.Status == order.StatusAwaitingPayment && len(result) < limit {
			result = append(result, snapshot(&stored))
		}
	}
	return result, nil
}

func (r *fakeOrderRepo) FindExpired(_ context.Context, now time.Time, limit int) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []order.Order
	for _, stored := range r.orders {
		if stored.Status.HoldsReservation() && stored.ExpiresAt.Before(now) && len(result) < limit {
			result = append(result, snapshot(&stored))
		}
	}
	return result, nil
}

// put stores o as is, bypassing version checks
func (r *fakeOrderRepo) put(o *order.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = snapshot(o)
}

func (r *fakeOrderRepo) get(id uuid.UUID) order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

// fakeKeyRepo tracks key counts per product and per order
type fakeKeyRepo struct {
	catalog.GameKeyRepository
	mu        sync.Mutex
	available map[uuid.UUID]int
	reserved  map[uuid.UUID]map[uuid.UUID]int
	sold      map[uuid.UUID]map[uuid.UUID]int
}

func newFakeKeyRepo() *fakeKeyRepo {
	return &fakeKeyRepo{
		available: make(map[uuid.UUID]int),
		reserved:  make(map[uuid.UUID]map[uuid.UUID]int),
		sold:      make(map[uuid.UUID]map[uuid.UUID]int),
	}
}

func (r *fakeKeyRepo) Reserve(_ context.Context, productID, orderID uuid.UUID, qty int) ([]catalog.GameKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.available[productID] < qty {
		return nil, fmt.Errorf("%w: product %s", shared.ErrInsufficientStock, productID)
	}
	r.available[productID] -= qty
	if r.reserved[orderID] == nil {
		r.reserved[orderID] = make(map[uuid.UUID]int)
	}
	r.reserved[orderID][productID] += qty
	return make([]catalog.GameKey, qty), nil
}

func (r *fakeKeyRepo) ReleaseByOrder(_ context.Context, orderID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var released int64
	for productID, qty := range r.reserved[orderID] {
		r.available[productID] += qty
		released += int64(qty)
	}
	delete(r.reserved, orderID)
	return released, nil
}

func (r *fakeKeyRepo) MarkSoldByOrder(_ context.Context, orderID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sold int64
	for productID, qty := range r.reserved[orderID] {
		if r.sold[orderID] == nil {
			r.sold[orderID] = make(map[uuid.UUID]int)
		}
		r.sold[orderID][productID] += qty
		sold += int64(qty)
	}
	delete(r.reserved, orderID)
	return sold, nil
}

func (r *fakeKeyRepo) FindByOrder(_ context.Context, orderID uuid.UUID) ([]catalog.GameKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	soldAt := time.Now()
	var keys []catalog.GameKey
	for productID, qty := range r.sold[orderID] {
		for i := 0; i < qty; i++ {
			keys = append(keys, catalog.GameKey{
				BaseEntity: shared.BaseEntity{ID: uuid.New()},
				ProductID:  productID,
				Code:       fmt.Sprintf("KEY-%s-%d", productID.String()[:8], i),
				Status:     catalog.KeyStatusSold,
				OrderID:    &orderID,
				SoldAt:     &soldAt,
			})
		}
	}
	return keys, nil
}

func (r *fakeKeyRepo) reservedFor(orderID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, qty := range r.reserved[orderID] {
		n += qty
	}
	return n
}

func (r *fakeKeyRepo) soldFor(orderID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, qty := range r.sold[orderID] {
		n += qty
	}
	return n
}

// stubProducts serves products from a map
type stubProducts struct {
	catalog.ProductRepository
	products map[uuid.UUID]catalog.Product
}

func (s *stubProducts) FindByIDs(_ context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	result := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// fakeCarts keeps carts in memory
type fakeCarts struct {
	carts map[uuid.UUID]*cart.Cart
}

func (f *fakeCarts) FindByUser(_ context.Context, userID uuid.UUID) (*cart.Cart, error) {
	if c, ok := f.carts[userID]; ok {
		return c, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeCarts) Save(_ context.Context, c *cart.Cart) error {
	f.carts[c.UserID] = c
	return nil
}

func (f *fakeCarts) DeleteByUser(_ context.Context, userID uuid.UUID) error {
	if _, ok := f.carts[userID]; !ok {
		return shared.ErrNotFound
	}
	delete(f.carts, userID)
	return nil
}

// stubUsers serves users from a map
type stubUsers struct {
	identity.UserRepository
	users map[uuid.UUID]*identity.User
}

func (s *stubUsers) FindByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

// MockPixGateway is a mock implementation of payment.PixGateway
type MockPixGateway struct {
	mock.Mock
}

func (m *MockPixGateway) Provider() payment.Provider {
	return payment.ProviderSandbox
}

func (m *MockPixGateway) CreateCharge(ctx context.Context, req payment.CreateChargeRequest) (*payment.Charge, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Charge), args.Error(1)
}

func (m *MockPixGateway) GetCharge(ctx context.Context, chargeID string) (*payment.Charge, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Charge), args.Error(1)
}

func (m *MockPixGateway) CancelCharge(ctx context.Context, chargeID string) error {
	args := m.Called(ctx, chargeID)
	return args.Error(0)
}

func (m *MockPixGateway) ParseWebhook(ctx context.Context, req payment.WebhookRequest) (*payment.WebhookNotification, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WebhookNotification), args.Error(1)
}

// singleGateway is a registry with one sandbox gateway
type singleGateway struct {
	gateway payment.PixGateway
}

func (r singleGateway) Active() payment.PixGateway { return r.gateway }

func (r singleGateway) Get(provider payment.Provider) (payment.PixGateway, error) {
	if provider != payment.ProviderSandbox {
		return nil, payment.ErrProviderNotConfigured
	}
	return r.gateway, nil
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.EventType()
	}
	return types
}

// countingMetrics records lifecycle counters
type countingMetrics struct {
	mu        sync.Mutex
	created   int
	closed    map[string]int
	delivered int
	webhooks  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{closed: map[string]int{}, webhooks: map[string]int{}}
}

func (m *countingMetrics) OrderCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *countingMetrics) OrderClosed(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed[status]++
}

func (m *countingMetrics) PaymentStatusApplied(string, string) {}

func (m *countingMetrics) OrderDelivered(int, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered++
}

func (m *countingMetrics) WebhookReceived(_, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[outcome]++
}
