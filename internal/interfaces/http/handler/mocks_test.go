package handler

import (
	"context"

	"github.com/gamekeys/backend/internal/application/admin"
	"github.com/gamekeys/backend/internal/application/cart"
	"github.com/gamekeys/backend/internal/application/catalog"
	"github.com/gamekeys/backend/internal/application/identity"
	"github.com/gamekeys/backend/internal/application/order"
	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// result unpacks a (*T, error) mock return
func result[T any](args mock.Arguments) (*T, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

type MockProductService struct{ mock.Mock }

func (m *MockProductService) Create(ctx context.Context, req catalog.CreateProductRequest) (*catalog.ProductResponse, error) {
	return result[catalog.ProductResponse](m.Called(ctx, req))
}

func (m *MockProductService) Get(ctx context.Context, idOrSlug string, includeInactive bool) (*catalog.ProductResponse, error) {
	return result[catalog.ProductResponse](m.Called(ctx, idOrSlug, includeInactive))
}

func (m *MockProductService) List(ctx context.Context, filter catalog.ProductListFilter, includeInactive bool) ([]catalog.ProductResponse, int64, error) {
	args := m.Called(ctx, filter, includeInactive)
	products, _ := args.Get(0).([]catalog.ProductResponse)
	return products, args.Get(1).(int64), args.Error(2)
}

func (m *MockProductService) Update(ctx context.Context, productID uuid.UUID, req catalog.UpdateProductRequest) (*catalog.ProductResponse, error) {
	return result[catalog.ProductResponse](m.Called(ctx, productID, req))
}

func (m *MockProductService) Activate(ctx context.Context, productID uuid.UUID) (*catalog.ProductResponse, error) {
	return result[catalog.ProductResponse](m.Called(ctx, productID))
}

func (m *MockProductService) Deactivate(ctx context.Context, productID uuid.UUID) (*catalog.ProductResponse, error) {
	return result[catalog.ProductResponse](m.Called(ctx, productID))
}

func (m *MockProductService) Delete(ctx context.Context, productID uuid.UUID) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *MockProductService) RequestCoverUpload(ctx context.Context, productID uuid.UUID, req catalog.CoverUploadRequest) (*catalog.CoverUploadResponse, error) {
	return result[catalog.CoverUploadResponse](m.Called(ctx, productID, req))
}

func (m *MockProductService) ConfirmCover(ctx context.Context, productID uuid.UUID, req catalog.ConfirmCoverRequest) (*catalog.ProductResponse, error) {
	return result[catalog.ProductResponse](m.Called(ctx, productID, req))
}

func (m *MockProductService) RemoveCover(ctx context.Context, productID uuid.UUID) (*catalog.ProductResponse, error) {
	return result[catalog.ProductResponse](m.Called(ctx, productID))
}

type MockCategoryService struct{ mock.Mock }

func (m *MockCategoryService) Create(ctx context.Context, req catalog.CreateCategoryRequest) (*catalog.CategoryResponse, error) {
	return result[catalog.CategoryResponse](m.Called(ctx, req))
}

func (m *MockCategoryService) List(ctx context.Context) ([]catalog.CategoryResponse, error) {
	args := m.Called(ctx)
	categories, _ := args.Get(0).([]catalog.CategoryResponse)
	return categories, args.Error(1)
}

func (m *MockCategoryService) GetByID(ctx context.Context, categoryID uuid.UUID) (*catalog.CategoryResponse, error) {
	return result[catalog.CategoryResponse](m.Called(ctx, categoryID))
}

func (m *MockCategoryService) Update(ctx context.Context, categoryID uuid.UUID, req catalog.UpdateCategoryRequest) (*catalog.CategoryResponse, error) {
	return result[catalog.CategoryResponse](m.Called(ctx, categoryID, req))
}

func (m *MockCategoryService) Delete(ctx context.Context, categoryID uuid.UUID) error {
	return m.Called(ctx, categoryID).Error(0)
}

type MockKeyService struct{ mock.Mock }

func (m *MockKeyService) AddKeys(ctx context.Context, productID uuid.UUID, req catalog.AddKeysRequest) (*catalog.AddKeysResponse, error) {
	return result[catalog.AddKeysResponse](m.Called(ctx, productID, req))
}

func (m *MockKeyService) ListKeys(ctx context.Context, productID uuid.UUID, filter catalog.KeyListFilter) ([]catalog.GameKeyResponse, int64, error) {
	args := m.Called(ctx, productID, filter)
	keys, _ := args.Get(0).([]catalog.GameKeyResponse)
	return keys, args.Get(1).(int64), args.Error(2)
}

func (m *MockKeyService) Stock(ctx context.Context, productID uuid.UUID) (*catalog.KeyStockResponse, error) {
	return result[catalog.KeyStockResponse](m.Called(ctx, productID))
}

type MockCartService struct{ mock.Mock }

func (m *MockCartService) Get(ctx context.Context, userID uuid.UUID) (*cart.CartResponse, error) {
	return result[cart.CartResponse](m.Called(ctx, userID))
}

func (m *MockCartService) AddItem(ctx context.Context, userID uuid.UUID, req cart.AddItemRequest) (*cart.CartResponse, error) {
	return result[cart.CartResponse](m.Called(ctx, userID, req))
}

func (m *MockCartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, req cart.UpdateItemRequest) (*cart.CartResponse, error) {
	return result[cart.CartResponse](m.Called(ctx, userID, productID, req))
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*cart.CartResponse, error) {
	return result[cart.CartResponse](m.Called(ctx, userID, productID))
}

func (m *MockCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

type MockOrderService struct{ mock.Mock }

func (m *MockOrderService) CreateFromCart(ctx context.Context, userID uuid.UUID) (*order.Response, error) {
	return result[order.Response](m.Called(ctx, userID))
}

func (m *MockOrderService) CreateDirect(ctx context.Context, userID uuid.UUID, req order.CreateDirectRequest) (*order.Response, error) {
	return result[order.Response](m.Called(ctx, userID, req))
}

func (m *MockOrderService) Get(ctx context.Context, actor order.Actor, orderID uuid.UUID) (*order.Response, error) {
	return result[order.Response](m.Called(ctx, actor, orderID))
}

func (m *MockOrderService) List(ctx context.Context, userID uuid.UUID, filter order.ListFilter) ([]order.Response, int64, error) {
	args := m.Called(ctx, userID, filter)
	orders, _ := args.Get(0).([]order.Response)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderService) ListAll(ctx context.Context, filter order.ListFilter) ([]order.Response, int64, error) {
	args := m.Called(ctx, filter)
	orders, _ := args.Get(0).([]order.Response)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderService) Cancel(ctx context.Context, actor order.Actor, orderID uuid.UUID, req order.CancelRequest) (*order.Response, error) {
	return result[order.Response](m.Called(ctx, actor, orderID, req))
}

func (m *MockOrderService) GetKeys(ctx context.Context, actor order.Actor, orderID uuid.UUID) (*order.KeysResponse, error) {
	return result[order.KeysResponse](m.Called(ctx, actor, orderID))
}

func (m *MockOrderService) StartCheckout(ctx context.Context, userID, orderID uuid.UUID) (*order.Response, error) {
	return result[order.Response](m.Called(ctx, userID, orderID))
}

func (m *MockOrderService) GetPaymentStatus(ctx context.Context, actor order.Actor, orderID uuid.UUID) (*order.PaymentStatusResponse, error) {
	return result[order.PaymentStatusResponse](m.Called(ctx, actor, orderID))
}

type MockPaymentService struct{ mock.Mock }

func (m *MockPaymentService) HandleWebhook(ctx context.Context, provider string, req payment.WebhookRequest) error {
	return m.Called(ctx, provider, req).Error(0)
}

func (m *MockPaymentService) SimulatePayment(ctx context.Context, chargeID string, approve bool, reason string) (*order.Response, error) {
	return result[order.Response](m.Called(ctx, chargeID, approve, reason))
}

type MockUserService struct{ mock.Mock }

func (m *MockUserService) List(ctx context.Context, filter identity.UserListFilter) (*identity.UserListResult, error) {
	return result[identity.UserListResult](m.Called(ctx, filter))
}

func (m *MockUserService) Get(ctx context.Context, userID uuid.UUID) (*identity.UserDTO, error) {
	return result[identity.UserDTO](m.Called(ctx, userID))
}

func (m *MockUserService) Enable(ctx context.Context, userID uuid.UUID) (*identity.UserDTO, error) {
	return result[identity.UserDTO](m.Called(ctx, userID))
}

func (m *MockUserService) Disable(ctx context.Context, actorID, userID uuid.UUID) (*identity.UserDTO, error) {
	return result[identity.UserDTO](m.Called(ctx, actorID, userID))
}

type MockDashboardService struct{ mock.Mock }

func (m *MockDashboardService) GetSummary(ctx context.Context, filter admin.DashboardFilter) (*admin.DashboardResponse, error) {
	return result[admin.DashboardResponse](m.Called(ctx, filter))
}
