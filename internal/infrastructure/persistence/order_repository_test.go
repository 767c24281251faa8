package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/gamekeys/backend/internal/domain/order"
	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPersistedOrder(t *testing.T, repo *GormOrderRepository, userID uuid.UUID, price string, ttl time.Duration) *order.Order {
	t.Helper()

	o, err := order.NewOrder(userID, []order.NewItemInput{
		{ProductID: uuid.New(), Title: "Hades", Platform: "steam", UnitPrice: decimal.RequireFromString(price), Quantity: 1},
		{ProductID: uuid.New(), Title: "Celeste", Platform: "steam", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
	}, ttl)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), o))
	return o
}

func attachTestCharge(t *testing.T, o *order.Order, chargeID string) {
	t.Helper()

	require.NoError(t, o.AttachCharge(&payment.Charge{
		Provider:     payment.ProviderSandbox,
		ChargeID:     chargeID,
		Status:       payment.ProviderStatusPending,
		Amount:       o.Total,
		QRCode:       "00020126580014br.gov.bcb.pix",
		QRCodeBase64: "iVBORw0KGgo=",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
	}))
}

func TestGormOrderRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	o := newPersistedOrder(t, repo, userID, "47.49", 30*time.Minute)

	t.Run("find by id loads items", func(t *testing.T) {
		found, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.Number, found.Number)
		assert.Equal(t, order.StatusPending, found.Status)
		assert.Equal(t, 1, found.Version)
		assert.True(t, found.Total.Equal(decimal.RequireFromString("67.49")))
		require.Len(t, found.Items, 2)
		assert.Equal(t, "Celeste", found.Items[0].Title)
		assert.Equal(t, 3, found.KeyCount())
	})

	t.Run("find for another user", func(t *testing.T) {
		_, err := repo.FindByIDForUser(ctx, o.ID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		found, err := repo.FindByIDForUser(ctx, o.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, o.ID, found.ID)
	})

	t.Run("find by number", func(t *testing.T) {
		found, err := repo.FindByNumber(ctx, o.Number)
		require.NoError(t, err)
		assert.Equal(t, o.ID, found.ID)
	})

	t.Run("empty charge id never matches", func(t *testing.T) {
		_, err := repo.FindByChargeID(ctx, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormOrderRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	o := newPersistedOrder(t, repo, uuid.New(), "47.49", 30*time.Minute)
	stale, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)

	attachTestCharge(t, o, "chg_update")
	require.NoError(t, repo.Update(ctx, o))
	assert.Equal(t, 2, o.Version)

	t.Run("persists charge fields", func(t *testing.T) {
		found, err := repo.FindByChargeID(ctx, "chg_update")
		require.NoError(t, err)
		assert.Equal(t, order.StatusAwaitingPayment, found.Status)
		assert.Equal(t, payment.ProviderSandbox, found.Payment.Provider)
		assert.Equal(t, "iVBORw0KGgo=", found.Payment.QRCodeBase64)
		assert.Equal(t, 1, found.Payment.Attempts)
		assert.Equal(t, 2, found.Version)
		assert.Len(t, found.Items, 2)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		require.NoError(t, stale.Cancel("changed my mind"))
		err := repo.Update(ctx, stale)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 1, stale.Version)

		found, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusAwaitingPayment, found.Status)
	})

	t.Run("unknown order", func(t *testing.T) {
		ghost, err := order.NewOrder(uuid.New(), []order.NewItemInput{
			{ProductID: uuid.New(), Title: "Ghost", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
		}, time.Minute)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Update(ctx, ghost), shared.ErrNotFound)
	})
}

func TestGormOrderRepository_SchedulerQueries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	checked := newPersistedOrder(t, repo, userID, "20.00", 30*time.Minute)
	attachTestCharge(t, checked, "chg_checked")
	past := time.Now().Add(-time.Minute)
	checked.Payment.LastCheckedAt = &past
	require.NoError(t, repo.Update(ctx, checked))

	unchecked := newPersistedOrder(t, repo, userID, "20.00", 30*time.Minute)
	attachTestCharge(t, unchecked, "chg_unchecked")
	require.NoError(t, repo.Update(ctx, unchecked))

	expired := newPersistedOrder(t, repo, userID, "20.00", time.Millisecond)
	newPersistedOrder(t, repo, userID, "20.00", 30*time.Minute)

	t.Run("awaiting payment puts never checked orders first", func(t *testing.T) {
		orders, err := repo.FindAwaitingPayment(ctx, 10)
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, unchecked.ID, orders[0].ID)
		assert.Equal(t, checked.ID, orders[1].ID)
	})

	t.Run("expired only returns unpaid orders past their deadline", func(t *testing.T) {
		orders, err := repo.FindExpired(ctx, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, expired.ID, orders[0].ID)
	})

	t.Run("paid orders are not expired", func(t *testing.T) {
		changed, err := checked.ApplyProviderStatus(payment.ProviderStatusApproved, "accredited")
		require.NoError(t, err)
		require.True(t, changed)
		require.NoError(t, repo.Update(ctx, checked))

		orders, err := repo.FindExpired(ctx, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		assert.Len(t, orders, 3)
		for _, o := range orders {
			assert.NotEqual(t, checked.ID, o.ID)
		}
	})
}

func TestGormOrderRepository_Reporting(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	for _, price := range []string{"47.49", "52.51"} {
		o := newPersistedOrder(t, repo, userID, price, 30*time.Minute)
		attachTestCharge(t, o, "chg_"+price)
		_, err := o.ApplyProviderStatus(payment.ProviderStatusApproved, "")
		require.NoError(t, err)
		require.NoError(t, repo.Update(ctx, o))
	}
	newPersistedOrder(t, repo, userID, "99.00", 30*time.Minute)

	t.Run("count by status includes empty statuses", func(t *testing.T) {
		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[order.StatusPaid])
		assert.Equal(t, int64(1), counts[order.StatusPending])
		assert.Equal(t, int64(0), counts[order.StatusDelivered])
		assert.Len(t, counts, len(order.AllStatuses()))
	})

	t.Run("revenue sums paid orders", func(t *testing.T) {
		revenue, err := repo.SumRevenue(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, revenue.Round(2).Equal(decimal.NewFromInt(140)), "got %s", revenue)
	})

	t.Run("revenue outside window is zero", func(t *testing.T) {
		revenue, err := repo.SumRevenue(ctx, time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.True(t, revenue.IsZero())
	})

	t.Run("filter by status", func(t *testing.T) {
		status := order.StatusPaid
		orders, total, err := repo.FindAll(ctx, order.Filter{
			Filter: shared.Filter{Page: 1, PageSize: 10, OrderBy: "total", OrderDir: "desc"},
			Status: &status,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, orders, 2)
		assert.True(t, orders[0].Total.Equal(decimal.RequireFromString("72.51")))
	})

	t.Run("filter by user", func(t *testing.T) {
		other := uuid.New()
		_, total, err := repo.FindAll(ctx, order.Filter{
			Filter: shared.Filter{Page: 1, PageSize: 10},
			UserID: &other,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})
}

func TestGormOrderRepository_Transaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	tm := NewGormTransactionManager(db)
	ctx := context.Background()

	created, err := order.NewOrder(uuid.New(), []order.NewItemInput{
		{ProductID: uuid.New(), Title: "Hades", UnitPrice: decimal.NewFromInt(10), Quantity: 1},
	}, time.Minute)
	require.NoError(t, err)

	err = tm.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, created); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
