package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestGormCategoryRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormCategoryRepository(db)
	ctx := context.Background()

	rpg, err := catalog.NewCategory("RPG")
	require.NoError(t, err)
	require.NoError(t, rpg.Update("RPG", "Role playing games", 2))
	require.NoError(t, repo.Save(ctx, rpg))

	indie, err := catalog.NewCategory("Indie")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, indie))

	t.Run("finds by slug", func(t *testing.T) {
		found, err := repo.FindBySlug(ctx, "rpg")
		require.NoError(t, err)
		assert.Equal(t, rpg.ID, found.ID)
		assert.Equal(t, "Role playing games", found.Description)
	})

	t.Run("lists by sort order", func(t *testing.T) {
		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "Indie", all[0].Name)
		assert.Equal(t, "RPG", all[1].Name)
	})

	t.Run("slug existence excludes self", func(t *testing.T) {
		exists, err := repo.ExistsBySlug(ctx, "rpg", nil)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsBySlug(ctx, "rpg", &rpg.ID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("delete missing category", func(t *testing.T) {
		assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), shared.ErrNotFound)
	})

	t.Run("delete existing category", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, indie.ID))
		_, err := repo.FindByID(ctx, indie.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormProductRepository_AvailableKeys(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	elden := createTestProduct(t, db, "Elden Ring", "199.90")
	addTestKeys(t, db, elden.ID, "AAAA-1111", "BBBB-2222", "CCCC-3333")

	_, err := NewGormGameKeyRepository(db).Reserve(ctx, elden.ID, uuid.New(), 1)
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, elden.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), found.AvailableKeys)
	assert.True(t, found.Price.Equal(decimal.RequireFromString("199.90")))

	bySlug, err := repo.FindBySlug(ctx, "elden-ring")
	require.NoError(t, err)
	assert.Equal(t, elden.ID, bySlug.ID)
	assert.Equal(t, int64(2), bySlug.AvailableKeys)
}

func TestGormProductRepository_FindAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	hades := createTestProduct(t, db, "Hades", "47.49")
	_ = createTestProduct(t, db, "Celeste", "36.99")
	cyber := createTestProduct(t, db, "Cyberpunk 2077", "199.90")
	addTestKeys(t, db, hades.ID, "HADES-1")
	addTestKeys(t, db, cyber.ID, "CYBER-1", "CYBER-2")

	require.NoError(t, cyber.Deactivate())
	require.NoError(t, repo.Save(ctx, cyber))

	tests := []struct {
		name      string
		filter    catalog.ProductFilter
		wantTotal int64
		wantFirst string
	}{
		{
			name:      "all products ordered by price ascending",
			filter:    catalog.ProductFilter{Filter: shared.Filter{Page: 1, PageSize: 10, OrderBy: "price", OrderDir: "asc"}},
			wantTotal: 3,
			wantFirst: "Celeste",
		},
		{
			name:      "search is case insensitive",
			filter:    catalog.ProductFilter{Filter: shared.Filter{Page: 1, PageSize: 10, Search: "hAdE"}},
			wantTotal: 1,
			wantFirst: "Hades",
		},
		{
			name:      "only active",
			filter:    catalog.ProductFilter{Filter: shared.Filter{Page: 1, PageSize: 10, OrderBy: "title", OrderDir: "asc"}, Status: catalog.ProductStatusActive},
			wantTotal: 2,
			wantFirst: "Celeste",
		},
		{
			name:      "only in stock",
			filter:    catalog.ProductFilter{Filter: shared.Filter{Page: 1, PageSize: 10, OrderBy: "title", OrderDir: "asc"}, OnlyInStock: true},
			wantTotal: 2,
			wantFirst: "Cyberpunk 2077",
		},
		{
			name:      "unknown sort field falls back to default",
			filter:    catalog.ProductFilter{Filter: shared.Filter{Page: 1, PageSize: 1, OrderBy: "price; DROP TABLE products"}},
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, total, err := repo.FindAll(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			require.NotEmpty(t, products)
			if tt.wantFirst != "" {
				assert.Equal(t, tt.wantFirst, products[0].Title)
			}
		})
	}

	t.Run("max price filter", func(t *testing.T) {
		maxPrice := decimal.NewFromInt(50)
		products, total, err := repo.FindAll(ctx, catalog.ProductFilter{
			Filter:   shared.Filter{Page: 1, PageSize: 10},
			MaxPrice: &maxPrice,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, products, 2)
	})

	t.Run("second page", func(t *testing.T) {
		products, total, err := repo.FindAll(ctx, catalog.ProductFilter{
			Filter: shared.Filter{Page: 2, PageSize: 2, OrderBy: "title", OrderDir: "asc"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, products, 1)
		assert.Equal(t, "Hades", products[0].Title)
		assert.Equal(t, int64(1), products[0].AvailableKeys)
	})
}

func TestGormProductRepository_FindLowStock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	empty := createTestProduct(t, db, "Empty Game", "10.00")
	low := createTestProduct(t, db, "Low Game", "10.00")
	full := createTestProduct(t, db, "Full Game", "10.00")
	addTestKeys(t, db, low.ID, "LOW-1")
	addTestKeys(t, db, full.ID, "FULL-1", "FULL-2", "FULL-3")

	products, err := repo.FindLowStock(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, empty.ID, products[0].ID)
	assert.Equal(t, low.ID, products[1].ID)
	assert.Equal(t, int64(1), products[1].AvailableKeys)
}

func TestGormGameKeyRepository_AddBatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormGameKeyRepository(db)
	ctx := context.Background()

	p := createTestProduct(t, db, "Stardew Valley", "24.99")
	addTestKeys(t, db, p.ID, "KEY-1")

	var batch []*catalog.GameKey
	for _, code := range []string{"KEY-1", "KEY-2", "KEY-2", "KEY-3"} {
		k, err := catalog.NewGameKey(p.ID, code)
		require.NoError(t, err)
		batch = append(batch, k)
	}

	inserted, skipped, err := repo.AddBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, []string{"KEY-1", "KEY-2"}, skipped)

	counts, err := repo.CountByStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[catalog.KeyStatusAvailable])
	assert.Equal(t, int64(0), counts[catalog.KeyStatusSold])
}

func TestGormGameKeyRepository_DeleteAvailableByProduct(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormGameKeyRepository(db)
	ctx := context.Background()

	p := createTestProduct(t, db, "Celeste", "36.99")
	addTestKeys(t, db, p.ID, "CE-1", "CE-2", "CE-3")
	_, err := repo.Reserve(ctx, p.ID, uuid.New(), 1)
	require.NoError(t, err)

	deleted, err := repo.DeleteAvailableByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	counts, err := repo.CountByStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts[catalog.KeyStatusAvailable])
	assert.Equal(t, int64(1), counts[catalog.KeyStatusReserved])
}

func TestGormGameKeyRepository_ReservationLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormGameKeyRepository(db)
	ctx := context.Background()

	p := createTestProduct(t, db, "Hollow Knight", "27.99")
	addTestKeys(t, db, p.ID, "HK-1", "HK-2", "HK-3")

	orderA := uuid.New()
	orderB := uuid.New()

	t.Run("reserves oldest keys first", func(t *testing.T) {
		keys, err := repo.Reserve(ctx, p.ID, orderA, 2)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, "HK-1", keys[0].Code)
		assert.Equal(t, "HK-2", keys[1].Code)
		for _, k := range keys {
			assert.Equal(t, catalog.KeyStatusReserved, k.Status)
			assert.Equal(t, orderA, *k.OrderID)
		}
	})

	t.Run("insufficient stock leaves keys untouched", func(t *testing.T) {
		_, err := repo.Reserve(ctx, p.ID, orderB, 2)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		counts, err := repo.CountByStatus(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[catalog.KeyStatusAvailable])
		assert.Equal(t, int64(2), counts[catalog.KeyStatusReserved])
	})

	t.Run("rejects non positive quantity", func(t *testing.T) {
		_, err := repo.Reserve(ctx, p.ID, orderB, 0)
		assert.Error(t, err)
	})

	t.Run("release returns keys to the pool", func(t *testing.T) {
		released, err := repo.ReleaseByOrder(ctx, orderA)
		require.NoError(t, err)
		assert.Equal(t, int64(2), released)

		keys, err := repo.FindByOrder(ctx, orderA)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("mark sold only touches reserved keys", func(t *testing.T) {
		_, err := repo.Reserve(ctx, p.ID, orderB, 3)
		require.NoError(t, err)

		sold, err := repo.MarkSoldByOrder(ctx, orderB)
		require.NoError(t, err)
		assert.Equal(t, int64(3), sold)

		again, err := repo.MarkSoldByOrder(ctx, orderB)
		require.NoError(t, err)
		assert.Equal(t, int64(0), again)

		released, err := repo.ReleaseByOrder(ctx, orderB)
		require.NoError(t, err)
		assert.Equal(t, int64(0), released)

		keys, err := repo.FindByOrder(ctx, orderB)
		require.NoError(t, err)
		require.Len(t, keys, 3)
		for _, k := range keys {
			assert.Equal(t, catalog.KeyStatusSold, k.Status)
			assert.NotNil(t, k.SoldAt)
		}
	})

	t.Run("lists keys by status", func(t *testing.T) {
		keys, total, err := repo.FindByProduct(ctx, p.ID, catalog.KeyStatusSold, shared.Filter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, keys, 2)

		_, total, err = repo.FindByProduct(ctx, p.ID, catalog.KeyStatusAvailable, shared.Filter{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})
}

func TestGormGameKeyRepository_Reserve_LocksRows(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	repo := NewGormGameKeyRepository(gormDB)
	productID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "game_keys" WHERE product_id = \$1 AND status = \$2 ORDER BY created_at ASC LIMIT .* FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "code", "status"}).
			AddRow(uuid.New(), productID, "ONLY-ONE", "available"))

	_, err = repo.Reserve(context.Background(), productID, uuid.New(), 2)

	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}
