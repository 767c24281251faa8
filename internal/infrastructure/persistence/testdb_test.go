package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/identity"
	"github.com/gamekeys/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory SQLite database with the store schema
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// Every pooled connection would get its own empty in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.UserModel{},
		&models.CategoryModel{},
		&models.ProductModel{},
		&models.GameKeyModel{},
		&models.CartModel{},
		&models.CartItemModel{},
		&models.OrderModel{},
		&models.OrderItemModel{},
	)
	require.NoError(t, err)

	return db
}

func createTestProduct(t *testing.T, db *gorm.DB, title string, price string) *catalog.Product {
	t.Helper()

	p, err := catalog.NewProduct(title, catalog.PlatformSteam, decimal.RequireFromString(price))
	require.NoError(t, err)
	require.NoError(t, NewGormProductRepository(db).Save(context.Background(), p))
	return p
}

func addTestKeys(t *testing.T, db *gorm.DB, productID uuid.UUID, codes ...string) {
	t.Helper()

	keys := make([]*catalog.GameKey, 0, len(codes))
	for _, code := range codes {
		k, err := catalog.NewGameKey(productID, code)
		require.NoError(t, err)
		keys = append(keys, k)
		time.Sleep(time.Millisecond)
	}
	_, _, err := NewGormGameKeyRepository(db).AddBatch(context.Background(), keys)
	require.NoError(t, err)
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *identity.User {
	t.Helper()

	u, err := identity.NewCustomer(email, "Test User", "s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, NewGormUserRepository(db).Create(context.Background(), u))
	return u
}
