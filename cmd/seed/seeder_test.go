package main

import (
	"context"
	"errors"
	"regexp"
	"testing"

	catalogapp "github.com/gamekeys/backend/internal/application/catalog"
	"github.com/gamekeys/backend/internal/domain/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCatalog struct {
	categories []catalogapp.CreateCategoryRequest
	products   []catalogapp.CreateProductRequest
	keys       map[uuid.UUID][]string
	productErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{keys: make(map[uuid.UUID][]string)}
}

type categoryCreatorFunc func(context.Context, catalogapp.CreateCategoryRequest) (*catalogapp.CategoryResponse, error)

func (f categoryCreatorFunc) Create(ctx context.Context, req catalogapp.CreateCategoryRequest) (*catalogapp.CategoryResponse, error) {
	return f(ctx, req)
}

type productCreatorFunc func(context.Context, catalogapp.CreateProductRequest) (*catalogapp.ProductResponse, error)

func (f productCreatorFunc) Create(ctx context.Context, req catalogapp.CreateProductRequest) (*catalogapp.ProductResponse, error) {
	return f(ctx, req)
}

func (c *fakeCatalog) categoryCreator() CategoryCreator {
	return categoryCreatorFunc(func(_ context.Context, req catalogapp.CreateCategoryRequest) (*catalogapp.CategoryResponse, error) {
		c.categories = append(c.categories, req)
		return &catalogapp.CategoryResponse{ID: uuid.New(), Name: req.Name}, nil
	})
}

func (c *fakeCatalog) productCreator() ProductCreator {
	return productCreatorFunc(func(_ context.Context, req catalogapp.CreateProductRequest) (*catalogapp.ProductResponse, error) {
		if c.productErr != nil {
			return nil, c.productErr
		}
		c.products = append(c.products, req)
		return &catalogapp.ProductResponse{ID: uuid.New(), Title: req.Title}, nil
	})
}

func (c *fakeCatalog) AddKeys(_ context.Context, productID uuid.UUID, req catalogapp.AddKeysRequest) (*catalogapp.AddKeysResponse, error) {
	c.keys[productID] = append(c.keys[productID], req.Codes...)
	return &catalogapp.AddKeysResponse{Added: len(req.Codes), Stock: int64(len(c.keys[productID]))}, nil
}

type fakeUsers struct {
	byEmail map[string]*identity.User
}

func (u *fakeUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := u.byEmail[identity.NormalizeEmail(email)]
	return ok, nil
}

func (u *fakeUsers) Create(_ context.Context, user *identity.User) error {
	u.byEmail[user.Email] = user
	return nil
}

func newSeeder(c *fakeCatalog, users *fakeUsers, seed uint64) *Seeder {
	return NewSeeder(c.categoryCreator(), c.productCreator(), c, users, seed, zap.NewNop())
}

func TestSeeder_Run(t *testing.T) {
	c := newFakeCatalog()
	users := &fakeUsers{byEmail: map[string]*identity.User{}}

	summary, err := newSeeder(c, users, 42).Run(context.Background(), Options{
		Categories:       3,
		Products:         5,
		KeysPerProduct:   4,
		Customers:        2,
		AdminEmail:       "admin@gamekeys.dev",
		AdminPassword:    "secret123",
		CustomerPassword: "customer123",
	})
	require.NoError(t, err)

	assert.True(t, summary.Admin)
	assert.Equal(t, 2, summary.Customers)
	assert.Equal(t, 3, summary.Categories)
	assert.Equal(t, 5, summary.Products)
	assert.Equal(t, 20, summary.Keys)

	admin := users.byEmail["admin@gamekeys.dev"]
	require.NotNil(t, admin)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.VerifyPassword("secret123"))

	keyFormat := regexp.MustCompile(`^[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}$`)
	titles := map[string]bool{}
	for _, p := range c.products {
		assert.False(t, titles[p.Title], "duplicate title %s", p.Title)
		titles[p.Title] = true
		assert.NotNil(t, p.CategoryID)
		assert.True(t, p.Price.IsPositive())
	}
	for _, codes := range c.keys {
		for _, code := range codes {
			assert.Regexp(t, keyFormat, code)
		}
	}
}

func TestSeeder_Run_SkipsExistingAdmin(t *testing.T) {
	existing, err := identity.NewUser("admin@gamekeys.dev", "Admin", "secret123", identity.RoleAdmin)
	require.NoError(t, err)
	users := &fakeUsers{byEmail: map[string]*identity.User{existing.Email: existing}}

	summary, err := newSeeder(newFakeCatalog(), users, 1).Run(context.Background(), Options{
		AdminEmail:    "Admin@GameKeys.dev",
		AdminPassword: "other1234",
	})
	require.NoError(t, err)
	assert.False(t, summary.Admin)
	assert.Same(t, existing, users.byEmail["admin@gamekeys.dev"])
}

func TestSeeder_Run_CapsCategoriesAtGenres(t *testing.T) {
	c := newFakeCatalog()
	summary, err := newSeeder(c, &fakeUsers{byEmail: map[string]*identity.User{}}, 7).
		Run(context.Background(), Options{Categories: 50})
	require.NoError(t, err)
	assert.Equal(t, len(genres), summary.Categories)
}

func TestSeeder_Run_StopsOnProductError(t *testing.T) {
	c := newFakeCatalog()
	c.productErr = errors.New("db down")

	summary, err := newSeeder(c, &fakeUsers{byEmail: map[string]*identity.User{}}, 3).
		Run(context.Background(), Options{Products: 3, KeysPerProduct: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Zero(t, summary.Products)
	assert.Empty(t, c.keys)
}

func TestSeeder_Deterministic(t *testing.T) {
	run := func() []string {
		c := newFakeCatalog()
		_, err := newSeeder(c, &fakeUsers{byEmail: map[string]*identity.User{}}, 99).
			Run(context.Background(), Options{Products: 4})
		require.NoError(t, err)
		titles := make([]string, len(c.products))
		for i, p := range c.products {
			titles[i] = p.Title
		}
		return titles
	}
	assert.Equal(t, run(), run())
}
