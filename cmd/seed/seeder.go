package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	catalogapp "github.com/gamekeys/backend/internal/application/catalog"
	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/identity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var genres = []string{"Action", "Adventure", "RPG", "Strategy", "Simulation", "Sports", "Racing", "Indie"}

// CategoryCreator creates catalog categories
type CategoryCreator interface {
	Create(ctx context.Context, req catalogapp.CreateCategoryRequest) (*catalogapp.CategoryResponse, error)
}

// ProductCreator creates catalog products
type ProductCreator interface {
	Create(ctx context.Context, req catalogapp.CreateProductRequest) (*catalogapp.ProductResponse, error)
}

// KeyAdder stores game keys for a product
type KeyAdder interface {
	AddKeys(ctx context.Context, productID uuid.UUID, req catalogapp.AddKeysRequest) (*catalogapp.AddKeysResponse, error)
}

// UserStore persists accounts
type UserStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *identity.User) error
}

// Options controls how much demo data is generated
type Options struct {
	Categories     int
	Products       int
	KeysPerProduct int
	Customers      int
	AdminEmail     string
	AdminPassword  string

	// CustomerPassword is shared by all generated customers; empty generates one each
	CustomerPassword string
}

// Summary counts what a run created
type Summary struct {
	Admin      bool
	Customers  int
	Categories int
	Products   int
	Keys       int
}

// Seeder fills an empty store with a demo catalog
type Seeder struct {
	categories CategoryCreator
	products   ProductCreator
	keys       KeyAdder
	users      UserStore
	faker      *gofakeit.Faker
	logger     *zap.Logger
}

// NewSeeder creates a Seeder. seed 0 picks a random seed.
func NewSeeder(categories CategoryCreator, products ProductCreator, keys KeyAdder, users UserStore, seed uint64, logger *zap.Logger) *Seeder {
	return &Seeder{
		categories: categories,
		products:   products,
		keys:       keys,
		users:      users,
		faker:      gofakeit.New(seed),
		logger:     logger,
	}
}

// Run creates the admin account, customers, categories, products and keys
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{}

	if opts.AdminEmail != "" {
		created, err := s.ensureUser(ctx, opts.AdminEmail, "Store Admin", opts.AdminPassword, identity.RoleAdmin)
		if err != nil {
			return summary, fmt.Errorf("admin: %w", err)
		}
		summary.Admin = created
	}

	for range opts.Customers {
		email := strings.ToLower(s.faker.Email())
		password := opts.CustomerPassword
		if password == "" {
			password = s.password()
		}
		created, err := s.ensureUser(ctx, email, s.faker.Name(), password, identity.RoleCustomer)
		if err != nil {
			return summary, fmt.Errorf("customer %s: %w", email, err)
		}
		if created {
			summary.Customers++
		}
	}

	categoryIDs := make([]uuid.UUID, 0, opts.Categories)
	for i := range min(opts.Categories, len(genres)) {
		category, err := s.categories.Create(ctx, catalogapp.CreateCategoryRequest{
			Name:        genres[i],
			Description: s.faker.HackerPhrase(),
			SortOrder:   i,
		})
		if err != nil {
			return summary, fmt.Errorf("category %s: %w", genres[i], err)
		}
		categoryIDs = append(categoryIDs, category.ID)
		summary.Categories++
	}

	titles := make(map[string]struct{}, opts.Products)
	platforms := catalog.AllPlatforms()
	for range opts.Products {
		title := s.uniqueTitle(titles)
		req := catalogapp.CreateProductRequest{
			Title:       title,
			Description: s.faker.HackerPhrase(),
			Platform:    string(platforms[s.faker.Number(0, len(platforms)-1)]),
			Price:       decimal.NewFromFloat(s.faker.Price(9.9, 349.9)).Round(2),
		}
		if len(categoryIDs) > 0 {
			id := categoryIDs[s.faker.Number(0, len(categoryIDs)-1)]
			req.CategoryID = &id
		}

		product, err := s.products.Create(ctx, req)
		if err != nil {
			return summary, fmt.Errorf("product %s: %w", title, err)
		}
		summary.Products++

		if opts.KeysPerProduct <= 0 {
			continue
		}
		added, err := s.keys.AddKeys(ctx, product.ID, catalogapp.AddKeysRequest{Codes: s.codes(opts.KeysPerProduct)})
		if err != nil {
			return summary, fmt.Errorf("keys for %s: %w", title, err)
		}
		summary.Keys += added.Added
	}

	s.logger.Info("Seed finished",
		zap.Bool("admin_created", summary.Admin),
		zap.Int("customers", summary.Customers),
		zap.Int("categories", summary.Categories),
		zap.Int("products", summary.Products),
		zap.Int("keys", summary.Keys),
	)
	return summary, nil
}

// ensureUser creates the account unless the email is taken
func (s *Seeder) ensureUser(ctx context.Context, email, name, password string, role identity.Role) (bool, error) {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if exists {
		s.logger.Debug("User exists, skipping", zap.String("email", email))
		return false, nil
	}
	user, err := identity.NewUser(email, name, password, role)
	if err != nil {
		return false, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Seeder) uniqueTitle(seen map[string]struct{}) string {
	title := s.faker.AppName()
	for suffix := 2; ; suffix++ {
		if _, dup := seen[title]; !dup {
			break
		}
		title = fmt.Sprintf("%s %d", s.faker.AppName(), suffix)
	}
	seen[title] = struct{}{}
	return title
}

func (s *Seeder) password() string {
	return s.faker.Password(true, true, false, false, false, 12) + strconv.Itoa(s.faker.Number(10, 99))
}

func (s *Seeder) codes(n int) []string {
	codes := make([]string, n)
	for i := range codes {
		codes[i] = s.faker.Regex(`[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}`)
	}
	return codes
}
