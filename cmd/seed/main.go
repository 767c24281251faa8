package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	catalogapp "github.com/gamekeys/backend/internal/application/catalog"
	"github.com/gamekeys/backend/internal/infrastructure/config"
	"github.com/gamekeys/backend/internal/infrastructure/logger"
	"github.com/gamekeys/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	var (
		opts Options
		seed uint64
	)
	flag.IntVar(&opts.Categories, "categories", 6, "Number of categories (at most 8)")
	flag.IntVar(&opts.Products, "products", 40, "Number of products")
	flag.IntVar(&opts.KeysPerProduct, "keys", 25, "Keys stocked per product")
	flag.IntVar(&opts.Customers, "customers", 10, "Number of customer accounts")
	flag.StringVar(&opts.AdminEmail, "admin-email", "admin@gamekeys.dev", "Admin account email (empty skips the admin)")
	flag.StringVar(&opts.CustomerPassword, "customer-password", "", "Password shared by generated customers")
	flag.Uint64Var(&seed, "seed", 0, "Random seed (0 = random)")
	flag.Parse()

	opts.AdminPassword = os.Getenv("STORE_SEED_ADMIN_PASSWORD")
	if opts.AdminEmail != "" && opts.AdminPassword == "" {
		fmt.Fprintln(os.Stderr, "STORE_SEED_ADMIN_PASSWORD must be set to create the admin account")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		fmt.Fprintln(os.Stderr, "Refusing to seed a production database")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	db, err := persistence.NewDatabase(&cfg.Database, logger.NewGormLogger(log, gormlogger.Warn, cfg.Telemetry.DBSlowQueryThresh))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	productRepo := persistence.NewGormProductRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	keyRepo := persistence.NewGormGameKeyRepository(db.DB)
	txManager := persistence.NewGormTransactionManager(db.DB)

	seeder := NewSeeder(
		catalogapp.NewCategoryService(categoryRepo, productRepo),
		catalogapp.NewProductService(productRepo, categoryRepo, keyRepo, txManager, log),
		catalogapp.NewKeyService(productRepo, keyRepo, log),
		persistence.NewGormUserRepository(db.DB),
		seed,
		log,
	)
	if _, err := seeder.Run(context.Background(), opts); err != nil {
		log.Fatal("Seed failed", zap.Error(err))
	}
}
