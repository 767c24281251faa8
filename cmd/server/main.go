package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	adminapp "github.com/gamekeys/backend/internal/application/admin"
	cartapp "github.com/gamekeys/backend/internal/application/cart"
	catalogapp "github.com/gamekeys/backend/internal/application/catalog"
	identityapp "github.com/gamekeys/backend/internal/application/identity"
	orderapp "github.com/gamekeys/backend/internal/application/order"
	"github.com/gamekeys/backend/internal/infrastructure/auth"
	"github.com/gamekeys/backend/internal/infrastructure/cache"
	"github.com/gamekeys/backend/internal/infrastructure/config"
	"github.com/gamekeys/backend/internal/infrastructure/event"
	"github.com/gamekeys/backend/internal/infrastructure/logger"
	"github.com/gamekeys/backend/internal/infrastructure/persistence"
	"github.com/gamekeys/backend/internal/infrastructure/pix"
	"github.com/gamekeys/backend/internal/infrastructure/scheduler"
	"github.com/gamekeys/backend/internal/infrastructure/storage"
	"github.com/gamekeys/backend/internal/infrastructure/telemetry"
	"github.com/gamekeys/backend/internal/interfaces/http/handler"
	"github.com/gamekeys/backend/internal/interfaces/http/middleware"
	"github.com/gamekeys/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting game key store",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("payment_provider", cfg.Payment.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := router.LoadOpenAPI(ctx); err != nil {
		log.Fatal("Invalid embedded OpenAPI document", zap.Error(err))
	}

	metrics := telemetry.NewMetrics()

	// Tracing goes first so the DB instrumentation picks up the global provider
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)

	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := telemetry.NewDBInstrumentation(cfg.Telemetry, metrics, log).Register(db.DB); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	backends, err := cache.NewBackends(ctx, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	)
	if err != nil {
		log.Fatal("Failed to initialize cache backends", zap.Error(err))
	}

	var blacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if backends.Client != nil {
		blacklist = auth.NewRedisTokenBlacklist(backends.Client)
	}

	// Initialize repositories
	userRepo := persistence.NewGormUserRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	keyRepo := persistence.NewGormGameKeyRepository(db.DB)
	cartRepo := persistence.NewGormCartRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	txManager := persistence.NewGormTransactionManager(db.DB)

	gateways, err := pix.NewRegistry(cfg.Payment, cfg.App.BaseURL, log, pix.WithGatewayObserver(metrics))
	if err != nil {
		log.Fatal("Failed to configure PIX provider", zap.Error(err))
	}

	// Domain events are logged once per event id, even when a publisher retries
	eventBus := event.NewInMemoryEventBus(log, event.WithObserver(metrics))
	eventBus.Subscribe(event.NewIdempotentHandler("audit-log", event.NewLogHandler(log), backends.Idempotency, log))

	// Application services
	jwtService := auth.NewJWTService(cfg.JWT)

	authService := identityapp.NewAuthService(userRepo, jwtService, blacklist, identityapp.AuthServiceConfig{
		MaxLoginAttempts: cfg.Auth.MaxLoginAttempts,
		LockDuration:     cfg.Auth.LockDuration,
	}, log)
	authService.SetEventPublisher(eventBus)
	userService := identityapp.NewUserService(userRepo, blacklist, cfg.JWT.RefreshTokenExpiration, log)

	productService := catalogapp.NewProductService(productRepo, categoryRepo, keyRepo, txManager, log)
	productService.SetEventPublisher(eventBus)
	productService.SetConfig(catalogapp.ProductServiceConfig{
		CoverUploadExpiry:   cfg.Storage.PresignExpiry,
		CoverDownloadExpiry: cfg.Storage.PresignExpiry,
		MaxCoverSize:        cfg.Storage.MaxUploadSize,
	})
	if objectStorage := newObjectStorage(ctx, cfg, log); objectStorage != nil {
		productService.SetObjectStorage(objectStorage)
	}
	categoryService := catalogapp.NewCategoryService(categoryRepo, productRepo)
	keyService := catalogapp.NewKeyService(productRepo, keyRepo, log)
	cartService := cartapp.NewService(cartRepo, productRepo, log)

	orderConfig := orderapp.DefaultConfig()
	orderConfig.ReservationTTL = cfg.Order.ReservationTTL
	orderConfig.MaxItems = cfg.Order.MaxItems
	orderConfig.ChargeTTL = cfg.Payment.ChargeTTL
	orderConfig.BatchSize = cfg.Scheduler.BatchSize
	orderConfig.Workers = cfg.Scheduler.Workers
	orderConfig.MinCheckInterval = cfg.Scheduler.MinCheckInterval

	orderService := orderapp.NewService(orderRepo, productRepo, keyRepo, cartRepo, userRepo, txManager, gateways, orderConfig, log)
	orderService.SetEventPublisher(eventBus)
	orderService.SetIdempotencyStore(backends.Idempotency)
	orderService.SetLocker(backends.Locker)
	orderService.SetMetrics(metrics)
	if sandbox, ok := gateways.Sandbox(); ok {
		orderService.SetSandbox(sandbox)
		log.Warn("Sandbox PIX provider active, charges are simulated")
	}

	// Background jobs
	jobs := scheduler.NewScheduler(scheduler.Config{
		Enabled:    cfg.Scheduler.Enabled,
		JobTimeout: cfg.Scheduler.JobTimeout,
		LockTTL:    cfg.Scheduler.LockTTL,
	}, backends.Locker, log.Named("scheduler"), scheduler.WithObserver(metrics))
	registerJobs(jobs, orderService, cfg.Scheduler, log)

	dashboardService := adminapp.NewDashboardService(orderRepo, productRepo, jobs, log)

	// HTTP handlers
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version).
		AddCheck("database", db.Ping)
	if backends.Client != nil {
		systemHandler.AddCheck("redis", func(ctx context.Context) error {
			return backends.Client.Ping(ctx).Err()
		})
	}
	handlers := router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Product:  handler.NewProductHandler(productService),
		Category: handler.NewCategoryHandler(categoryService),
		Key:      handler.NewKeyHandler(keyService),
		Cart:     handler.NewCartHandler(cartService),
		Order:    handler.NewOrderHandler(orderService),
		Payment:  handler.NewPaymentHandler(orderService),
		Admin:    handler.NewAdminHandler(userService, dashboardService),
		System:   systemHandler,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	skipPaths := []string{"/health", cfg.Metrics.Path}
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName:      cfg.Telemetry.ServiceName,
		Enabled:          cfg.Telemetry.Enabled,
		SkipPathPrefixes: skipPaths,
	}))
	engine.Use(middleware.SpanAttributes())
	if cfg.Metrics.Enabled {
		engine.Use(middleware.HTTPMetrics(metrics, skipPaths...))
	}
	securityConfig := middleware.DefaultSecurityConfig()
	securityConfig.HSTSEnabled = cfg.IsProduction()
	engine.Use(middleware.SecureWithConfig(securityConfig))
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	var limiters []*middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		limiters = append(limiters, limiter)
		engine.Use(middleware.RateLimit(limiter))
	}
	guards := router.Guards{
		Auth: middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			JWTService:     jwtService,
			TokenBlacklist: blacklist,
			Logger:         log,
		}),
		OptionalAuth: middleware.OptionalJWTAuthMiddleware(jwtService),
		AdminOnly:    middleware.AdminOnly(),
	}
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		limiters = append(limiters, authLimiter)
		guards.AuthRateLimit = middleware.AuthRateLimit(authLimiter)
	}

	engine.GET("/health", systemHandler.Health)
	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}
	if cfg.Swagger.Enabled {
		router.RegisterDocs(engine, middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, guards.Auth))
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	for _, group := range router.StorefrontGroups(handlers, guards) {
		r.Register(group)
	}
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	if err := jobs.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		cleanupLimiters(gctx, limiters, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := jobs.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := eventBus.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}

	if err := backends.Close(); err != nil {
		log.Error("Error closing cache backends", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

// registerJobs schedules the PIX reconciler and the order expiry sweep
func registerJobs(jobs *scheduler.Scheduler, orders *orderapp.Service, cfg config.SchedulerConfig, log *zap.Logger) {
	register := func(name string, interval time.Duration, run func(context.Context) (int, error)) {
		err := jobs.Register(scheduler.Job{
			Name:     name,
			Interval: interval,
			Run: func(ctx context.Context) error {
				n, err := run(ctx)
				if n > 0 {
					log.Info("Job processed orders", zap.String("job", name), zap.Int("orders", n))
				}
				return err
			},
		})
		if err != nil {
			log.Fatal("Failed to register job", zap.String("job", name), zap.Error(err))
		}
	}

	register("payment-reconcile", cfg.PollInterval, orders.ReconcileAwaitingPayment)
	register("order-expiry", cfg.ExpiryInterval, orders.ExpireOrders)
}

// newObjectStorage returns the cover image store. Outside production a
// disabled bucket falls back to an in-memory store; in production covers are
// turned off instead.
func newObjectStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) catalogapp.ObjectStorage {
	if !cfg.Storage.Enabled {
		if cfg.IsProduction() {
			log.Info("Object storage disabled, cover images unavailable")
			return nil
		}
		log.Info("Object storage disabled, using in-memory cover storage")
		return storage.NewMemoryObjectStorage(cfg.App.BaseURL + "/storage")
	}

	s3Storage, err := storage.NewS3ObjectStorage(&cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiry),
	)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	if err := s3Storage.EnsureBucket(ctx); err != nil {
		log.Fatal("Failed to prepare storage bucket", zap.Error(err))
	}
	log.Info("Object storage ready", zap.String("bucket", s3Storage.Bucket()))
	return s3Storage
}

// cleanupLimiters drops idle rate limiter entries until ctx is done
func cleanupLimiters(ctx context.Context, limiters []*middleware.RateLimiter, log *zap.Logger) {
	if len(limiters) == 0 {
		return
	}
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := 0
			for _, l := range limiters {
				removed += l.Cleanup()
			}
			if removed > 0 {
				log.Debug("Rate limiter entries evicted", zap.Int("entries", removed))
			}
		}
	}
}
