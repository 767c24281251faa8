package cache

import (
	"context"
	"fmt"

	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/gamekeys/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backends bundles the Redis backed components, or their in-memory
// stand-ins when Redis is disabled or unreachable
type Backends struct {
	Client      *redis.Client // nil when running in memory
	Idempotency shared.IdempotencyStore
	Locker      Locker
}

// Option is a functional option for NewBackends
type Option func(*backendOptions)

type backendOptions struct {
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *backendOptions) {
		o.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// in-memory components instead of failing. Default is true.
func WithInMemoryFallback(allow bool) Option {
	return func(o *backendOptions) {
		o.allowInMemoryFallback = allow
	}
}

// NewBackends connects to Redis when enabled and builds the shared components
func NewBackends(ctx context.Context, cfg config.RedisConfig, opts ...Option) (*Backends, error) {
	o := backendOptions{logger: zap.NewNop(), allowInMemoryFallback: true}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Enabled {
		client, err := NewRedisClient(ctx, cfg)
		if err == nil {
			o.logger.Info("Using Redis backends", zap.String("addr", cfg.Addr()))
			return &Backends{
				Client:      client,
				Idempotency: NewRedisIdempotencyStore(client, ""),
				Locker:      NewRedisLocker(client),
			}, nil
		}
		if !o.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		o.logger.Warn("Redis unavailable, falling back to in-memory backends. "+
			"Webhook dedupe and job locks will not be shared between instances.",
			zap.Error(err),
		)
	}

	return &Backends{
		Idempotency: NewInMemoryIdempotencyStore(),
		Locker:      NewLocalLocker(),
	}, nil
}

// Close releases the idempotency store and the Redis client
func (b *Backends) Close() error {
	_ = b.Idempotency.Close()
	if b.Client != nil {
		return b.Client.Close()
	}
	return nil
}
