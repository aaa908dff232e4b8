package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/scanstock/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// EndpointLockFactory creates endpoint locks based on configuration
type EndpointLockFactory struct {
	redisConfig        config.RedisConfig
	logger             *zap.Logger
	allowLocalFallback bool
}

// EndpointLockFactoryOption is a functional option for configuring the factory
type EndpointLockFactoryOption func(*EndpointLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) EndpointLockFactoryOption {
	return func(f *EndpointLockFactory) {
		f.logger = logger
	}
}

// WithLocalFallback controls whether to fall back to an in-process lock when Redis is unavailable.
// Default is true.
func WithLocalFallback(allow bool) EndpointLockFactoryOption {
	return func(f *EndpointLockFactory) {
		f.allowLocalFallback = allow
	}
}

// NewEndpointLockFactory creates a new factory
func NewEndpointLockFactory(cfg config.RedisConfig, opts ...EndpointLockFactoryOption) *EndpointLockFactory {
	f := &EndpointLockFactory{
		redisConfig:        cfg,
		logger:             zap.NewNop(),
		allowLocalFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisLock connects to Redis and returns a distributed endpoint lock
func (f *EndpointLockFactory) CreateRedisLock(ctx context.Context) (*RedisEndpointLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", f.redisConfig.Addr(), err)
	}

	return NewRedisEndpointLock(client, f.redisConfig.LockTTL, f.logger), nil
}

// CreateLock returns the Redis lock when Redis is enabled and reachable.
// Otherwise it returns an in-process lock, which only guards a single server instance.
// The returned close function releases any Redis connection.
func (f *EndpointLockFactory) CreateLock(ctx context.Context) (scanning.EndpointLock, func() error, error) {
	noop := func() error { return nil }

	if !f.redisConfig.Enabled {
		f.logger.Info("using in-process endpoint lock")
		return scanning.NewLocalEndpointLock(), noop, nil
	}

	lock, err := f.CreateRedisLock(ctx)
	if err == nil {
		f.logger.Info("using Redis endpoint lock", zap.String("addr", f.redisConfig.Addr()))
		return lock, lock.Close, nil
	}

	if !f.allowLocalFallback {
		return nil, nil, fmt.Errorf("redis required for endpoint locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process endpoint lock. "+
		"Multiple server instances may open the same camera concurrently.",
		zap.Error(err),
	)
	return scanning.NewLocalEndpointLock(), noop, nil
}
