package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/scanstock/backend/internal/domain/scanning"
	"go.uber.org/zap"
)

const (
	defaultLockPrefix = "scanstock:endpoint:lock:"
	defaultLockTTL    = 2 * time.Minute
	releaseTimeout    = 3 * time.Second
)

// releaseScript deletes the lock only if it still holds our token, so an expired
// lock re-acquired by another instance is never released by us
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisEndpointLock implements scanning.EndpointLock with SET NX PX, letting several
// server instances share one camera without opening it concurrently
type RedisEndpointLock struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisEndpointLock creates a lock over an existing client
func NewRedisEndpointLock(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisEndpointLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisEndpointLock{
		client:    client,
		keyPrefix: defaultLockPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// TryLock claims the endpoint or returns scanning.ErrEndpointBusy if another holder has it.
// The TTL bounds how long a crashed holder can keep the camera locked.
func (l *RedisEndpointLock) TryLock(ctx context.Context, endpoint string) (func(), error) {
	key := l.keyPrefix + scanning.NormalizeEndpoint(endpoint)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire endpoint lock: %w", err)
	}
	if !ok {
		return nil, scanning.ErrEndpointBusy
	}

	release := func() {
		// the caller's context may already be cancelled when the scan ends
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release endpoint lock",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
	return sync.OnceFunc(release), nil
}

// Close closes the Redis client
func (l *RedisEndpointLock) Close() error {
	return l.client.Close()
}

var _ scanning.EndpointLock = (*RedisEndpointLock)(nil)
