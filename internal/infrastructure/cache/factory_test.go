package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/scanstock/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis points at a port nothing listens on
func unreachableRedis() config.RedisConfig {
	return config.RedisConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    1,
		LockTTL: time.Minute,
	}
}

func TestEndpointLockFactory_DisabledUsesLocalLock(t *testing.T) {
	f := NewEndpointLockFactory(config.RedisConfig{Enabled: false})

	lock, closeFn, err := f.CreateLock(context.Background())
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &scanning.LocalEndpointLock{}, lock)
}

func TestEndpointLockFactory_FallsBackWhenRedisUnavailable(t *testing.T) {
	f := NewEndpointLockFactory(unreachableRedis())

	lock, closeFn, err := f.CreateLock(context.Background())
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &scanning.LocalEndpointLock{}, lock)
}

func TestEndpointLockFactory_NoFallback(t *testing.T) {
	f := NewEndpointLockFactory(unreachableRedis(), WithLocalFallback(false))

	lock, _, err := f.CreateLock(context.Background())
	require.Error(t, err)
	assert.Nil(t, lock)
	assert.Contains(t, err.Error(), "redis required")
}

func TestRedisEndpointLock_ConnectionError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	lock := NewRedisEndpointLock(client, 0, nil)
	defer lock.Close()

	assert.Equal(t, defaultLockTTL, lock.ttl)

	release, err := lock.TryLock(context.Background(), "http://cam/video")
	require.Error(t, err)
	assert.Nil(t, release)
	assert.NotErrorIs(t, err, scanning.ErrEndpointBusy)
	assert.Contains(t, err.Error(), "failed to acquire endpoint lock")
}
