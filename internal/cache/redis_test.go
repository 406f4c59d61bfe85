package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisAddr() string {
	if addr := os.Getenv("REDIS_URL"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// TestRedisStoreRoundTrip requires a running Redis (REDIS_URL or localhost:6379)
func TestRedisStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	store, err := NewRedisStore(RedisConfig{Addr: redisAddr(), Prefix: "callengine-test:"})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	defer store.Del(ctx, "func:a")

	_, err = store.Get(ctx, "func:missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "func:a", []byte("1"), time.Minute))
	value, err := store.Get(ctx, "func:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	count, err := store.Count(ctx, "func:a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, store.Del(ctx, "func:a"))
	_, err = store.Get(ctx, "func:a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerOverRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	store, err := NewRedisStore(RedisConfig{Addr: redisAddr(), Prefix: "callengine-test:"})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	m, err := NewManager(DefaultConfig(), store, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	m.Set(ctx, "info:hours:en", []byte(`"9-19"`), time.Minute)
	defer m.Del(ctx, "info:hours:en")

	remote, err := store.Get(ctx, "info:hours:en")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"9-19"`), remote)
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
