package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// startRedis runs a throwaway Redis container. The test is skipped when
// Docker is not available.
func startRedis(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
	pool.MaxWait = 30 * time.Second

	resource, err := pool.Run("redis", "7-alpine", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pool.Purge(resource)
	})

	url := fmt.Sprintf("redis://localhost:%s/0", resource.GetPort("6379/tcp"))
	store, err := New(Config{URL: url, Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, pool.Retry(func() error {
		return store.Ping(context.Background())
	}))
	return store
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New(Config{URL: "http://not-redis"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestStore_Unreachable(t *testing.T) {
	store, err := New(Config{URL: "redis://127.0.0.1:1/0", Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	defer store.Close()

	err = store.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	_, _, err = store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestStore_Integration(t *testing.T) {
	store := startRedis(t)
	ctx := context.Background()

	assert.Equal(t, domain.CacheBackendRedis, store.Kind())

	t.Run("set get delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", []byte("value"), 0))

		data, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("value"), data)

		existed, err := store.Delete(ctx, "k")
		require.NoError(t, err)
		assert.True(t, existed)

		_, ok, err = store.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "ttl", []byte("x"), 100*time.Millisecond))

		assert.Eventually(t, func() bool {
			_, ok, err := store.Get(ctx, "ttl")
			return err == nil && !ok
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("pattern clear counts exactly", func(t *testing.T) {
		for i := 0; i < 1200; i++ {
			require.NoError(t, store.Set(ctx, fmt.Sprintf("query:p1:%d", i), []byte("x"), 0))
		}
		require.NoError(t, store.Set(ctx, "query:p2:0", []byte("x"), 0))

		n, err := store.Clear(ctx, "query:p1:*")
		require.NoError(t, err)
		assert.Equal(t, 1200, n)

		_, ok, err := store.Get(ctx, "query:p2:0")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("flush returns unknown count", func(t *testing.T) {
		n, err := store.Clear(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, domain.UnknownCount, n)

		size, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), size)
	})
}
