// Package cache implements the namespaced key/value cache used for
// embeddings, chunk sets and query answers.
//
// Two backends sit behind one interface: Redis (shared, survives restarts)
// and an in-process store. Open selects Redis when configured and
// reachable, wrapping it so that any later Redis failure degrades to the
// in-process store instead of failing the request.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/docqa/internal/adapters/driven/cache/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Verify interface compliance.
var _ driven.Cache = (*Cache)(nil)

// pingTimeout bounds the reachability check at startup.
const pingTimeout = 2 * time.Second

// Cache serialises values and counts hits, misses, sets and deletes over
// a byte backend. Backend errors are logged and reported as misses.
type Cache struct {
	backend driven.CacheBackend

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// New creates a cache over backend.
func New(backend driven.CacheBackend) *Cache {
	return &Cache{backend: backend}
}

// Open builds the cache described by settings. A Redis backend that cannot
// be created or reached yields the in-process store (still wrapped, so it
// is re-probed later). It never fails.
func Open(ctx context.Context, settings domain.CacheSettings) *Cache {
	local := memory.New(settings.SweepInterval, memory.WithMaxEntries(settings.MaxEntries))

	if settings.Backend != domain.CacheBackendRedis {
		logger.Debug("cache: using in-process store (max %d entries)", settings.MaxEntries)
		return New(local)
	}

	remote, err := redis.New(redis.Config{URL: settings.RedisURL})
	if err != nil {
		logger.Warn("cache: %v, using in-process store", err)
		return New(local)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := remote.Ping(pingCtx); err != nil {
		logger.Warn("cache: redis unreachable at startup, using in-process store: %v", err)
		return New(NewDegraded(remote, local, settings.ReprobeInterval))
	}

	logger.Debug("cache: connected to redis")
	return New(NewResilient(remote, local, settings.ReprobeInterval))
}

// Get decodes the value stored under key into dst.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		logger.Warn("cache: get %s: %v", key, err)
		c.misses.Add(1)
		return false, nil
	}
	if !ok {
		c.misses.Add(1)
		return false, nil
	}

	if err := Decode(data, dst); err != nil {
		// A value that cannot be decoded is dropped and treated as a miss.
		logger.Warn("cache: dropping %s: %v", key, err)
		_, _ = c.backend.Delete(ctx, key)
		c.misses.Add(1)
		return false, nil
	}

	c.hits.Add(1)
	return true, nil
}

// Set stores value under key with ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		logger.Warn("cache: set %s: %v", key, err)
		return nil
	}
	c.sets.Add(1)
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	existed, err := c.backend.Delete(ctx, key)
	if err != nil {
		logger.Warn("cache: delete %s: %v", key, err)
		return nil
	}
	if existed {
		c.deletes.Add(1)
	}
	return nil
}

// Clear removes keys matching pattern.
func (c *Cache) Clear(ctx context.Context, pattern string) (int, error) {
	n, err := c.backend.Clear(ctx, pattern)
	if err != nil {
		if errors.Is(err, domain.ErrCacheUnavailable) {
			logger.Warn("cache: clear %q: %v", pattern, err)
			return 0, nil
		}
		return 0, fmt.Errorf("clear %q: %w", pattern, err)
	}
	if n > 0 {
		c.deletes.Add(int64(n))
	}
	logger.Debug("cache: cleared %d keys matching %q", n, pattern)
	return n, nil
}

// Stats returns the counters and the current key count.
func (c *Cache) Stats(ctx context.Context) domain.CacheStats {
	keys, err := c.backend.Len(ctx)
	if err != nil {
		keys = domain.UnknownCount
	}
	return domain.CacheStats{
		Backend:  c.backend.Kind(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Sets:     c.sets.Load(),
		Deletes:  c.deletes.Load(),
		Keys:     keys,
		Degraded: c.degraded(),
	}
}

// Health pings the backend. It never returns an error.
func (c *Cache) Health(ctx context.Context) domain.CacheHealth {
	health := domain.CacheHealth{
		Backend:  c.backend.Kind(),
		Healthy:  true,
		Degraded: c.degraded(),
	}
	if err := c.backend.Ping(ctx); err != nil {
		health.Healthy = false
		health.Message = err.Error()
	}
	if health.Degraded {
		health.Message = strings.TrimSpace("serving from in-process fallback. " + health.Message)
	}
	return health
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

func (c *Cache) degraded() bool {
	if r, ok := c.backend.(*Resilient); ok {
		return r.Degraded()
	}
	return false
}
