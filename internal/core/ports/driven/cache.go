package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Cache is the namespaced key/value cache shared by the embedding and
// query paths. Values are serialised by content type: []float32 as packed
// binary, everything else as JSON.
//
// Cache errors are never fatal to callers; implementations degrade to an
// in-process store and report it through Stats and Health.
type Cache interface {
	// Get decodes the value for key into dst. Returns false on a miss.
	Get(ctx context.Context, key string, dst any) (bool, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes keys matching a glob pattern and returns how many were
	// removed. An empty pattern flushes everything; backends that cannot
	// count a flush return domain.UnknownCount.
	Clear(ctx context.Context, pattern string) (int, error)

	// Stats returns the hit/miss counters and key count.
	Stats(ctx context.Context) domain.CacheStats

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) domain.CacheHealth

	// Close releases resources.
	Close() error
}

// CacheBackend is a raw byte store behind a Cache.
type CacheBackend interface {
	// Get returns the stored bytes. Returns false on a miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes keys matching a glob pattern. An empty pattern flushes all.
	Clear(ctx context.Context, pattern string) (int, error)

	// Len returns the number of live keys, or domain.UnknownCount.
	Len(ctx context.Context) (int64, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Kind identifies the backend.
	Kind() domain.CacheBackend

	// Close releases resources.
	Close() error
}
