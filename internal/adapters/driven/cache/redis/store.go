// Package redis provides a Redis-backed cache backend.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.CacheBackend = (*Store)(nil)

const (
	// DefaultTimeout bounds connects, reads and writes.
	DefaultTimeout = 5 * time.Second

	// scanCount is the COUNT hint for SCAN during pattern clears.
	scanCount = 500
)

// Config holds Redis connection settings.
type Config struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string

	// Timeout bounds dial, read and write. Defaults to 5s.
	Timeout time.Duration
}

// Store is a cache backend on a Redis server.
type Store struct {
	client *goredis.Client
}

// New parses the URL and creates a client. It does not contact the server;
// call Ping to check reachability.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: redis url is empty", domain.ErrConfiguration)
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis url: %v", domain.ErrConfiguration, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	return &Store{client: goredis.NewClient(opts)}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

// Get returns the stored bytes for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get", err)
	}
	return data, true, nil
}

// Set stores data under key. A zero ttl stores without expiry.
func (s *Store) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, unavailable("delete", err)
	}
	return n > 0, nil
}

// Clear removes keys matching pattern using SCAN so the server is never
// blocked by KEYS. An empty pattern flushes the database; Redis does not
// report how many keys that removed, so the count is domain.UnknownCount.
func (s *Store) Clear(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		if err := s.client.FlushDB(ctx).Err(); err != nil {
			return 0, unavailable("flush", err)
		}
		return domain.UnknownCount, nil
	}

	removed := 0
	iter := s.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	batch := make([]string, 0, scanCount)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return unavailable("clear", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanCount {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, unavailable("scan", err)
	}
	if err := flush(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Len returns the database key count.
func (s *Store) Len(ctx context.Context) (int64, error) {
	n, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return domain.UnknownCount, unavailable("dbsize", err)
	}
	return n, nil
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Kind identifies the backend.
func (s *Store) Kind() domain.CacheBackend {
	return domain.CacheBackendRedis
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", domain.ErrCacheUnavailable, op, err)
}
