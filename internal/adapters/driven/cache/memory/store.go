// Package memory provides an in-process cache backend.
package memory

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.CacheBackend = (*Store)(nil)

// DefaultMaxEntries bounds the store when no capacity is given.
const DefaultMaxEntries = 10000

type entry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
	storedAt  time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is a bounded in-process byte cache with TTL.
// A single mutex guards the map; a background goroutine sweeps expired keys.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxEntries int
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures the store.
type Option func(*Store)

// WithMaxEntries sets the capacity.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store. When sweepInterval is positive a background
// goroutine removes expired entries at that interval until Close.
func New(sweepInterval time.Duration, opts ...Option) *Store {
	s := &Store{
		entries:    make(map[string]*entry),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop(sweepInterval)
	}
	return s
}

// Get returns the stored bytes for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set stores data under key, evicting an entry when the store is full.
func (s *Store) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictLocked(now)
	}

	e := &entry{data: data, storedAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok, nil
}

// Clear removes keys matching the glob pattern and returns the exact count.
// An empty pattern removes everything.
func (s *Store) Clear(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pattern == "" {
		n := len(s.entries)
		s.entries = make(map[string]*entry)
		return n, nil
	}

	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}

	removed := 0
	for key := range s.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live keys.
func (s *Store) Len(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Kind identifies the backend.
func (s *Store) Kind() domain.CacheBackend {
	return domain.CacheBackendMemory
}

// Close stops the sweeper. The store remains usable.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// evictLocked frees one slot: expired entries go first, otherwise the entry
// closest to expiry, otherwise the oldest.
func (s *Store) evictLocked(now time.Time) {
	if s.sweepLocked(now) > 0 {
		return
	}

	var victim string
	var best *entry
	for key, e := range s.entries {
		if best == nil || evictBefore(e, best) {
			victim, best = key, e
		}
	}
	if best != nil {
		delete(s.entries, victim)
	}
}

func evictBefore(a, b *entry) bool {
	switch {
	case !a.expiresAt.IsZero() && b.expiresAt.IsZero():
		return true
	case a.expiresAt.IsZero() && !b.expiresAt.IsZero():
		return false
	case !a.expiresAt.IsZero():
		return a.expiresAt.Before(b.expiresAt)
	default:
		return a.storedAt.Before(b.storedAt)
	}
}
