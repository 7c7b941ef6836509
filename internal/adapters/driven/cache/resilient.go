package cache

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Verify interface compliance.
var _ driven.CacheBackend = (*Resilient)(nil)

// Resilient serves from a primary (remote) backend and degrades to a
// fallback (in-process) backend on the first primary error. While
// degraded it re-probes the primary every reprobe interval. Each
// transition is logged once.
//
// Deletes and clears issued while degraded are replayed on the primary
// when it recovers, so invalidated entries do not resurface.
type Resilient struct {
	primary  driven.CacheBackend
	fallback driven.CacheBackend
	reprobe  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	degraded  bool
	probing   bool
	lastProbe time.Time
	pending   []invalidation
}

type invalidation struct {
	key     string
	pattern string
	clear   bool
}

// NewResilient wraps primary with fallback.
func NewResilient(primary, fallback driven.CacheBackend, reprobe time.Duration) *Resilient {
	return &Resilient{
		primary:  primary,
		fallback: fallback,
		reprobe:  reprobe,
		now:      time.Now,
	}
}

// NewDegraded wraps primary with fallback, starting in degraded mode.
// Used when the primary was unreachable at construction.
func NewDegraded(primary, fallback driven.CacheBackend, reprobe time.Duration) *Resilient {
	r := NewResilient(primary, fallback, reprobe)
	r.degraded = true
	r.lastProbe = r.now()
	return r
}

// Degraded reports whether requests are served by the fallback.
func (r *Resilient) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// Get reads from the active backend.
func (r *Resilient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r.usePrimary(ctx) {
		data, ok, err := r.primary.Get(ctx, key)
		if err == nil {
			return data, ok, nil
		}
		r.degrade(err)
	}
	return r.fallback.Get(ctx, key)
}

// Set writes to the active backend.
func (r *Resilient) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if r.usePrimary(ctx) {
		err := r.primary.Set(ctx, key, data, ttl)
		if err == nil {
			return nil
		}
		r.degrade(err)
	}
	return r.fallback.Set(ctx, key, data, ttl)
}

// Delete removes key from the active backend.
func (r *Resilient) Delete(ctx context.Context, key string) (bool, error) {
	if r.usePrimary(ctx) {
		ok, err := r.primary.Delete(ctx, key)
		if err == nil {
			return ok, nil
		}
		r.degrade(err)
	}
	r.remember(invalidation{key: key})
	return r.fallback.Delete(ctx, key)
}

// Clear removes matching keys from the active backend.
func (r *Resilient) Clear(ctx context.Context, pattern string) (int, error) {
	if r.usePrimary(ctx) {
		n, err := r.primary.Clear(ctx, pattern)
		if err == nil {
			return n, nil
		}
		r.degrade(err)
	}
	r.remember(invalidation{pattern: pattern, clear: true})
	return r.fallback.Clear(ctx, pattern)
}

// Len counts keys in the active backend.
func (r *Resilient) Len(ctx context.Context) (int64, error) {
	if r.usePrimary(ctx) {
		n, err := r.primary.Len(ctx)
		if err == nil {
			return n, nil
		}
		r.degrade(err)
	}
	return r.fallback.Len(ctx)
}

// Ping checks the primary without changing mode.
func (r *Resilient) Ping(ctx context.Context) error {
	return r.primary.Ping(ctx)
}

// Kind reports the backend currently serving requests.
func (r *Resilient) Kind() domain.CacheBackend {
	if r.Degraded() {
		return r.fallback.Kind()
	}
	return r.primary.Kind()
}

// Close closes both backends.
func (r *Resilient) Close() error {
	perr := r.primary.Close()
	ferr := r.fallback.Close()
	if perr != nil {
		return perr
	}
	return ferr
}

// usePrimary returns true when the primary should serve the request,
// re-probing it when degraded and the reprobe interval has passed.
func (r *Resilient) usePrimary(ctx context.Context) bool {
	r.mu.Lock()
	if !r.degraded {
		r.mu.Unlock()
		return true
	}
	if r.probing || r.now().Sub(r.lastProbe) < r.reprobe {
		r.mu.Unlock()
		return false
	}
	r.probing = true
	r.lastProbe = r.now()
	r.mu.Unlock()

	err := r.primary.Ping(ctx)
	if err == nil {
		err = r.replay(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.probing = false
	if err != nil {
		return false
	}
	r.degraded = false
	logger.Info("cache: %s reachable again, leaving in-process fallback", r.primary.Kind())
	return true
}

// replay applies invalidations recorded while degraded.
func (r *Resilient) replay(ctx context.Context) error {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for i, inv := range pending {
		var err error
		if inv.clear {
			_, err = r.primary.Clear(ctx, inv.pattern)
		} else {
			_, err = r.primary.Delete(ctx, inv.key)
		}
		if err != nil {
			r.mu.Lock()
			r.pending = append(pending[i:], r.pending...)
			r.mu.Unlock()
			return err
		}
	}
	return nil
}

func (r *Resilient) degrade(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.degraded {
		return
	}
	r.degraded = true
	r.lastProbe = r.now()
	logger.Warn("cache: %s unavailable, using in-process cache: %v", r.primary.Kind(), err)
}

func (r *Resilient) remember(inv invalidation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.degraded {
		return
	}
	if inv.clear && inv.pattern == "" {
		// A flush supersedes everything recorded before it.
		r.pending = r.pending[:0]
	}
	r.pending = append(r.pending, inv)
}
