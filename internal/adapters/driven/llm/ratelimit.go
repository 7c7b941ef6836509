// Package llm holds wrappers shared by the generation backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure RateLimited implements the interface.
var _ driven.LLMService = (*RateLimited)(nil)

// DefaultBackoff is applied after a backend reports rate limiting.
const DefaultBackoff = 30 * time.Second

// RateLimited throttles Generate calls with a token bucket and backs off
// after the backend answers with a rate limit error.
type RateLimited struct {
	driven.LLMService

	limiter *rate.Limiter
	backoff time.Duration

	mu      sync.Mutex
	retryAt time.Time
}

// NewRateLimited wraps next. A non-positive rps disables throttling but
// keeps the backoff behaviour.
func NewRateLimited(next driven.LLMService, rps float64, burst int) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		LLMService: next,
		limiter:    rate.NewLimiter(limit, burst),
		backoff:    DefaultBackoff,
	}
}

// Generate waits for a token, then delegates.
func (r *RateLimited) Generate(ctx context.Context, req driven.GenerateRequest) (*driven.Generation, error) {
	if err := r.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}

	gen, err := r.LLMService.Generate(ctx, req)
	if errors.Is(err, domain.ErrRateLimited) {
		r.mu.Lock()
		r.retryAt = time.Now().Add(r.backoff)
		r.mu.Unlock()
		logger.Warn("llm: %s rate limited, backing off for %s", r.ModelName(), r.backoff)
	}
	return gen, err
}

func (r *RateLimited) wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}
