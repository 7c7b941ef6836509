package services

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure CacheService implements the interface.
var _ driving.CacheAdmin = (*CacheService)(nil)

// CacheService exposes cache maintenance.
type CacheService struct {
	cache driven.Cache
}

// NewCacheService creates a cache service.
func NewCacheService(cache driven.Cache) *CacheService {
	return &CacheService{cache: cache}
}

// Stats returns the cache counters.
func (s *CacheService) Stats(ctx context.Context) domain.CacheStats {
	return s.cache.Stats(ctx)
}

// Health reports whether the backend is reachable.
func (s *CacheService) Health(ctx context.Context) domain.CacheHealth {
	return s.cache.Health(ctx)
}

// Clear removes keys matching pattern; an empty pattern flushes everything.
func (s *CacheService) Clear(ctx context.Context, pattern string) (int, error) {
	n, err := s.cache.Clear(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if pattern == "" {
		logger.Info("flushed cache")
	} else {
		logger.Info("cleared %d cache entries matching %q", n, pattern)
	}
	return n, nil
}
