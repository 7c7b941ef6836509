package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// CacheAdmin exposes cache maintenance to operators.
type CacheAdmin interface {
	Stats(ctx context.Context) domain.CacheStats
	Health(ctx context.Context) domain.CacheHealth

	// Clear removes keys matching pattern; empty flushes everything.
	Clear(ctx context.Context, pattern string) (int, error)
}
