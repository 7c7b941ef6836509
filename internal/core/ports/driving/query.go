package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// QueryService answers questions over ingested documents.
type QueryService interface {
	// Query runs the full pipeline: cache check, retrieval, rerank,
	// context build, generation and caching. When req.ConversationID is set,
	// or req.ProjectID is set, the exchange is recorded in a conversation.
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error)

	// Retrieve returns the reranked chunks for a query without generating.
	Retrieve(ctx context.Context, req domain.QueryRequest) ([]domain.RankedChunk, error)
}
