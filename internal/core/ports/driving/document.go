package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DocumentService manages ingested documents.
type DocumentService interface {
	// List returns all documents.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetChunks returns a document's chunks in order.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// Delete removes a document with its chunks and embeddings and
	// invalidates the affected cache entries.
	Delete(ctx context.Context, documentID string) error
}
