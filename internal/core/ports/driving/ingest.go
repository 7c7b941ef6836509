package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// IngestRequest is extracted document text submitted for processing.
type IngestRequest struct {
	Title      string
	Content    string
	SourceType domain.SourceType
	URI        string
	Source     domain.SourceMetadata

	// ProjectID links the new document to a project when set.
	ProjectID string
}

// IngestService chunks and embeds documents in the background.
type IngestService interface {
	// Submit stores the document as queued and schedules processing.
	Submit(ctx context.Context, req IngestRequest) (*domain.Document, error)

	// Status returns the document with its current ingestion status.
	Status(ctx context.Context, documentID string) (*domain.Document, error)

	// Reprocess re-chunks a document and regenerates its embeddings.
	Reprocess(ctx context.Context, documentID string) error

	// Wait blocks until the document reaches a terminal status.
	Wait(ctx context.Context, documentID string) (*domain.Document, error)
}

// EmbeddingAdmin reports on and bulk-generates embeddings.
type EmbeddingAdmin interface {
	// Stats summarises embedding coverage.
	Stats(ctx context.Context) (*domain.EmbeddingStats, error)

	// EmbedAll embeds every ready document in a project, or all documents
	// when projectID is empty. Returns the number of documents processed.
	EmbedAll(ctx context.Context, projectID string, force bool) (int, error)
}
