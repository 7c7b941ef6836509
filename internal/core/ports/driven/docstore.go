package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// UpdateStatus sets the ingestion status and error message.
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error

	// DeleteDocument removes a document, its chunks and their embeddings.
	DeleteDocument(ctx context.Context, id string) error

	// ReplaceChunks discards every chunk of the document (and their
	// embeddings) and stores chunks in a single transaction.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// CountChunks returns the number of chunks across all documents.
	CountChunks(ctx context.Context) (int, error)
}

// EmbeddingStore persists chunk vectors.
type EmbeddingStore interface {
	// SaveEmbeddings stores embeddings in one transaction.
	// A failure leaves none of them stored.
	SaveEmbeddings(ctx context.Context, embeddings []domain.Embedding) error

	// GetEmbeddings returns the embeddings of a document's chunks keyed by chunk ID.
	GetEmbeddings(ctx context.Context, documentID string) (map[string]domain.Embedding, error)

	// DeleteEmbeddings removes every embedding of a document's chunks.
	DeleteEmbeddings(ctx context.Context, documentID string) (int, error)

	// ListEmbeddedChunks returns the embedded chunks of the given ready
	// documents. A nil slice means every ready document.
	ListEmbeddedChunks(ctx context.Context, documentIDs []string) ([]domain.EmbeddedChunk, error)

	// CountEmbeddings returns the total and the per-document embedding counts.
	CountEmbeddings(ctx context.Context) (int, map[string]int, error)

	// BumpEmbeddingGeneration records that a document's embeddings changed.
	// A document's generation only grows.
	BumpEmbeddingGeneration(ctx context.Context, documentID string) error

	// EmbeddingGenerations returns the generation of each given document.
	// Unknown documents are absent from the map.
	EmbeddingGenerations(ctx context.Context, documentIDs []string) (map[string]int64, error)
}
