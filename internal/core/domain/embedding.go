package domain

import "time"

// Embedding is the vector stored for a single chunk.
// There is at most one embedding per chunk.
type Embedding struct {
	// ID is the unique identifier for the embedding.
	ID string

	// ChunkID links to the embedded Chunk.
	ChunkID string

	// Vector has exactly the configured model dimension.
	Vector []float32

	// Model identifies the model that produced the vector.
	Model string

	// Normalized records whether the vector was L2-normalised.
	Normalized bool

	// CreatedAt is when the embedding was stored.
	CreatedAt time.Time
}

// Dimension returns the number of vector components.
func (e *Embedding) Dimension() int {
	return len(e.Vector)
}

// EmbeddingStats summarises embedding coverage.
type EmbeddingStats struct {
	TotalEmbeddings int            `json:"total_embeddings"`
	TotalChunks     int            `json:"total_chunks"`
	ReadyDocuments  int            `json:"ready_documents"`
	Coverage        float64        `json:"coverage_percent"`
	Model           string         `json:"model"`
	Dimension       int            `json:"dimension"`
	PerDocument     map[string]int `json:"per_document,omitempty"`
}

// EmbeddedChunk is a chunk with its stored vector, as scanned at query time.
type EmbeddedChunk struct {
	Chunk         Chunk     `json:"chunk"`
	DocumentTitle string    `json:"document_title"`
	Vector        []float32 `json:"vector"`
}
