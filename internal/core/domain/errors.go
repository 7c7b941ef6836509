package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	// Query validation failures wrap this error before any retrieval happens.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider, backend or processor type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrConfiguration indicates the application cannot start with the
	// current configuration, for example when the embedding model fails to load.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbeddingUnavailable indicates the embedding model is not reachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates no generation backend is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrGenerationBackend indicates the generation backend failed or timed out.
	// The query pipeline never returns it to callers; it falls back to an
	// extractive answer instead.
	ErrGenerationBackend = errors.New("generation backend error")

	// ErrCacheUnavailable indicates the shared cache cannot be reached.
	// Callers degrade to the in-process cache.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrDimensionMismatch indicates a vector has the wrong number of components.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrDocumentNotReady indicates an operation needs a processed document.
	ErrDocumentNotReady = errors.New("document not ready")
)
