package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider names a backend that can embed text, generate answers, or both.
type AIProvider string

// Providers docqa can talk to.
const (
	// AIProviderLocal is the in-process hashing embedder. It needs no network.
	AIProviderLocal AIProvider = "local"

	// AIProviderOllama runs models on a local Ollama server.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI uses the hosted OpenAI API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic uses the hosted Anthropic API. It cannot embed.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid reports whether p is a known provider.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey reports whether p is a hosted API.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String implements fmt.Stringer.
func (p AIProvider) String() string {
	return string(p)
}

// Description is the label shown in settings listings.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderLocal:
		return "Local (feature hashing, offline)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// ChunkingSettings controls how documents are split.
type ChunkingSettings struct {
	// ChunkSize is the soft upper bound on chunk length in characters.
	ChunkSize int

	// Overlap enables carrying the last sentence into the next chunk when > 0.
	// It is also the upper bound on shared characters checked by callers.
	Overlap int

	// MaxChunksPerDoc truncates pathological documents.
	MaxChunksPerDoc int

	// MaxSegmentGap breaks a transcript chunk when consecutive segments are
	// further apart than this many seconds.
	MaxSegmentGap float64
}

// EmbeddingSettings selects and configures the embedding backend.
type EmbeddingSettings struct {
	Provider AIProvider

	// Model must produce vectors of the store's dimension.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is required for hosted providers.
	APIKey string

	// Dimension is the configured vector size. It is reconciled with the
	// model's actual output at startup.
	Dimension int

	// BatchSize is the number of embeddings committed per checkpoint.
	BatchSize int
}

// IsConfigured reports whether a provider is chosen and has its key.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds generation backend configuration.
type LLMSettings struct {
	// Provider is the LLM service provider. Empty leaves generation
	// unconfigured and every answer uses the extractive fallback.
	Provider AIProvider

	Model string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// APIKey is required for hosted providers.
	APIKey string

	// Timeout bounds a single generation round trip.
	Timeout time.Duration

	// RequestsPerSecond rate limits generation calls. Zero disables limiting.
	RequestsPerSecond float64
}

// IsConfigured reports whether a provider is chosen and has its key.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderLocal {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RetrievalSettings controls candidate retrieval.
type RetrievalSettings struct {
	// TopK is the default number of chunks per answer.
	TopK int

	// SimilarityThreshold drops candidates scoring below it.
	SimilarityThreshold float64

	// HistoryTurns is how many prior messages fold into a conversation query.
	HistoryTurns int
}

// RerankSettings holds the rerank weights. They are not normalised.
type RerankSettings struct {
	Enabled bool
	Alpha   float64
	Beta    float64
	Gamma   float64
}

// CacheSettings configures the cache layer.
type CacheSettings struct {
	// Backend selects redis or memory. Redis degrades to memory when unreachable.
	Backend CacheBackend

	// RedisURL is a redis:// connection URL.
	RedisURL string

	// QueryTTL is the lifetime of cached answers.
	QueryTTL time.Duration

	// EmbeddingTTL is the lifetime of cached vectors and chunk sets.
	EmbeddingTTL time.Duration

	// MaxEntries bounds the in-process cache.
	MaxEntries int

	// SweepInterval is how often the in-process cache removes expired keys.
	SweepInterval time.Duration

	// ReprobeInterval is how often a degraded cache retries the remote backend.
	ReprobeInterval time.Duration
}

// WorkerSettings sizes the inference worker pool.
type WorkerSettings struct {
	PoolSize  int
	QueueSize int
}

// AppSettings is everything the settings commands read and write.
type AppSettings struct {
	Chunking  ChunkingSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Retrieval RetrievalSettings
	Rerank    RerankSettings
	Cache     CacheSettings
	Workers   WorkerSettings

	// DataDir holds the database and prompt templates.
	DataDir string
}

// DefaultAppSettings works offline: embeddings use the in-process hashing
// provider and generation is unconfigured, so answers are extractive.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{
			ChunkSize:       512,
			Overlap:         50,
			MaxChunksPerDoc: 1000,
			MaxSegmentGap:   30,
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderLocal,
			Model:     "bge-small-en-v1.5",
			Dimension: 384,
			BatchSize: 100,
		},
		LLM: LLMSettings{
			Timeout:           60 * time.Second,
			RequestsPerSecond: 2,
		},
		Retrieval: RetrievalSettings{
			TopK:                DefaultTopK,
			SimilarityThreshold: 0.5,
			HistoryTurns:        10,
		},
		Rerank: RerankSettings{
			Enabled: true,
			Alpha:   0.7,
			Beta:    0.2,
			Gamma:   0.1,
		},
		Cache: CacheSettings{
			Backend:         CacheBackendMemory,
			QueryTTL:        time.Hour,
			EmbeddingTTL:    2 * time.Hour,
			MaxEntries:      10000,
			SweepInterval:   time.Minute,
			ReprobeInterval: 30 * time.Second,
		},
		Workers: WorkerSettings{
			PoolSize:  4,
			QueueSize: 64,
		},
	}
}

// Validate checks settings for values the pipeline cannot run with.
func (s *AppSettings) Validate() error {
	if s.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrConfiguration)
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.ChunkSize {
		return fmt.Errorf("%w: overlap must be within [0, chunk_size)", ErrConfiguration)
	}
	if !s.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured", ErrConfiguration, s.Embedding.Provider)
	}
	if s.Embedding.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", ErrConfiguration)
	}
	if s.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrConfiguration)
	}
	if s.Workers.PoolSize <= 0 {
		return fmt.Errorf("%w: worker pool size must be positive", ErrConfiguration)
	}
	switch s.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrConfiguration, s.Cache.Backend)
	}
	return nil
}

// AllEmbeddingProviders lists the providers that can embed.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderLocal,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels maps each embedding provider to the model used when none is set.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:  "bge-small-en-v1.5",
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels maps each LLM provider to the model used when none is set.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions lists output sizes of common embedding models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Local / sentence-transformers sized
		"bge-small-en-v1.5": 384,
		"all-minilm":        384,
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig orders the chunk post-processors and carries their options.
type PipelineConfig struct {
	// Processors run in this order.
	Processors []string

	// ProcessorConfigs is keyed by processor name.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns the options for name, or nil.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor builds the chunking pipeline from chunking settings.
// The chunker runs first, then the metadata enrichers.
func PipelineConfigFor(c ChunkingSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "pages", "headings", "timestamps"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.ChunkSize,
				"overlap":    c.Overlap,
				"max_chunks": c.MaxChunksPerDoc,
			},
			"timestamps": {
				"chunk_size": c.ChunkSize,
				"max_gap":    c.MaxSegmentGap,
			},
		},
	}
}

// DefaultPipelineConfig returns the pipeline for the default chunking settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfigFor(DefaultAppSettings().Chunking)
}
