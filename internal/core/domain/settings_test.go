package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIProvider_IsValid(t *testing.T) {
	for _, p := range []AIProvider{AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic} {
		assert.True(t, p.IsValid(), p)
		assert.NotEqual(t, unknownDescription, p.Description())
	}
	assert.False(t, AIProvider("").IsValid())
	assert.False(t, AIProvider("cohere").IsValid())
	assert.Equal(t, unknownDescription, AIProvider("cohere").Description())
}

func TestAIProvider_RequiresAPIKey(t *testing.T) {
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.True(t, AIProviderAnthropic.RequiresAPIKey())
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.False(t, AIProviderLocal.RequiresAPIKey())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  EmbeddingSettings
		want bool
	}{
		{"local", EmbeddingSettings{Provider: AIProviderLocal}, true},
		{"ollama", EmbeddingSettings{Provider: AIProviderOllama}, true},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}, true},
		{"anthropic has no embeddings", EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "k"}, false},
		{"empty", EmbeddingSettings{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.IsConfigured())
		})
	}
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  LLMSettings
		want bool
	}{
		{"unset", LLMSettings{}, false},
		{"local cannot generate", LLMSettings{Provider: AIProviderLocal}, false},
		{"ollama", LLMSettings{Provider: AIProviderOllama}, true},
		{"anthropic without key", LLMSettings{Provider: AIProviderAnthropic}, false},
		{"anthropic with key", LLMSettings{Provider: AIProviderAnthropic, APIKey: "k"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.IsConfigured())
		})
	}
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, 512, s.Chunking.ChunkSize)
	assert.Equal(t, AIProviderLocal, s.Embedding.Provider)
	assert.False(t, s.LLM.IsConfigured())
	assert.Equal(t, DefaultTopK, s.Retrieval.TopK)
	assert.InDelta(t, 0.5, s.Retrieval.SimilarityThreshold, 1e-9)
	assert.Equal(t, CacheBackendMemory, s.Cache.Backend)
	assert.InDelta(t, 1.0, s.Rerank.Alpha+s.Rerank.Beta+s.Rerank.Gamma, 1e-9)
}

func TestAppSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppSettings)
	}{
		{"zero chunk size", func(s *AppSettings) { s.Chunking.ChunkSize = 0 }},
		{"overlap too large", func(s *AppSettings) { s.Chunking.Overlap = s.Chunking.ChunkSize }},
		{"negative overlap", func(s *AppSettings) { s.Chunking.Overlap = -1 }},
		{"unconfigured embedding", func(s *AppSettings) { s.Embedding.Provider = AIProviderOpenAI }},
		{"zero dimension", func(s *AppSettings) { s.Embedding.Dimension = 0 }},
		{"zero top k", func(s *AppSettings) { s.Retrieval.TopK = 0 }},
		{"no workers", func(s *AppSettings) { s.Workers.PoolSize = 0 }},
		{"unknown cache", func(s *AppSettings) { s.Cache.Backend = "memcached" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultAppSettings()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrConfiguration)
		})
	}
}

func TestDefaultModels(t *testing.T) {
	embedding := DefaultEmbeddingModels()
	for _, p := range AllEmbeddingProviders() {
		assert.NotEmpty(t, embedding[p], p)
	}
	llm := DefaultLLMModels()
	for _, p := range AllLLMProviders() {
		assert.NotEmpty(t, llm[p], p)
	}

	dims := EmbeddingDimensions()
	assert.Equal(t, 384, dims[DefaultAppSettings().Embedding.Model])
	assert.Equal(t, 1536, dims["text-embedding-3-small"])
}

func TestPipelineConfigFor(t *testing.T) {
	cfg := PipelineConfigFor(ChunkingSettings{ChunkSize: 200, Overlap: 20, MaxChunksPerDoc: 10, MaxSegmentGap: 5})

	assert.Equal(t, []string{"chunker", "pages", "headings", "timestamps"}, cfg.Processors)
	assert.Equal(t, 200, cfg.GetProcessorConfig("chunker")["chunk_size"])
	assert.Equal(t, 5.0, cfg.GetProcessorConfig("timestamps")["max_gap"])
	assert.Nil(t, cfg.GetProcessorConfig("pages"))

	var empty PipelineConfig
	assert.Nil(t, empty.GetProcessorConfig("chunker"))
}
