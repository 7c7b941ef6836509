// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/docqa/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/llm"
	anthropicllm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// probeText is embedded once at startup to learn the model's real output size.
const probeText = "test"

// llmBurst is the token bucket size for generation calls.
const llmBurst = 2

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService // Nil when answers use the extractive fallback.
	Dimension        int               // Reconciled embedding dimension.
	Warnings         []string          // Non-fatal issues that caused fallback.
	FellBack         bool              // True if generation is unavailable.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init creates the embedding model and the generation backend.
//
// A failing embedding model is fatal and wraps domain.ErrConfiguration.
// A failing generation backend is not: the result carries a warning and
// a nil LLMService so answers fall back to extracts.
func Init(ctx context.Context, settings *domain.AppSettings) (*InitResult, error) {
	embedder, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err = embedder.Ping(pingCtx)
	cancel()
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("%w: %w: %w", domain.ErrConfiguration, domain.ErrEmbeddingUnavailable, err)
	}

	dim, err := ReconcileDimension(ctx, embedder, settings.Embedding.Dimension)
	if err != nil {
		embedder.Close()
		return nil, err
	}
	settings.Embedding.Dimension = dim
	if embedder.Dimensions() != dim {
		embedder = &sizedEmbedding{EmbeddingService: embedder, dim: dim}
	}

	result := &InitResult{EmbeddingService: embedder, Dimension: dim}

	llmSvc, err := CreateAndValidateLLMService(ctx, &settings.LLM)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
		result.FellBack = true
		logger.Warn("%v; answers will use extractive fallback", err)
	case llmSvc == nil:
		result.FellBack = true
		logger.Debug("no generation backend configured; answers will use extractive fallback")
	default:
		result.LLMService = llmSvc
	}

	return result, nil
}

// ReconcileDimension embeds a probe text and returns the model's actual
// output size. A mismatch with the configured size is logged and the
// actual size wins.
func ReconcileDimension(ctx context.Context, svc driven.EmbeddingService, configured int) (int, error) {
	vec, err := svc.Embed(ctx, probeText)
	if err != nil {
		return 0, fmt.Errorf("%w: probe embedding: %w", domain.ErrConfiguration, err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: model %s returned an empty vector", domain.ErrConfiguration, svc.ModelName())
	}
	if configured > 0 && len(vec) != configured {
		logger.Warn("embedding dimension mismatch: configured %d, model %s produces %d; using %d",
			configured, svc.ModelName(), len(vec), len(vec))
	}
	return len(vec), nil
}

// sizedEmbedding reports the dimension measured at startup in place of the
// size the adapter was configured with.
type sizedEmbedding struct {
	driven.EmbeddingService
	dim int
}

func (s *sizedEmbedding) Dimensions() int {
	return s.dim
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns nil without error when generation is not configured.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("embedding provider %q is not configured", providerOf(settings))
	}

	switch settings.Provider {
	case domain.AIProviderLocal:
		return hashing.NewEmbeddingService(hashing.Config{
			Model:      settings.Model,
			Dimensions: settings.Dimension,
		}), nil

	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	default:
		return nil, fmt.Errorf("%w: embedding provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings,
// wrapped in a rate limiter. Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.LLMService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc = ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderOpenAI:
		svc, err = openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderAnthropic:
		svc, err = anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	default:
		return nil, fmt.Errorf("%w: LLM provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
	if err != nil {
		return nil, err
	}

	return llm.NewRateLimited(svc, settings.RequestsPerSecond, llmBurst), nil
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := domain.EmbeddingDimensions()[settings.Model]
	if dimensions == 0 {
		dimensions = settings.Dimension
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

func providerOf(settings *domain.EmbeddingSettings) domain.AIProvider {
	if settings == nil {
		return ""
	}
	return settings.Provider
}
