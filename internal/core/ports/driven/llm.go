package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// LLMService is the generation backend: a prompt in, text and usage out.
// This is an optional service - when nil, answers fall back to extracts
// of the retrieved context.
//
// Implementations include:
//   - OpenAI (GPT-4o, GPT-4o-mini)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Generate produces a completion for the request.
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateRequest configures one generation call.
type GenerateRequest struct {
	// Prompt is the user prompt, including context and question.
	Prompt string

	// SystemPrompt is sent as the system instruction when non-empty.
	SystemPrompt string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 2.0 = most random).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// Generation is the backend's answer.
type Generation struct {
	// Text is the generated answer.
	Text string

	// Model is the model that actually served the request.
	Model string

	// Usage is the token usage. Zero values mean the backend did not report it.
	Usage domain.Usage
}
