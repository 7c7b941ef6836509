// Package anthropic generates answers with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/adapters/driven/httpjson"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

// Defaults.
const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-haiku-latest"
	DefaultTimeout = 120 * time.Second

	apiVersion = "2023-06-01"

	// The Messages API requires max_tokens and caps temperature at 1.
	defaultMaxTokens = 1024
	maxTemperature   = 1.0
)

var errNoText = errors.New("anthropic: response has no text")

// Config configures the adapter. APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService calls /v1/messages.
type LLMService struct {
	api   *httpjson.Client
	model string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model         string    `json:"model"`
	System        string    `json:"system,omitempty"`
	Messages      []message `json:"messages"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   *float64  `json:"temperature,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewLLMService creates the adapter, filling unset fields with defaults.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w: API key is required", domain.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	header := http.Header{}
	header.Set("x-api-key", cfg.APIKey)
	header.Set("anthropic-version", apiVersion)
	return &LLMService{
		api:   httpjson.New("anthropic", cfg.BaseURL, cfg.Timeout, header),
		model: cfg.Model,
	}, nil
}

// Generate sends the prompt as a single user turn. Text blocks in the reply
// are concatenated; other block types are ignored.
func (s *LLMService) Generate(ctx context.Context, req driven.GenerateRequest) (*driven.Generation, error) {
	body := messagesRequest{
		Model:         s.model,
		System:        req.SystemPrompt,
		Messages:      []message{{Role: "user", Content: req.Prompt}},
		MaxTokens:     req.MaxTokens,
		Temperature:   new(float64),
		StopSequences: req.StopWords,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultMaxTokens
	}
	*body.Temperature = min(max(req.Temperature, 0), maxTemperature)

	var resp messagesResponse
	if err := s.api.Post(ctx, "/v1/messages", body, &resp); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errNoText
	}

	model := resp.Model
	if model == "" {
		model = s.model
	}
	in, out := resp.Usage.InputTokens, resp.Usage.OutputTokens
	return &driven.Generation{
		Text:  text.String(),
		Model: model,
		Usage: domain.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}

// ModelName returns the configured model.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Get(ctx, "/v1/models", nil)
}

// Close is a no-op.
func (s *LLMService) Close() error {
	return nil
}
