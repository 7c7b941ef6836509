package domain

import (
	"fmt"
	"math"
	"strings"
)

// Query defaults.
const (
	DefaultTopK        = 5
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 512
	MaxTemperature     = 2.0
)

// QueryRequest is a natural-language question over a scope of documents.
type QueryRequest struct {
	// Query is the question text.
	Query string `json:"query"`

	// ProjectID scopes retrieval to one project. Empty means all documents.
	ProjectID string `json:"project_id,omitempty"`

	// TopK is the number of chunks used to build the context.
	TopK int `json:"top_k"`

	// Temperature is passed to the generation backend.
	Temperature float64 `json:"temperature"`

	// MaxTokens bounds the generated answer.
	MaxTokens int `json:"max_tokens"`

	// IncludeSources asks the backend to cite [Source N] markers.
	IncludeSources bool `json:"include_sources"`

	// ConversationID continues an existing conversation.
	ConversationID string `json:"conversation_id,omitempty"`
}

// NewQueryRequest returns a request with default parameters.
func NewQueryRequest(query string) QueryRequest {
	return QueryRequest{
		Query:          query,
		TopK:           DefaultTopK,
		Temperature:    DefaultTemperature,
		MaxTokens:      DefaultMaxTokens,
		IncludeSources: true,
	}
}

// Validate checks the request before any retrieval is attempted.
func (r *QueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query is empty", ErrInvalidInput)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidInput, r.TopK)
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidInput, r.MaxTokens)
	}
	if math.IsNaN(r.Temperature) || r.Temperature < 0 || r.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature must be within [0, %.1f], got %.2f",
			ErrInvalidInput, MaxTemperature, r.Temperature)
	}
	return nil
}

// Scope returns the cache scope for the request.
func (r *QueryRequest) Scope() string {
	if r.ProjectID == "" {
		return "global"
	}
	return r.ProjectID
}

// Usage counts tokens consumed by a generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Source is a citation returned with an answer.
// ID matches the [Source N] marker in the context.
type Source struct {
	ID            int      `json:"id"`
	DocumentID    string   `json:"document_id"`
	DocumentTitle string   `json:"document_title"`
	ChunkID       string   `json:"chunk_id"`
	TextPreview   string   `json:"text_preview"`
	Score         float64  `json:"score"`
	PageNum       *int     `json:"page_num,omitempty"`
	Timestamp     *float64 `json:"timestamp,omitempty"`
	Section       string   `json:"section,omitempty"`
}

// QueryResponse is a grounded answer with its citations.
type QueryResponse struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	ChunksUsed     int      `json:"chunks_used"`
	ModelUsed      string   `json:"model_used"`
	Usage          Usage    `json:"usage"`
	ConversationID string   `json:"conversation_id,omitempty"`

	// Cached is true when the response was served from the query cache.
	Cached bool `json:"cached"`
}

// RetrievalCandidate is a chunk whose similarity passed the threshold.
// It is transient and never persisted.
type RetrievalCandidate struct {
	Chunk         Chunk
	DocumentTitle string
	Similarity    float64
}

// RankedChunk is a candidate with its combined rerank score.
type RankedChunk struct {
	RetrievalCandidate
	Score float64
}
