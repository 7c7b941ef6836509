package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

const defaultSearchLimit = 10

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Question       string   `json:"question" jsonschema:"the question to answer from ingested documents"`
	ProjectID      string   `json:"project_id,omitempty" jsonschema:"restrict retrieval to this project"`
	ConversationID string   `json:"conversation_id,omitempty" jsonschema:"continue an earlier conversation"`
	TopK           *int     `json:"top_k,omitempty" jsonschema:"number of chunks in the context (default 5)"`
	Temperature    *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature between 0 and 2 (default 0.7)"`
	MaxTokens      *int     `json:"max_tokens,omitempty" jsonschema:"maximum answer length in tokens (default 512)"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Answer         string          `json:"answer"`
	Sources        []domain.Source `json:"sources"`
	ChunksUsed     int             `json:"chunks_used"`
	ModelUsed      string          `json:"model_used"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Cached         bool            `json:"cached"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query     string `json:"query" jsonschema:"the text to find relevant chunks for"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"restrict the search to this project"`
	Limit     *int   `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single retrieved chunk.
type SearchResultOutput struct {
	DocumentID string   `json:"document_id"`
	Title      string   `json:"title"`
	ChunkID    string   `json:"chunk_id"`
	Score      float64  `json:"score"`
	Similarity float64  `json:"similarity"`
	Content    string   `json:"content"`
	PageNum    *int     `json:"page_num,omitempty"`
	Timestamp  *float64 `json:"timestamp,omitempty"`
	Section    string   `json:"section,omitempty"`
}

// CacheStatsInput is the (empty) input schema for the cache_stats tool.
type CacheStatsInput struct{}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Answer a question from ingested documents, citing sources as [n]",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find the document chunks most relevant to a query without generating an answer",
	}, s.handleSearch)

	if s.ports.Cache != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "cache_stats",
			Description: "Report cache backend, hit rate and key count",
		}, s.handleCacheStats)
	}
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	req := domain.NewQueryRequest(input.Question)
	req.ProjectID = input.ProjectID
	req.ConversationID = input.ConversationID
	req.IncludeSources = true
	req.TopK = valueOr(input.TopK, req.TopK)
	req.Temperature = valueOr(input.Temperature, req.Temperature)
	req.MaxTokens = valueOr(input.MaxTokens, req.MaxTokens)

	resp, err := s.ports.Query.Query(ctx, req)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	return nil, QueryOutput{
		Answer:         resp.Answer,
		Sources:        resp.Sources,
		ChunksUsed:     resp.ChunksUsed,
		ModelUsed:      resp.ModelUsed,
		ConversationID: resp.ConversationID,
		Cached:         resp.Cached,
	}, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	req := domain.NewQueryRequest(input.Query)
	req.ProjectID = input.ProjectID
	req.TopK = valueOr(input.Limit, defaultSearchLimit)

	results, err := s.ports.Query.Retrieve(ctx, req)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		c := &results[i].Chunk
		output.Results[i] = SearchResultOutput{
			DocumentID: c.DocumentID,
			Title:      results[i].DocumentTitle,
			ChunkID:    c.ID,
			Score:      results[i].Score,
			Similarity: results[i].Similarity,
			Content:    c.Text,
			PageNum:    c.PageNum,
			Timestamp:  c.TimestampStart,
			Section:    c.Section,
		}
	}

	return nil, output, nil
}

// handleCacheStats handles the cache_stats tool invocation.
func (s *Server) handleCacheStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ CacheStatsInput,
) (*mcp.CallToolResult, domain.CacheStats, error) {
	return nil, s.ports.Cache.Stats(ctx), nil
}

// valueOr returns *p, or def when the client left the field out. Supplied
// values are passed through for the query service to validate.
func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
