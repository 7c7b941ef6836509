package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestServer_handleQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the answer with sources", func(t *testing.T) {
		mockQuery := &mockQueryService{
			response: &domain.QueryResponse{
				Answer:     "Answers are cached for an hour [1].",
				Sources:    []domain.Source{{ID: 1, DocumentID: "doc-1", DocumentTitle: "Caching"}},
				ChunksUsed: 1,
				ModelUsed:  "gpt-4o-mini",
			},
		}
		server, err := NewServer(&Ports{Query: mockQuery})
		require.NoError(t, err)

		_, output, err := server.handleQuery(ctx, nil, QueryInput{Question: "how long?", ProjectID: "p1"})

		require.NoError(t, err)
		assert.Equal(t, "Answers are cached for an hour [1].", output.Answer)
		require.Len(t, output.Sources, 1)
		assert.Equal(t, "doc-1", output.Sources[0].DocumentID)
		assert.Equal(t, "gpt-4o-mini", output.ModelUsed)

		assert.Equal(t, "p1", mockQuery.lastReq.ProjectID)
		assert.True(t, mockQuery.lastReq.IncludeSources)
		assert.Equal(t, domain.DefaultTopK, mockQuery.lastReq.TopK)
		assert.Equal(t, domain.DefaultMaxTokens, mockQuery.lastReq.MaxTokens)
	})

	t.Run("overrides defaults when set", func(t *testing.T) {
		mockQuery := &mockQueryService{response: &domain.QueryResponse{}}
		server, err := NewServer(&Ports{Query: mockQuery})
		require.NoError(t, err)

		_, _, err = server.handleQuery(ctx, nil, QueryInput{Question: "q", TopK: ptr(8), Temperature: ptr(0.2), MaxTokens: ptr(100)})

		require.NoError(t, err)
		assert.Equal(t, 8, mockQuery.lastReq.TopK)
		assert.InDelta(t, 0.2, mockQuery.lastReq.Temperature, 1e-9)
		assert.Equal(t, 100, mockQuery.lastReq.MaxTokens)
	})

	t.Run("zero temperature is kept", func(t *testing.T) {
		mockQuery := &mockQueryService{response: &domain.QueryResponse{}}
		server, err := NewServer(&Ports{Query: mockQuery})
		require.NoError(t, err)

		_, _, err = server.handleQuery(ctx, nil, QueryInput{Question: "q", Temperature: ptr(0.0)})

		require.NoError(t, err)
		assert.Zero(t, mockQuery.lastReq.Temperature)
		assert.NoError(t, mockQuery.lastReq.Validate())
	})

	t.Run("out of range values reach validation", func(t *testing.T) {
		tests := map[string]QueryInput{
			"negative top_k":       {Question: "q", TopK: ptr(-3)},
			"zero top_k":           {Question: "q", TopK: ptr(0)},
			"negative max_tokens":  {Question: "q", MaxTokens: ptr(-1)},
			"temperature too high": {Question: "q", Temperature: ptr(2.5)},
		}
		for name, input := range tests {
			t.Run(name, func(t *testing.T) {
				mockQuery := &mockQueryService{response: &domain.QueryResponse{}}
				server, err := NewServer(&Ports{Query: mockQuery})
				require.NoError(t, err)

				_, _, err = server.handleQuery(ctx, nil, input)
				require.NoError(t, err)
				assert.ErrorIs(t, mockQuery.lastReq.Validate(), domain.ErrInvalidInput)
			})
		}
	})

	t.Run("returns error on failure", func(t *testing.T) {
		mockQuery := &mockQueryService{err: domain.ErrNotFound}
		server, err := NewServer(&Ports{Query: mockQuery})
		require.NoError(t, err)

		_, _, err = server.handleQuery(ctx, nil, QueryInput{Question: "q", ProjectID: "missing"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns ranked chunks", func(t *testing.T) {
		page := 3
		mockQuery := &mockQueryService{
			ranked: []domain.RankedChunk{
				{
					RetrievalCandidate: domain.RetrievalCandidate{
						Chunk: domain.Chunk{
							ID:         "chunk-1",
							DocumentID: "doc-1",
							Text:       "This is the content",
							PageNum:    &page,
						},
						DocumentTitle: "Test Doc",
						Similarity:    0.9,
					},
					Score: 0.95,
				},
			},
		}

		server, err := NewServer(&Ports{Query: mockQuery})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test", Limit: ptr(3)})

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		r := output.Results[0]
		assert.Equal(t, "doc-1", r.DocumentID)
		assert.Equal(t, "Test Doc", r.Title)
		assert.Equal(t, "chunk-1", r.ChunkID)
		assert.Equal(t, 0.95, r.Score)
		assert.Equal(t, 0.9, r.Similarity)
		assert.Equal(t, "This is the content", r.Content)
		require.NotNil(t, r.PageNum)
		assert.Equal(t, 3, *r.PageNum)
		assert.Equal(t, 3, mockQuery.lastReq.TopK)
	})

	t.Run("default limit is 10", func(t *testing.T) {
		mockQuery := &mockQueryService{}
		server, err := NewServer(&Ports{Query: mockQuery})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, 10, mockQuery.lastReq.TopK)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockQuery := &mockQueryService{err: errors.New("search failed")}
		server, err := NewServer(&Ports{Query: mockQuery})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleCacheStats(t *testing.T) {
	cache := &mockCacheAdmin{stats: domain.CacheStats{Backend: domain.CacheBackendMemory, Hits: 3, Misses: 1, Keys: 2}}
	server, err := NewServer(&Ports{Query: &mockQueryService{}, Cache: cache})
	require.NoError(t, err)

	_, stats, err := server.handleCacheStats(context.Background(), nil, CacheStatsInput{})

	require.NoError(t, err)
	assert.Equal(t, domain.CacheBackendMemory, stats.Backend)
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(2), stats.Keys)
}

func ptr[T any](v T) *T {
	return &v
}
