package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

// seedSimilarity stores one ready document whose chunks score 1.0, 0.8 and
// 0.0 against the query "find alpha".
func seedSimilarity(t *testing.T, f *fixture) {
	t.Helper()
	f.model.set("find alpha", 1, 0, 0, 0)
	f.model.set("Guide\n\nAlpha exact.", 1, 0, 0, 0)
	f.model.set("Guide\n\nAlpha nearby.", 0.8, 0.6, 0, 0)
	f.model.set("Guide\n\nUnrelated.", 0, 1, 0, 0)
	f.addReadyDocument(t, "doc1", "Guide", "Unrelated.", "Alpha nearby.", "Alpha exact.")
}

func TestRetriever_OrdersBySimilarityAboveThreshold(t *testing.T) {
	f := newFixture(t)
	seedSimilarity(t, f)

	got, err := f.retriever(0.5).Retrieve(context.Background(), "find alpha", "", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "doc1-c2", got[0].Chunk.ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.Equal(t, "doc1-c1", got[1].Chunk.ID)
	assert.InDelta(t, 0.8, got[1].Similarity, 1e-6)
	assert.Equal(t, "Guide", got[0].DocumentTitle)
}

func TestRetriever_ThresholdIsInclusive(t *testing.T) {
	f := newFixture(t)
	seedSimilarity(t, f)

	got, err := f.retriever(1.0).Retrieve(context.Background(), "find alpha", "", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc1-c2", got[0].Chunk.ID)
}

func TestRetriever_Limit(t *testing.T) {
	f := newFixture(t)
	seedSimilarity(t, f)

	got, err := f.retriever(0).Retrieve(context.Background(), "find alpha", "", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc1-c2", got[0].Chunk.ID)
}

func TestRetriever_SkipsDocumentsNotReady(t *testing.T) {
	f := newFixture(t)
	seedSimilarity(t, f)
	f.model.set("Draft\n\nAlpha draft.", 1, 0, 0, 0)
	f.addReadyDocument(t, "doc2", "Draft", "Alpha draft.")
	require.NoError(t, f.docs.UpdateStatus(context.Background(), "doc2", domain.DocumentStatusProcessing, ""))

	got, err := f.retriever(0.5).Retrieve(context.Background(), "find alpha", "", 10)
	require.NoError(t, err)
	for _, c := range got {
		assert.Equal(t, "doc1", c.Chunk.DocumentID)
	}
}

func TestRetriever_ProjectScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSimilarity(t, f)
	f.model.set("Other\n\nAlpha elsewhere.", 1, 0, 0, 0)
	f.addReadyDocument(t, "doc2", "Other", "Alpha elsewhere.")
	f.addProject(t, "p1", "doc2")

	got, err := f.retriever(0.5).Retrieve(ctx, "find alpha", "p1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc2", got[0].Chunk.DocumentID)
}

func TestRetriever_UnknownProject(t *testing.T) {
	f := newFixture(t)

	_, err := f.retriever(0.5).Retrieve(context.Background(), "q", "missing", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetriever_EmptyScope(t *testing.T) {
	f := newFixture(t)
	f.addProject(t, "empty")

	got, err := f.retriever(0.5).Retrieve(context.Background(), "q", "empty", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.retriever(0.5).Retrieve(context.Background(), "q", "", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Nothing in scope means the query is never embedded.
	assert.Zero(t, f.model.calls())
}

func TestRetriever_CachesChunkSets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSimilarity(t, f)

	_, err := f.retriever(0.5).Retrieve(ctx, "find alpha", "", 10)
	require.NoError(t, err)

	var set []domain.EmbeddedChunk
	ok, err := f.cache.Get(ctx, f.chunkSetKey(t, "doc1"), &set)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, set, 3)

	// A second retrieval is served from the cached set.
	before := f.cache.Stats(ctx).Hits
	got, err := f.retriever(0.5).Retrieve(ctx, "find alpha", "", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Greater(t, f.cache.Stats(ctx).Hits, before)
}

func TestRetriever_ReembeddingInvalidatesChunkSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSimilarity(t, f)

	_, err := f.retriever(0.5).Retrieve(ctx, "find alpha", "", 10)
	require.NoError(t, err)
	before := f.chunkSetKey(t, "doc1")

	_, err = f.engine.EmbedChunks(ctx, "doc1", true)
	require.NoError(t, err)

	var set []domain.EmbeddedChunk
	ok, err := f.cache.Get(ctx, before, &set)
	require.NoError(t, err)
	assert.False(t, ok)

	after := f.chunkSetKey(t, "doc1")
	assert.NotEqual(t, before, after, "re-embedding moves the document to a new generation")
}

// listHook runs after once, right after the embedded chunks are read.
type listHook struct {
	*memory.DocumentStore
	after func()
}

func (h *listHook) ListEmbeddedChunks(ctx context.Context, ids []string) ([]domain.EmbeddedChunk, error) {
	got, err := h.DocumentStore.ListEmbeddedChunks(ctx, ids)
	if after := h.after; after != nil {
		h.after = nil
		after()
	}
	return got, err
}

func TestRetriever_ChunkSetReadDuringEmbeddingIsNotReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.model.set("q", 1, 0, 0, 0)
	f.model.set("Doc\n\nFirst.", 1, 0, 0, 0)
	f.model.set("Doc\n\nSecond.", 1, 1, 0, 0)
	f.addDocument(t, "doc1", "Doc", domain.DocumentStatusReady, "First.", "Second.")
	require.NoError(t, f.docs.SaveEmbeddings(ctx, []domain.Embedding{
		{ID: "e0", ChunkID: "doc1-c0", Vector: []float32{1, 0, 0, 0}, Model: "fake-model", Normalized: true},
	}))

	// The rest of the document is embedded after the retriever has read
	// the first checkpoint but before it caches what it read.
	vectors := &listHook{DocumentStore: f.docs, after: func() {
		_, err := f.engine.EmbedChunks(ctx, "doc1", false)
		require.NoError(t, err)
	}}
	r := NewRetriever(f.engine, f.docs, vectors, f.projects, f.cache, nil, 0.5, time.Hour)

	first, err := r.Retrieve(ctx, "q", "", 10)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := r.Retrieve(ctx, "q", "", 10)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "doc1-c0", second[0].Chunk.ID)
	assert.Equal(t, "doc1-c1", second[1].Chunk.ID)
}

func TestScan_SkipsOtherDimensions(t *testing.T) {
	chunks := []domain.EmbeddedChunk{
		{Chunk: domain.Chunk{ID: "ok"}, Vector: []float32{1, 0}},
		{Chunk: domain.Chunk{ID: "wrong"}, Vector: []float32{1, 0, 0}},
	}

	got := scan([]float32{1, 0}, chunks, 0, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Chunk.ID)
}
