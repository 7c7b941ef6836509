package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/postprocessors"
	"github.com/custodia-labs/docqa/internal/postprocessors/chunker"
)

// emptyPipeline produces no chunks.
type emptyPipeline struct{}

func (emptyPipeline) Process(context.Context, *domain.Document) ([]domain.Chunk, error) {
	return nil, nil
}

func newIngestService(t *testing.T, f *fixture, pipeline driven.PostProcessorPipeline) *IngestService {
	t.Helper()
	if pipeline == nil {
		pipeline = postprocessors.NewPipeline(chunker.New(chunker.WithChunkSize(40)))
	}
	pool := NewWorkerPool(1, 8)
	t.Cleanup(pool.Close)

	s := NewIngestService(f.docs, f.projects, pipeline, f.engine, pool, f.cache)
	s.pollInterval = 5 * time.Millisecond
	return s
}

func waitReady(t *testing.T, s *IngestService, id string) *domain.Document {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	doc, err := s.Wait(ctx, id)
	require.NoError(t, err)
	return doc
}

const sampleText = "The first sentence is here. The second sentence follows. A third one ends it."

func TestIngestService_SubmitAndWait(t *testing.T) {
	f := newFixture(t)
	s := newIngestService(t, f, nil)
	ctx := context.Background()

	doc, err := s.Submit(ctx, driving.IngestRequest{Title: "Sample", Content: sampleText})
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusQueued, doc.Status)
	assert.Equal(t, domain.SourceTypeText, doc.SourceType)

	done := waitReady(t, s, doc.ID)
	assert.Equal(t, domain.DocumentStatusReady, done.Status)
	assert.Empty(t, done.Error)

	chunks, err := f.docs.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}

	embeddings, err := f.docs.GetEmbeddings(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, embeddings, 3)
}

func TestIngestService_SubmitToProject(t *testing.T) {
	f := newFixture(t)
	f.addProject(t, "p1")
	s := newIngestService(t, f, nil)
	ctx := context.Background()

	doc, err := s.Submit(ctx, driving.IngestRequest{Title: "Sample", Content: sampleText, ProjectID: "p1"})
	require.NoError(t, err)
	waitReady(t, s, doc.ID)

	ids, err := f.projects.ListDocumentIDs(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{doc.ID}, ids)
}

func TestIngestService_SubmitValidation(t *testing.T) {
	f := newFixture(t)
	s := newIngestService(t, f, nil)
	ctx := context.Background()

	_, err := s.Submit(ctx, driving.IngestRequest{Title: "Empty", Content: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Submit(ctx, driving.IngestRequest{Content: sampleText, SourceType: "fax"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = s.Submit(ctx, driving.IngestRequest{Content: sampleText, ProjectID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	docs, err := f.docs.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestService_DefaultTitle(t *testing.T) {
	f := newFixture(t)
	s := newIngestService(t, f, nil)
	ctx := context.Background()

	doc, err := s.Submit(ctx, driving.IngestRequest{
		Content: sampleText,
		Source:  domain.SourceMetadata{Title: "From Source"},
	})
	require.NoError(t, err)
	assert.Equal(t, "From Source", doc.Title)

	doc, err = s.Submit(ctx, driving.IngestRequest{Content: sampleText})
	require.NoError(t, err)
	assert.Equal(t, "Untitled", doc.Title)
}

func TestIngestService_EmbeddingFailureMarksError(t *testing.T) {
	f := newFixture(t)
	f.model.err = domain.ErrEmbeddingUnavailable
	s := newIngestService(t, f, nil)

	doc, err := s.Submit(context.Background(), driving.IngestRequest{Title: "Sample", Content: sampleText})
	require.NoError(t, err)

	done := waitReady(t, s, doc.ID)
	assert.Equal(t, domain.DocumentStatusError, done.Status)
	assert.Contains(t, done.Error, domain.ErrEmbeddingUnavailable.Error())
}

func TestIngestService_NoChunksMarksError(t *testing.T) {
	f := newFixture(t)
	s := newIngestService(t, f, emptyPipeline{})

	doc, err := s.Submit(context.Background(), driving.IngestRequest{Title: "Sample", Content: sampleText})
	require.NoError(t, err)

	done := waitReady(t, s, doc.ID)
	assert.Equal(t, domain.DocumentStatusError, done.Status)
	assert.Equal(t, errNoChunks.Error(), done.Error)
}

func TestIngestService_Reprocess(t *testing.T) {
	f := newFixture(t)
	s := newIngestService(t, f, nil)
	ctx := context.Background()

	doc, err := s.Submit(ctx, driving.IngestRequest{Title: "Sample", Content: sampleText})
	require.NoError(t, err)
	waitReady(t, s, doc.ID)

	before, err := f.docs.GetChunks(ctx, doc.ID)
	require.NoError(t, err)

	require.NoError(t, s.Reprocess(ctx, doc.ID))
	done := waitReady(t, s, doc.ID)
	assert.Equal(t, domain.DocumentStatusReady, done.Status)

	after, err := f.docs.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	assert.NotEqual(t, before[0].ID, after[0].ID)

	embeddings, err := f.docs.GetEmbeddings(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, embeddings, len(after))
	assert.Contains(t, embeddings, after[0].ID)
}

func TestIngestService_ReprocessNotFound(t *testing.T) {
	f := newFixture(t)
	s := newIngestService(t, f, nil)

	err := s.Reprocess(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestService_ReadyInvalidatesAnswers(t *testing.T) {
	f := newFixture(t)
	f.addProject(t, "p1")
	s := newIngestService(t, f, nil)
	ctx := context.Background()

	require.NoError(t, f.cache.Set(ctx, "query:global:abc", "stale", time.Hour))
	require.NoError(t, f.cache.Set(ctx, "query:p1:abc", "stale", time.Hour))
	require.NoError(t, f.cache.Set(ctx, "query:p2:abc", "other", time.Hour))

	doc, err := s.Submit(ctx, driving.IngestRequest{Title: "Sample", Content: sampleText, ProjectID: "p1"})
	require.NoError(t, err)
	waitReady(t, s, doc.ID)

	var v string
	ok, _ := f.cache.Get(ctx, "query:global:abc", &v)
	assert.False(t, ok)
	ok, _ = f.cache.Get(ctx, "query:p1:abc", &v)
	assert.False(t, ok)
	ok, _ = f.cache.Get(ctx, "query:p2:abc", &v)
	assert.True(t, ok)
}

func TestIngestService_WaitHonoursContext(t *testing.T) {
	f := newFixture(t)
	s := newIngestService(t, f, nil)
	f.addDocument(t, "stuck", "Stuck", domain.DocumentStatusQueued)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	doc, err := s.Wait(ctx, "stuck")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, doc)
	assert.Equal(t, domain.DocumentStatusQueued, doc.Status)
}

func TestIngestService_SubmitAfterPoolClosed(t *testing.T) {
	f := newFixture(t)
	pool := NewWorkerPool(1, 1)
	pool.Close()
	s := NewIngestService(f.docs, f.projects, postprocessors.NewPipeline(chunker.New()), f.engine, pool, f.cache)
	ctx := context.Background()

	_, err := s.Submit(ctx, driving.IngestRequest{Title: "Sample", Content: sampleText})
	assert.ErrorIs(t, err, ErrPoolClosed)

	docs, err := f.docs.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, domain.DocumentStatusError, docs[0].Status)
}
