package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driven/cache"
	cachememory "github.com/custodia-labs/docqa/internal/adapters/driven/cache/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// fakeEmbedder returns fixed vectors for known texts, then fallback when
// set, then a deterministic unnormalised vector. It records every batch it
// receives.
type fakeEmbedder struct {
	mu       sync.Mutex
	dim      int
	vectors  map[string][]float32
	fallback []float32
	err      error
	batches  [][]string
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim, vectors: make(map[string][]float32)}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		if f.fallback != nil {
			out[i] = append([]float32(nil), f.fallback...)
			continue
		}
		out[i] = textVector(t, f.dim)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int {
	return f.dim
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-model"
}

func (f *fakeEmbedder) Ping(context.Context) error {
	return nil
}

func (f *fakeEmbedder) Close() error {
	return nil
}

func (f *fakeEmbedder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeEmbedder) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []string
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

func (f *fakeEmbedder) set(text string, vec ...float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[text] = vec
}

func textVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	for i, r := range text {
		v[(int(r)+i)%dim] += 1
	}
	v[0] += 1
	return v
}

// fakeLLM answers every prompt with a fixed text or error.
type fakeLLM struct {
	mu       sync.Mutex
	text     string
	model    string
	usage    domain.Usage
	err      error
	delay    time.Duration
	requests []driven.GenerateRequest
}

func (f *fakeLLM) Generate(ctx context.Context, req driven.GenerateRequest) (*driven.Generation, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &driven.Generation{Text: f.text, Model: f.model, Usage: f.usage}, nil
}

func (f *fakeLLM) ModelName() string {
	return "fake-llm"
}

func (f *fakeLLM) Ping(context.Context) error {
	return nil
}

func (f *fakeLLM) Close() error {
	return nil
}

func (f *fakeLLM) lastRequest() driven.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// staticPrompts serves fixed templates.
type staticPrompts map[string]string

func (p staticPrompts) Load(name string) (string, error) {
	t, ok := p[name]
	if !ok {
		return "", fmt.Errorf("prompt %s: %w", name, domain.ErrNotFound)
	}
	return t, nil
}

func (p staticPrompts) Reload() {}

func testPrompts() staticPrompts {
	return staticPrompts{
		driven.PromptSystem:            "system",
		driven.PromptAnswerWithSources: "CITE\nContext:\n%s\n\nQuestion: %s",
		driven.PromptAnswer:            "Context:\n%s\n\nQuestion: %s",
	}
}

// wordCounter counts whitespace-separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

// fixture wires the in-memory stores, an in-process cache and a fake model.
type fixture struct {
	docs     *memory.DocumentStore
	projects *memory.ProjectStore
	cache    *cache.Cache
	model    *fakeEmbedder
	engine   *EmbeddingEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docs:     memory.NewDocumentStore(),
		projects: memory.NewProjectStore(),
		cache:    cache.New(cachememory.New(0)),
		model:    newFakeEmbedder(4),
	}
	t.Cleanup(func() { _ = f.cache.Close() })
	f.engine = NewEmbeddingEngine(f.model, f.cache, f.docs, f.docs, f.projects, nil,
		EmbeddingEngineConfig{TTL: time.Hour})
	return f
}

// addDocument stores a document with one chunk per text, without embedding it.
func (f *fixture) addDocument(t *testing.T, id, title string, status domain.DocumentStatus, texts ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.docs.SaveDocument(ctx, &domain.Document{
		ID:         id,
		Title:      title,
		SourceType: domain.SourceTypeText,
		Status:     status,
		CreatedAt:  time.Now(),
	}))

	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:         fmt.Sprintf("%s-c%d", id, i),
			DocumentID: id,
			Index:      i,
			Text:       text,
		}
	}
	require.NoError(t, f.docs.ReplaceChunks(ctx, id, chunks))
}

// addReadyDocument stores and embeds a ready document.
func (f *fixture) addReadyDocument(t *testing.T, id, title string, texts ...string) {
	t.Helper()
	f.addDocument(t, id, title, domain.DocumentStatusReady, texts...)
	_, err := f.engine.EmbedChunks(context.Background(), id, false)
	require.NoError(t, err)
}

func (f *fixture) addProject(t *testing.T, id string, docIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.projects.SaveProject(ctx, &domain.Project{ID: id, Name: id, CreatedAt: time.Now()}))
	for _, d := range docIDs {
		require.NoError(t, f.projects.AddDocument(ctx, id, d))
	}
}

// chunkSetKey is the cache key of a document's chunk set at its current
// embedding generation.
func (f *fixture) chunkSetKey(t *testing.T, docID string) string {
	t.Helper()
	gens, err := f.docs.EmbeddingGenerations(context.Background(), []string{docID})
	require.NoError(t, err)
	return chunkSetKey(docID, f.model.ModelName(), f.model.Dimensions(), gens[docID])
}

func (f *fixture) retriever(threshold float64) *Retriever {
	return NewRetriever(f.engine, f.docs, f.docs, f.projects, f.cache, nil, threshold, time.Hour)
}

func (f *fixture) queryEngine(llm driven.LLMService, cfg QueryConfig) *QueryEngine {
	return NewQueryEngine(f.retriever(0.5), llm, testPrompts(), wordCounter{}, f.cache, f.projects, cfg)
}

func defaultQueryConfig() QueryConfig {
	s := domain.DefaultAppSettings()
	return QueryConfig{
		Rerank:            s.Rerank,
		QueryTTL:          s.Cache.QueryTTL,
		HistoryTurns:      s.Retrieval.HistoryTurns,
		GenerationTimeout: time.Second,
	}
}
