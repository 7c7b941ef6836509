package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// candidateFactor is how many candidates are fetched per requested chunk,
// leaving the reranker room to reorder.
const candidateFactor = 2

// Retriever finds the chunks most similar to a query within a scope.
type Retriever struct {
	embedder  *EmbeddingEngine
	docs      driven.DocumentStore
	vectors   driven.EmbeddingStore
	projects  driven.ProjectStore
	cache     driven.Cache
	pool      *WorkerPool
	threshold float64
	ttl       time.Duration
}

// NewRetriever creates a retriever. chunkTTL is the lifetime of cached
// per-document chunk sets.
func NewRetriever(
	embedder *EmbeddingEngine,
	docs driven.DocumentStore,
	vectors driven.EmbeddingStore,
	projects driven.ProjectStore,
	cache driven.Cache,
	pool *WorkerPool,
	threshold float64,
	chunkTTL time.Duration,
) *Retriever {
	return &Retriever{
		embedder:  embedder,
		docs:      docs,
		vectors:   vectors,
		projects:  projects,
		cache:     cache,
		pool:      pool,
		threshold: threshold,
		ttl:       chunkTTL,
	}
}

// Retrieve embeds query and returns up to limit candidates at or above the
// similarity threshold, most similar first. An unknown project is
// domain.ErrNotFound; an empty scope yields no candidates.
func (r *Retriever) Retrieve(ctx context.Context, query, projectID string, limit int) ([]domain.RetrievalCandidate, error) {
	docIDs, err := r.scope(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(docIDs) == 0 {
		logger.Debug("retrieve: scope %q has no ready documents", projectID)
		return nil, nil
	}

	chunks, err := r.embeddedChunks(ctx, docIDs)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		logger.Debug("retrieve: scope %q has no embedded chunks", projectID)
		return nil, nil
	}

	qvec, err := r.embedder.Embed(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var candidates []domain.RetrievalCandidate
	err = r.pool.Do(ctx, func(ctx context.Context) error {
		candidates = scan(qvec, chunks, r.threshold, limit)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("retrieve: %d of %d chunks passed threshold %.2f", len(candidates), len(chunks), r.threshold)
	return candidates, nil
}

// scope resolves the document IDs a query may see: a project's documents,
// or every ready document.
func (r *Retriever) scope(ctx context.Context, projectID string) ([]string, error) {
	if projectID != "" {
		if _, err := r.projects.GetProject(ctx, projectID); err != nil {
			return nil, fmt.Errorf("project %s: %w", projectID, err)
		}
		return r.projects.ListDocumentIDs(ctx, projectID)
	}

	docs, err := r.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var ids []string
	for _, d := range docs {
		if d.Status == domain.DocumentStatusReady {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

// embeddedChunks loads each document's chunk set from the cache, reading
// the misses from the store in one call and caching them per document.
// Sets are keyed by the generation read before the store, so a set that
// raced a re-embedding is filed under a generation that is already stale.
func (r *Retriever) embeddedChunks(ctx context.Context, docIDs []string) ([]domain.EmbeddedChunk, error) {
	model, dim := r.embedder.ModelName(), r.embedder.Dimensions()

	var gens map[string]int64
	if r.cache != nil {
		var err error
		if gens, err = r.vectors.EmbeddingGenerations(ctx, docIDs); err != nil {
			logger.Warn("retrieve: embedding generations: %v", err)
			gens = nil
		}
	}

	var all []domain.EmbeddedChunk
	missing := docIDs
	if gens != nil {
		missing = nil
		for _, id := range docIDs {
			gen, known := gens[id]
			if !known {
				missing = append(missing, id)
				continue
			}
			set, ok := r.cachedSet(ctx, chunkSetKey(id, model, dim, gen))
			if !ok {
				missing = append(missing, id)
				continue
			}
			all = append(all, set...)
		}
	}
	if len(missing) == 0 {
		return all, nil
	}

	loaded, err := r.vectors.ListEmbeddedChunks(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("list embedded chunks: %w", err)
	}

	byDoc := make(map[string][]domain.EmbeddedChunk)
	for _, ec := range loaded {
		byDoc[ec.Chunk.DocumentID] = append(byDoc[ec.Chunk.DocumentID], ec)
	}
	for docID, set := range byDoc {
		gen, known := gens[docID]
		if !known {
			continue
		}
		if err := r.cache.Set(ctx, chunkSetKey(docID, model, dim, gen), set, r.ttl); err != nil {
			logger.Warn("retrieve: cache chunk set %s: %v", docID, err)
		}
	}

	return append(all, loaded...), nil
}

func (r *Retriever) cachedSet(ctx context.Context, key string) ([]domain.EmbeddedChunk, bool) {
	if r.cache == nil {
		return nil, false
	}
	var set []domain.EmbeddedChunk
	ok, err := r.cache.Get(ctx, key, &set)
	if err != nil || !ok {
		return nil, false
	}
	return set, true
}

// scan scores every chunk against the normalised query vector and keeps the
// best limit at or above threshold. Vectors of another dimension are skipped.
func scan(query []float32, chunks []domain.EmbeddedChunk, threshold float64, limit int) []domain.RetrievalCandidate {
	var out []domain.RetrievalCandidate
	for _, ec := range chunks {
		if len(ec.Vector) != len(query) {
			continue
		}
		sim := dot(query, ec.Vector)
		if sim < threshold {
			continue
		}
		out = append(out, domain.RetrievalCandidate{
			Chunk:         ec.Chunk,
			DocumentTitle: ec.DocumentTitle,
			Similarity:    sim,
		})
	}

	slices.SortStableFunc(out, func(a, b domain.RetrievalCandidate) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
