package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure EmbeddingEngine implements the interface.
var _ driving.EmbeddingAdmin = (*EmbeddingEngine)(nil)

// DefaultEmbeddingBatchSize is the number of embeddings committed per checkpoint.
const DefaultEmbeddingBatchSize = 100

// EmbeddingEngine turns text into vectors through the injected model,
// consulting the embedding cache first, and persists chunk vectors.
type EmbeddingEngine struct {
	model    driven.EmbeddingService
	cache    driven.Cache
	docs     driven.DocumentStore
	vectors  driven.EmbeddingStore
	projects driven.ProjectStore
	pool     *WorkerPool

	ttl       time.Duration
	batchSize int
	newID     func() string
	now       func() time.Time
}

// EmbeddingEngineConfig configures an EmbeddingEngine.
type EmbeddingEngineConfig struct {
	// TTL is the lifetime of cached vectors and chunk sets.
	TTL time.Duration

	// BatchSize is the number of embeddings committed per checkpoint.
	BatchSize int
}

// NewEmbeddingEngine creates an embedding engine. The cache and pool are
// optional; without them every call reaches the model inline.
func NewEmbeddingEngine(
	model driven.EmbeddingService,
	cache driven.Cache,
	docs driven.DocumentStore,
	vectors driven.EmbeddingStore,
	projects driven.ProjectStore,
	pool *WorkerPool,
	cfg EmbeddingEngineConfig,
) *EmbeddingEngine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEmbeddingBatchSize
	}
	return &EmbeddingEngine{
		model:     model,
		cache:     cache,
		docs:      docs,
		vectors:   vectors,
		projects:  projects,
		pool:      pool,
		ttl:       cfg.TTL,
		batchSize: cfg.BatchSize,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
}

// ModelName returns the injected model's name.
func (e *EmbeddingEngine) ModelName() string {
	return e.model.ModelName()
}

// Dimensions returns the injected model's vector size.
func (e *EmbeddingEngine) Dimensions() int {
	return e.model.Dimensions()
}

// Embed returns the vector for text, from the cache when possible.
func (e *EmbeddingEngine) Embed(ctx context.Context, text string, normalize bool) ([]float32, error) {
	vecs, err := e.embedScoped(ctx, scopeText, []string{text}, normalize)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per text in input order. Only the unique
// texts missing from the cache reach the model, in a single call.
func (e *EmbeddingEngine) EmbedBatch(ctx context.Context, texts []string, normalize bool) ([][]float32, error) {
	return e.embedScoped(ctx, scopeText, texts, normalize)
}

func (e *EmbeddingEngine) embedScoped(
	ctx context.Context, scope string, texts []string, normalize bool,
) ([][]float32, error) {
	result := make([][]float32, len(texts))
	if len(texts) == 0 {
		return result, nil
	}

	// Partition into cached and uncached; uncached texts are deduplicated
	// in first-seen order and remember every position they fill.
	var uncached []string
	positions := make(map[string][]int)
	for i, text := range texts {
		if idx, seen := positions[text]; seen {
			positions[text] = append(idx, i)
			continue
		}
		if vec, ok := e.cached(ctx, embeddingKey(scope, normalize, text)); ok {
			result[i] = vec
			// Later duplicates reuse the hit without another lookup.
			positions[text] = []int{i}
			continue
		}
		positions[text] = []int{i}
		uncached = append(uncached, text)
	}

	if len(uncached) > 0 {
		logger.Debug("embedding: %d of %d texts need inference", len(uncached), len(texts))

		var vecs [][]float32
		err := e.pool.Do(ctx, func(ctx context.Context) error {
			var err error
			vecs, err = e.model.EmbedBatch(ctx, uncached)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("embed %d texts: %w", len(uncached), err)
		}
		if len(vecs) != len(uncached) {
			return nil, fmt.Errorf("embed: model returned %d vectors for %d texts", len(vecs), len(uncached))
		}

		dim := e.model.Dimensions()
		for j, text := range uncached {
			vec := vecs[j]
			if dim > 0 && len(vec) != dim {
				return nil, fmt.Errorf("embed: got %d components, want %d: %w",
					len(vec), dim, domain.ErrDimensionMismatch)
			}
			if normalize {
				vec = l2Normalize(vec)
			}
			if e.cache != nil {
				if err := e.cache.Set(ctx, embeddingKey(scope, normalize, text), vec, e.ttl); err != nil {
					logger.Warn("embedding: cache set failed: %v", err)
				}
			}
			for _, i := range positions[text] {
				result[i] = vec
			}
		}
	}

	// Fill duplicates of cached texts.
	for _, idx := range positions {
		for _, i := range idx[1:] {
			if result[i] == nil {
				result[i] = result[idx[0]]
			}
		}
	}
	return result, nil
}

func (e *EmbeddingEngine) cached(ctx context.Context, key string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	var vec []float32
	ok, err := e.cache.Get(ctx, key, &vec)
	if err != nil || !ok {
		return nil, false
	}
	return vec, true
}

// EmbedChunks embeds every chunk of a document that has no stored vector
// and returns the new embeddings. force deletes the document's vectors
// first. Vectors are committed in checkpoints of the configured batch
// size; a failure loses only the current batch.
func (e *EmbeddingEngine) EmbedChunks(ctx context.Context, documentID string, force bool) ([]domain.Embedding, error) {
	doc, err := e.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunks, err := e.docs.GetChunks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get chunks %s: %w", documentID, err)
	}
	if len(chunks) == 0 {
		logger.Warn("embedding: document %s has no chunks", documentID)
		return nil, nil
	}

	changed := false
	defer func() {
		if changed {
			e.embeddingsChanged(ctx, documentID)
		}
	}()

	if force {
		n, err := e.vectors.DeleteEmbeddings(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("delete embeddings %s: %w", documentID, err)
		}
		changed = true
		logger.Debug("embedding: deleted %d embeddings of %s", n, documentID)
		NewInvalidator(e.cache).InvalidateDocument(ctx, documentID)
	}

	existing, err := e.vectors.GetEmbeddings(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get embeddings %s: %w", documentID, err)
	}

	var todo []domain.Chunk
	for _, c := range chunks {
		if _, ok := existing[c.ID]; !ok {
			todo = append(todo, c)
		}
	}
	if len(todo) == 0 {
		logger.Debug("embedding: %s already fully embedded", documentID)
		return nil, nil
	}

	logger.Info("embedding %d of %d chunks of %q", len(todo), len(chunks), doc.Title)

	changed = true

	var created []domain.Embedding
	for start := 0; start < len(todo); start += e.batchSize {
		end := min(start+e.batchSize, len(todo))
		batch := todo[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = chunkInput(doc.Title, c.Text)
		}

		vecs, err := e.embedScoped(ctx, documentID, texts, true)
		if err != nil {
			return created, fmt.Errorf("embed chunks %d-%d of %s: %w", start, end-1, documentID, err)
		}

		records := make([]domain.Embedding, len(batch))
		for i, c := range batch {
			records[i] = domain.Embedding{
				ID:         e.newID(),
				ChunkID:    c.ID,
				Vector:     vecs[i],
				Model:      e.model.ModelName(),
				Normalized: true,
				CreatedAt:  e.now(),
			}
		}
		if err := e.vectors.SaveEmbeddings(ctx, records); err != nil {
			return created, fmt.Errorf("save embeddings %d-%d of %s: %w", start, end-1, documentID, err)
		}
		created = append(created, records...)
		logger.Debug("embedding: committed %d/%d", len(created), len(todo))
	}

	return created, nil
}

// embeddingsChanged retires the document's cached chunk sets. It runs after
// the last commit, also when embedding failed part way or ctx was cancelled.
func (e *EmbeddingEngine) embeddingsChanged(ctx context.Context, documentID string) {
	ctx = context.WithoutCancel(ctx)
	if err := e.vectors.BumpEmbeddingGeneration(ctx, documentID); err != nil {
		logger.Warn("embedding: bump generation of %s: %v", documentID, err)
	}
	NewInvalidator(e.cache).clear(ctx, namespacePattern(domain.CacheNamespaceChunk, documentID))
}

// chunkInput prefixes the document title so chunks carry their context.
func chunkInput(title, text string) string {
	if title == "" {
		return text
	}
	return title + "\n\n" + text
}

// Stats summarises embedding coverage.
func (e *EmbeddingEngine) Stats(ctx context.Context) (*domain.EmbeddingStats, error) {
	total, perDoc, err := e.vectors.CountEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}
	chunks, err := e.docs.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	docs, err := e.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	stats := &domain.EmbeddingStats{
		TotalEmbeddings: total,
		TotalChunks:     chunks,
		Model:           e.model.ModelName(),
		Dimension:       e.model.Dimensions(),
		PerDocument:     perDoc,
	}
	for _, d := range docs {
		if d.Status == domain.DocumentStatusReady {
			stats.ReadyDocuments++
		}
	}
	if chunks > 0 {
		stats.Coverage = math.Round(float64(total)/float64(chunks)*1000) / 10
	}
	return stats, nil
}

// EmbedAll embeds every ready document in a project, or every ready
// document when projectID is empty. A failing document is logged and
// skipped; the failures are returned joined after the rest are processed.
func (e *EmbeddingEngine) EmbedAll(ctx context.Context, projectID string, force bool) (int, error) {
	docs, err := e.readyDocuments(ctx, projectID)
	if err != nil {
		return 0, err
	}

	logger.Info("embedding %d documents", len(docs))

	processed := 0
	var errs []error
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		logger.Debug("embedding document %d/%d: %s (%s)", i+1, len(docs), doc.Title, doc.ID)
		if _, err := e.EmbedChunks(ctx, doc.ID, force); err != nil {
			logger.Error("embedding document %s failed: %v", doc.ID, err)
			errs = append(errs, fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		processed++
	}

	return processed, errors.Join(errs...)
}

func (e *EmbeddingEngine) readyDocuments(ctx context.Context, projectID string) ([]domain.Document, error) {
	all, err := e.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var inScope map[string]bool
	if projectID != "" {
		if e.projects == nil {
			return nil, fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
		}
		ids, err := e.projects.ListDocumentIDs(ctx, projectID)
		if err != nil {
			return nil, err
		}
		inScope = make(map[string]bool, len(ids))
		for _, id := range ids {
			inScope[id] = true
		}
	}

	var docs []domain.Document
	for _, d := range all {
		if d.Status != domain.DocumentStatusReady {
			continue
		}
		if inScope != nil && !inScope[d.ID] {
			continue
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// l2Normalize returns v scaled to unit length. The zero vector is returned
// unchanged.
func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
