package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// DefaultPollInterval is how often Wait re-reads a document's status.
const DefaultPollInterval = 100 * time.Millisecond

// errNoChunks marks a document whose text produced no chunks.
var errNoChunks = errors.New("document produced no chunks")

// IngestService chunks and embeds submitted documents in the background.
// Each document moves queued -> processing -> ready | error.
type IngestService struct {
	docs     driven.DocumentStore
	projects driven.ProjectStore
	pipeline driven.PostProcessorPipeline
	embedder *EmbeddingEngine
	pool     *WorkerPool
	inval    *Invalidator

	pollInterval time.Duration
	newID        func() string
	now          func() time.Time
}

// NewIngestService creates an ingest service. pool runs the background
// tasks and must not be the pool used for inference.
func NewIngestService(
	docs driven.DocumentStore,
	projects driven.ProjectStore,
	pipeline driven.PostProcessorPipeline,
	embedder *EmbeddingEngine,
	pool *WorkerPool,
	cache driven.Cache,
) *IngestService {
	return &IngestService{
		docs:         docs,
		projects:     projects,
		pipeline:     pipeline,
		embedder:     embedder,
		pool:         pool,
		inval:        NewInvalidator(cache),
		pollInterval: DefaultPollInterval,
		newID:        func() string { return uuid.New().String() },
		now:          time.Now,
	}
}

// Submit stores the document as queued and schedules processing.
func (s *IngestService) Submit(ctx context.Context, req driving.IngestRequest) (*domain.Document, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: document content is empty", domain.ErrInvalidInput)
	}
	if req.SourceType == "" {
		req.SourceType = domain.SourceTypeText
	}
	if !req.SourceType.IsValid() {
		return nil, fmt.Errorf("%w: source type %q", domain.ErrUnsupportedType, req.SourceType)
	}
	if req.ProjectID != "" {
		if _, err := s.projects.GetProject(ctx, req.ProjectID); err != nil {
			return nil, fmt.Errorf("project %s: %w", req.ProjectID, err)
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.Source.Title
	}
	if title == "" {
		title = "Untitled"
	}

	now := s.now()
	doc := &domain.Document{
		ID:         s.newID(),
		Title:      title,
		Content:    req.Content,
		SourceType: req.SourceType,
		URI:        req.URI,
		Source:     req.Source,
		Status:     domain.DocumentStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	if req.ProjectID != "" {
		if err := s.projects.AddDocument(ctx, req.ProjectID, doc.ID); err != nil {
			return nil, fmt.Errorf("add document to project %s: %w", req.ProjectID, err)
		}
	}

	logger.Info("queued document %s (%s)", doc.ID, doc.Title)
	if err := s.schedule(ctx, doc.ID, false); err != nil {
		return nil, err
	}
	return doc, nil
}

// Status returns the document with its current ingestion status.
func (s *IngestService) Status(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docs.GetDocument(ctx, documentID)
}

// Reprocess re-chunks a document and regenerates its embeddings.
func (s *IngestService) Reprocess(ctx context.Context, documentID string) error {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status == domain.DocumentStatusProcessing {
		return fmt.Errorf("%w: document %s is being processed", domain.ErrInvalidInput, documentID)
	}
	if err := s.docs.UpdateStatus(ctx, documentID, domain.DocumentStatusQueued, ""); err != nil {
		return err
	}
	logger.Info("queued document %s for reprocessing", documentID)
	return s.schedule(ctx, documentID, true)
}

// Wait polls until the document reaches a terminal status or ctx ends.
func (s *IngestService) Wait(ctx context.Context, documentID string) (*domain.Document, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		doc, err := s.docs.GetDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if doc.Status.IsTerminal() {
			return doc, nil
		}

		select {
		case <-ctx.Done():
			return doc, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *IngestService) schedule(ctx context.Context, documentID string, reprocess bool) error {
	err := s.pool.Enqueue(ctx, func(ctx context.Context) {
		s.process(ctx, documentID, reprocess)
	})
	if err != nil {
		s.fail(context.WithoutCancel(ctx), documentID, err)
		return fmt.Errorf("schedule document %s: %w", documentID, err)
	}
	return nil
}

// process runs one document through chunking and embedding and records
// the outcome as its status.
func (s *IngestService) process(ctx context.Context, documentID string, reprocess bool) {
	start := s.now()
	if err := s.docs.UpdateStatus(ctx, documentID, domain.DocumentStatusProcessing, ""); err != nil {
		logger.Error("ingest %s: %v", documentID, err)
		return
	}

	n, err := s.chunkAndEmbed(ctx, documentID, reprocess)
	if err != nil {
		s.fail(ctx, documentID, err)
		return
	}

	if err := s.docs.UpdateStatus(ctx, documentID, domain.DocumentStatusReady, ""); err != nil {
		logger.Error("ingest %s: %v", documentID, err)
		return
	}
	s.invalidateAnswers(ctx, documentID)
	logger.Info("document %s ready: %d chunks in %v", documentID, n, s.now().Sub(start).Round(time.Millisecond))
}

func (s *IngestService) chunkAndEmbed(ctx context.Context, documentID string, reprocess bool) (int, error) {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}

	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return 0, errNoChunks
	}

	if err := s.docs.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	if reprocess {
		s.inval.InvalidateDocument(ctx, documentID)
	}

	if _, err := s.embedder.EmbedChunks(ctx, documentID, false); err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	return len(chunks), nil
}

func (s *IngestService) fail(ctx context.Context, documentID string, cause error) {
	logger.Error("ingest %s failed: %v", documentID, cause)
	if err := s.docs.UpdateStatus(ctx, documentID, domain.DocumentStatusError, cause.Error()); err != nil {
		logger.Error("ingest %s: record failure: %v", documentID, err)
	}
}

// invalidateAnswers clears answers that could not yet see the document.
func (s *IngestService) invalidateAnswers(ctx context.Context, documentID string) {
	projectIDs, err := s.projects.ProjectsForDocument(ctx, documentID)
	if err != nil {
		logger.Warn("ingest %s: projects for document: %v", documentID, err)
	}
	s.inval.InvalidateAnswersFor(ctx, projectIDs)
}
