package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages ingested documents.
type DocumentService struct {
	docStore driven.DocumentStore
	projects driven.ProjectStore
	inval    *Invalidator
}

// NewDocumentService creates a new document service.
// The cache parameter is optional (can be nil).
func NewDocumentService(docStore driven.DocumentStore, projects driven.ProjectStore, cache driven.Cache) *DocumentService {
	return &DocumentService{
		docStore: docStore,
		projects: projects,
		inval:    NewInvalidator(cache),
	}
}

// List returns all documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetChunks returns a document's chunks in order.
func (s *DocumentService) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	// Verify document exists
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.docStore.GetChunks(ctx, documentID)
}

// Delete removes a document with its chunks and embeddings, unlinks it from
// every project and clears the cache entries that could reference it.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return err
	}

	projectIDs, err := s.projects.ProjectsForDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("projects for document %s: %w", documentID, err)
	}
	for _, pid := range projectIDs {
		if err := s.projects.RemoveDocument(ctx, pid, documentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("remove document from project %s: %w", pid, err)
		}
	}

	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}

	n := s.inval.InvalidateDocument(ctx, documentID)
	n += s.inval.InvalidateAnswersFor(ctx, projectIDs)
	logger.Info("deleted document %s (%d cache entries invalidated)", documentID, n)
	return nil
}
