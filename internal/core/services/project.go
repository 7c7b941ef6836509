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

// Ensure the services implement their interfaces.
var (
	_ driving.ProjectService      = (*ProjectService)(nil)
	_ driving.ConversationService = (*ConversationService)(nil)
)

// ProjectService manages projects and their documents. Every mutation
// clears the project's cached answers.
type ProjectService struct {
	projects driven.ProjectStore
	docs     driven.DocumentStore
	inval    *Invalidator

	newID func() string
	now   func() time.Time
}

// NewProjectService creates a project service.
func NewProjectService(projects driven.ProjectStore, docs driven.DocumentStore, cache driven.Cache) *ProjectService {
	return &ProjectService{
		projects: projects,
		docs:     docs,
		inval:    NewInvalidator(cache),
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

// Create stores a new project.
func (s *ProjectService) Create(ctx context.Context, name, description string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is empty", domain.ErrInvalidInput)
	}

	now := s.now()
	p := &domain.Project{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.SaveProject(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	logger.Info("created project %s (%s)", p.ID, p.Name)
	return p, nil
}

// Get retrieves a project by ID.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*domain.Project, error) {
	return s.projects.GetProject(ctx, projectID)
}

// List returns all projects.
func (s *ProjectService) List(ctx context.Context) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx)
}

// Update renames a project. An empty name keeps the current one.
func (s *ProjectService) Update(ctx context.Context, projectID, name, description string) (*domain.Project, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		p.Name = name
	}
	p.Description = description
	p.UpdatedAt = s.now()

	if err := s.projects.SaveProject(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	s.inval.InvalidateProject(ctx, projectID)
	return p, nil
}

// Delete removes a project with its memberships and conversations.
// The documents themselves are kept.
func (s *ProjectService) Delete(ctx context.Context, projectID string) error {
	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.inval.InvalidateProject(ctx, projectID)
	logger.Info("deleted project %s", projectID)
	return nil
}

// AddDocument links an existing document to the project.
func (s *ProjectService) AddDocument(ctx context.Context, projectID, documentID string) error {
	if _, err := s.docs.GetDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.projects.AddDocument(ctx, projectID, documentID); err != nil {
		return err
	}
	s.inval.InvalidateProject(ctx, projectID)
	return nil
}

// RemoveDocument unlinks a document from the project.
func (s *ProjectService) RemoveDocument(ctx context.Context, projectID, documentID string) error {
	if err := s.projects.RemoveDocument(ctx, projectID, documentID); err != nil {
		return err
	}
	s.inval.InvalidateProject(ctx, projectID)
	return nil
}

// Documents returns the documents linked to the project, in link order.
// Links to documents that no longer exist are skipped.
func (s *ProjectService) Documents(ctx context.Context, projectID string) ([]domain.Document, error) {
	ids, err := s.projects.ListDocumentIDs(ctx, projectID)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.docs.GetDocument(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// ConversationService reads conversation history.
type ConversationService struct {
	conversations driven.ConversationStore
}

// NewConversationService creates a conversation service.
func NewConversationService(conversations driven.ConversationStore) *ConversationService {
	return &ConversationService{conversations: conversations}
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	return s.conversations.GetConversation(ctx, conversationID)
}

// List returns a project's conversations, newest first.
func (s *ConversationService) List(ctx context.Context, projectID string) ([]domain.Conversation, error) {
	return s.conversations.ListConversations(ctx, projectID)
}

// History returns up to limit of the latest messages, oldest first.
func (s *ConversationService) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if _, err := s.conversations.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.conversations.RecentMessages(ctx, conversationID, limit)
}
