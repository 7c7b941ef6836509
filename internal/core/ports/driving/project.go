package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// ProjectService manages projects. Every mutation invalidates the
// project's cached answers.
type ProjectService interface {
	Create(ctx context.Context, name, description string) (*domain.Project, error)
	Get(ctx context.Context, projectID string) (*domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
	Update(ctx context.Context, projectID, name, description string) (*domain.Project, error)
	Delete(ctx context.Context, projectID string) error

	// AddDocument links an existing document to the project.
	AddDocument(ctx context.Context, projectID, documentID string) error

	// RemoveDocument unlinks a document from the project.
	RemoveDocument(ctx context.Context, projectID, documentID string) error

	// Documents returns the documents linked to the project.
	Documents(ctx context.Context, projectID string) ([]domain.Document, error)
}

// ConversationService reads conversation history.
type ConversationService interface {
	Get(ctx context.Context, conversationID string) (*domain.Conversation, error)
	List(ctx context.Context, projectID string) ([]domain.Conversation, error)

	// History returns up to limit of the latest messages, oldest first.
	History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}
