package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// ProjectStore persists projects and their document membership.
type ProjectStore interface {
	// SaveProject stores or updates a project.
	SaveProject(ctx context.Context, project *domain.Project) error

	// GetProject retrieves a project by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetProject(ctx context.Context, id string) (*domain.Project, error)

	// ListProjects returns all projects, newest first.
	ListProjects(ctx context.Context) ([]domain.Project, error)

	// DeleteProject removes a project, its memberships and conversations.
	DeleteProject(ctx context.Context, id string) error

	// AddDocument links a document to a project. Linking twice is a no-op.
	AddDocument(ctx context.Context, projectID, documentID string) error

	// RemoveDocument unlinks a document from a project.
	RemoveDocument(ctx context.Context, projectID, documentID string) error

	// ListDocumentIDs returns the IDs of documents linked to a project.
	ListDocumentIDs(ctx context.Context, projectID string) ([]string, error)

	// ProjectsForDocument returns the IDs of projects containing a document.
	ProjectsForDocument(ctx context.Context, documentID string) ([]string, error)
}

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	// SaveConversation stores or updates a conversation.
	SaveConversation(ctx context.Context, conv *domain.Conversation) error

	// GetConversation retrieves a conversation by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// ListConversations returns a project's conversations, newest first.
	ListConversations(ctx context.Context, projectID string) ([]domain.Conversation, error)

	// AddMessage appends a message to its conversation.
	AddMessage(ctx context.Context, msg *domain.Message) error

	// RecentMessages returns up to limit of the latest messages, oldest first.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}
