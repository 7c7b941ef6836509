package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure ProjectStore implements the interfaces.
var (
	_ driven.ProjectStore      = (*ProjectStore)(nil)
	_ driven.ConversationStore = (*ProjectStore)(nil)
)

// ProjectStore is an in-memory implementation of driven.ProjectStore
// and driven.ConversationStore.
type ProjectStore struct {
	mu            sync.RWMutex
	projects      map[string]domain.Project
	members       map[string][]string // project ID -> document IDs in insertion order
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
}

// NewProjectStore creates a new in-memory project store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects:      make(map[string]domain.Project),
		members:       make(map[string][]string),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

// SaveProject stores or updates a project.
func (s *ProjectStore) SaveProject(_ context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = *p
	return nil
}

// GetProject retrieves a project by ID.
func (s *ProjectStore) GetProject(_ context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (s *ProjectStore) ListProjects(_ context.Context) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteProject removes a project, its memberships and conversations.
func (s *ProjectStore) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	delete(s.projects, id)
	delete(s.members, id)
	for cid, c := range s.conversations {
		if c.ProjectID == id {
			delete(s.conversations, cid)
			delete(s.messages, cid)
		}
	}
	return nil
}

// AddDocument links a document to a project.
func (s *ProjectStore) AddDocument(_ context.Context, projectID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	for _, id := range s.members[projectID] {
		if id == documentID {
			return nil
		}
	}
	s.members[projectID] = append(s.members[projectID], documentID)
	return nil
}

// RemoveDocument unlinks a document from a project.
func (s *ProjectStore) RemoveDocument(_ context.Context, projectID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.members[projectID]
	for i, id := range ids {
		if id == documentID {
			s.members[projectID] = append(ids[:i:i], ids[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("document %s in project %s: %w", documentID, projectID, domain.ErrNotFound)
}

// ListDocumentIDs returns the IDs of documents linked to a project.
func (s *ProjectStore) ListDocumentIDs(_ context.Context, projectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	return append([]string{}, s.members[projectID]...), nil
}

// ProjectsForDocument returns the IDs of projects containing a document.
func (s *ProjectStore) ProjectsForDocument(_ context.Context, documentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []string
	for pid, ids := range s.members {
		for _, id := range ids {
			if id == documentID {
				result = append(result, pid)
				break
			}
		}
	}
	sort.Strings(result)
	return result, nil
}

// SaveConversation stores or updates a conversation.
func (s *ProjectStore) SaveConversation(_ context.Context, c *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = *c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *ProjectStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

// ListConversations returns a project's conversations, newest first.
func (s *ProjectStore) ListConversations(_ context.Context, projectID string) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Conversation
	for _, c := range s.conversations {
		if c.ProjectID == projectID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	return result, nil
}

// AddMessage appends a message to its conversation.
func (s *ProjectStore) AddMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[m.ConversationID]; !ok {
		return fmt.Errorf("conversation %s: %w", m.ConversationID, domain.ErrNotFound)
	}
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], *m)
	return nil
}

// RecentMessages returns up to limit of the latest messages, oldest first.
func (s *ProjectStore) RecentMessages(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.Message{}, msgs...), nil
}
