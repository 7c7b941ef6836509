package domain

import "time"

// Project groups documents into a retrieval scope.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Role identifies the author of a conversation message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label returns the prefix used when folding history into a prompt.
func (r Role) Label() string {
	if r == RoleAssistant {
		return "Assistant"
	}
	return "User"
}

// Conversation is a sequence of question and answer turns within a project.
type Conversation struct {
	ID        string
	ProjectID string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single conversation turn.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string

	// Citations are the sources the assistant answer drew on.
	Citations []Source

	// Model is the model that produced an assistant answer.
	Model string

	// TokensUsed is the total token count of an assistant answer.
	TokensUsed int

	CreatedAt time.Time
}
