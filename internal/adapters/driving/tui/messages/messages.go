// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/docqa/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewAsk is the question input and answer view.
	ViewAsk
	// ViewDocuments lists the ingested documents.
	ViewDocuments
	// ViewDocContent shows a document's text or chunks.
	ViewDocContent
	// ViewDocDetails shows document metadata.
	ViewDocDetails
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewAsk:
		return "ask"
	case ViewDocuments:
		return "documents"
	case ViewDocContent:
		return "doc_content"
	case ViewDocDetails:
		return "doc_details"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// AnswerReceived carries the result of a question back to the model.
type AnswerReceived struct {
	Question string
	Response *domain.QueryResponse
	Err      error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// DocumentsLoaded carries the document list.
type DocumentsLoaded struct {
	Documents []domain.Document
	Err       error
}

// DocumentsRefresh asks the document list to reload while ingestion is
// still running.
type DocumentsRefresh struct{}

// ContentMode selects what the content view renders.
type ContentMode int

const (
	// ContentText renders the extracted document text.
	ContentText ContentMode = iota
	// ContentChunks renders the stored chunks with their positions.
	ContentChunks
)

// DocumentSelected opens a document in the content view.
type DocumentSelected struct {
	Document domain.Document
	Mode     ContentMode
}

// DocumentDetailsRequested opens a document in the details view.
type DocumentDetailsRequested struct {
	Document domain.Document
}

// DocumentContentLoaded carries a document's text or chunks.
type DocumentContentLoaded struct {
	DocumentID string
	Content    string
	Chunks     []domain.Chunk
	Err        error
}
