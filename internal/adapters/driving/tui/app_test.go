package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

func newTestApp(t *testing.T) (*App, *mockQueryService, *mockDocumentService) {
	t.Helper()
	query := &mockQueryService{resp: &domain.QueryResponse{
		Answer:         "Paris is the capital [1].",
		Sources:        []domain.Source{{ID: 1, DocumentID: "doc1", DocumentTitle: "Geo", TextPreview: "Paris..."}},
		ChunksUsed:     1,
		ModelUsed:      "test-model",
		ConversationID: "conv-1",
	}}
	docs := &mockDocumentService{docs: []domain.Document{
		{ID: "doc1", Title: "Geo", Content: "Paris is the capital of France.", Status: domain.DocumentStatusReady},
	}}

	app, err := NewApp(&Ports{Query: query, Documents: docs, ProjectID: "p1"})
	require.NoError(t, err)
	app.SetDimensions(100, 40)
	return app, query, docs
}

// drain runs a command and feeds the application messages it produces back
// into the app. Cursor blink messages are dropped.
func drain(app *App, cmd tea.Cmd) {
	for cmd != nil {
		msg := cmd()
		switch msg.(type) {
		case messages.ViewChanged, messages.AnswerReceived, messages.DocumentsLoaded,
			messages.DocumentSelected, messages.DocumentContentLoaded,
			messages.DocumentDetailsRequested, messages.ErrorOccurred:
		default:
			return
		}
		_, cmd = app.Update(msg)
	}
}

func TestPorts_Validate(t *testing.T) {
	var nilPorts *Ports
	assert.ErrorIs(t, nilPorts.Validate(), ErrMissingQueryService)
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingQueryService)
	assert.ErrorIs(t, (&Ports{Query: &mockQueryService{}}).Validate(), ErrMissingDocumentService)
	assert.NoError(t, (&Ports{Query: &mockQueryService{}, Documents: &mockDocumentService{}}).Validate())
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(&Ports{Documents: &mockDocumentService{}})

	assert.ErrorIs(t, err, ErrMissingQueryService)
	assert.Nil(t, app)
}

func TestNewApp_StartsAtMenu(t *testing.T) {
	app, _, _ := newTestApp(t)

	assert.Equal(t, messages.ViewMenu, app.CurrentView())
	assert.True(t, app.Ready())
	assert.NotNil(t, app.Init())
	assert.Contains(t, app.View(), "docqa")
	assert.Contains(t, app.View(), "project p1")
}

func TestApp_View_NotReady(t *testing.T) {
	app, err := NewApp(&Ports{Query: &mockQueryService{}, Documents: &mockDocumentService{}})
	require.NoError(t, err)

	assert.Equal(t, "Initialising...", app.View())
}

func TestApp_WithContext(t *testing.T) {
	app, _, _ := newTestApp(t)

	type key string
	ctx := context.WithValue(context.Background(), key("k"), "v")
	assert.Equal(t, app, app.WithContext(ctx))
}

func TestApp_AskFlow(t *testing.T) {
	app, query, _ := newTestApp(t)

	_, cmd := app.Update(messages.ViewChanged{View: messages.ViewAsk})
	assert.Equal(t, messages.ViewAsk, app.CurrentView())
	assert.NotNil(t, cmd)

	app.askView.SetQuestion("What is the capital?")
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)

	assert.Equal(t, "What is the capital?", query.lastReq.Query)
	assert.Equal(t, "p1", query.lastReq.ProjectID)
	assert.Empty(t, query.lastReq.ConversationID)
	assert.Equal(t, "Paris is the capital [1].", app.Answer())
	assert.Equal(t, "conv-1", app.ConversationID())
	assert.Contains(t, app.View(), "Geo")

	// A follow-up continues the conversation.
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	app.askView.SetQuestion("And its population?")
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)
	assert.Equal(t, "conv-1", query.lastReq.ConversationID)
}

func TestApp_AskError(t *testing.T) {
	app, query, _ := newTestApp(t)
	query.err = domain.ErrEmbeddingUnavailable

	app.Update(messages.ViewChanged{View: messages.ViewAsk})
	app.askView.SetQuestion("Anything?")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)

	require.Error(t, app.Err())
	assert.ErrorIs(t, app.Err(), domain.ErrEmbeddingUnavailable)
	assert.Contains(t, app.View(), "Error")
}

func TestApp_OpenSourceFromAnswer(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(messages.ViewChanged{View: messages.ViewAsk})
	app.askView.SetQuestion("Capital?")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	drain(app, cmd)

	assert.Equal(t, messages.ViewDocContent, app.CurrentView())
	assert.Contains(t, app.View(), "Paris is the capital of France.")

	// Esc returns to the answer, not the document list.
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(app, cmd)
	assert.Equal(t, messages.ViewAsk, app.CurrentView())
}

func TestApp_DocumentsFlow(t *testing.T) {
	app, _, docs := newTestApp(t)
	docs.chunks = []domain.Chunk{{ID: "c0", DocumentID: "doc1", Index: 0, EndChar: 10, Text: "Paris is the capital"}}

	_, cmd := app.Update(messages.ViewChanged{View: messages.ViewDocuments})
	drain(app, cmd)
	assert.Equal(t, messages.ViewDocuments, app.CurrentView())
	assert.Contains(t, app.View(), "Geo")

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	drain(app, cmd)

	assert.Equal(t, messages.ViewDocContent, app.CurrentView())
	assert.Contains(t, app.View(), "#0")

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(app, cmd)
	assert.Equal(t, messages.ViewDocuments, app.CurrentView())
}

func TestApp_DocumentsRefreshOutsideList(t *testing.T) {
	app, _, _ := newTestApp(t)

	_, cmd := app.Update(messages.DocumentsRefresh{})
	assert.Nil(t, cmd, "refresh ticks are dropped away from the list")

	app.Update(messages.ViewChanged{View: messages.ViewDocuments})
	_, cmd = app.Update(messages.DocumentsRefresh{})
	require.NotNil(t, cmd)
	assert.IsType(t, messages.DocumentsLoaded{}, cmd())
}

func TestApp_DocumentDetails(t *testing.T) {
	app, _, docs := newTestApp(t)

	app.Update(messages.DocumentDetailsRequested{Document: docs.docs[0]})

	assert.Equal(t, messages.ViewDocDetails, app.CurrentView())
	assert.Contains(t, app.View(), "doc1")
	assert.Contains(t, app.View(), "ready")
}

func TestApp_HelpView(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(messages.ViewChanged{View: messages.ViewHelp})
	view := app.View()
	assert.Contains(t, view, "Help")
	assert.Contains(t, view, "follow up")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_Quit(t *testing.T) {
	app, _, _ := newTestApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = app.Update(messages.Quit{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
