package ask

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

type stubQuery struct {
	resp *domain.QueryResponse
	err  error
	reqs []domain.QueryRequest
}

func (s *stubQuery) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	s.reqs = append(s.reqs, req)
	return s.resp, s.err
}

func (s *stubQuery) Retrieve(context.Context, domain.QueryRequest) ([]domain.RankedChunk, error) {
	return nil, nil
}

func testResponse() *domain.QueryResponse {
	page := 3
	return &domain.QueryResponse{
		Answer: "The warranty lasts two years [1].",
		Sources: []domain.Source{
			{ID: 1, DocumentID: "doc1", DocumentTitle: "Manual", TextPreview: "Warranty: two years", Score: 0.91, PageNum: &page},
			{ID: 2, DocumentID: "doc2", DocumentTitle: "FAQ", TextPreview: "Returns", Score: 0.55},
		},
		ChunksUsed:     2,
		ModelUsed:      "test-model",
		Usage:          domain.Usage{TotalTokens: 42},
		ConversationID: "conv-9",
	}
}

func submit(t *testing.T, v *View, question string) tea.Msg {
	t.Helper()
	v.SetQuestion(question)
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	v.Update(msg)
	return msg
}

func TestNewView_Defaults(t *testing.T) {
	v := NewView(nil, nil, nil)

	require.NotNil(t, v)
	assert.NotNil(t, v.styles)
	assert.NotNil(t, v.keymap)
	assert.True(t, v.InputFocused())
	assert.False(t, v.Ready())
	assert.Equal(t, "Initialising...", v.View())
}

func TestView_EnterIgnoresBlankQuestion(t *testing.T) {
	v := NewView(nil, nil, &stubQuery{})
	v.SetQuestion("   ")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.True(t, v.InputFocused())
}

func TestView_SubmitBuildsRequest(t *testing.T) {
	svc := &stubQuery{resp: testResponse()}
	v := NewView(nil, nil, svc).WithProject("p1")
	v.SetDimensions(160, 40)

	msg := submit(t, v, "  How long is the warranty? ")

	answer, ok := msg.(messages.AnswerReceived)
	require.True(t, ok)
	assert.Equal(t, "How long is the warranty?", answer.Question)

	require.Len(t, svc.reqs, 1)
	req := svc.reqs[0]
	assert.Equal(t, "How long is the warranty?", req.Query)
	assert.Equal(t, "p1", req.ProjectID)
	assert.Equal(t, domain.DefaultTopK, req.TopK)
	assert.True(t, req.IncludeSources)

	assert.Equal(t, "The warranty lasts two years [1].", v.Answer())
	assert.Len(t, v.Sources(), 2)
	assert.Equal(t, "conv-9", v.ConversationID())
	assert.Equal(t, 1, v.Turns())
	assert.False(t, v.InputFocused())

	view := v.View()
	assert.Contains(t, view, "Manual (p. 3)")
	assert.Contains(t, view, "test-model · 2 chunks · 42 tokens")
}

func TestView_FollowUpKeepsConversation(t *testing.T) {
	svc := &stubQuery{resp: testResponse()}
	v := NewView(nil, nil, svc)
	v.SetDimensions(100, 40)

	submit(t, v, "First?")
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Question())

	submit(t, v, "Second?")
	require.Len(t, svc.reqs, 2)
	assert.Empty(t, svc.reqs[0].ConversationID)
	assert.Equal(t, "conv-9", svc.reqs[1].ConversationID)
	assert.Equal(t, 2, v.Turns())
}

func TestView_ResetStartsNewConversation(t *testing.T) {
	svc := &stubQuery{resp: testResponse()}
	v := NewView(nil, nil, svc)
	v.SetDimensions(100, 40)

	submit(t, v, "First?")
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	assert.Empty(t, v.ConversationID())
	assert.Empty(t, v.Answer())
	assert.Empty(t, v.Sources())
	assert.True(t, v.InputFocused())

	submit(t, v, "Again?")
	assert.Empty(t, svc.reqs[1].ConversationID)
}

func TestView_NavigateAndOpenSource(t *testing.T) {
	v := NewView(nil, nil, &stubQuery{resp: testResponse()})
	v.SetDimensions(100, 40)
	submit(t, v, "Warranty?")

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	require.NotNil(t, cmd)

	selected, ok := cmd().(messages.DocumentSelected)
	require.True(t, ok)
	assert.Equal(t, "doc2", selected.Document.ID)
	assert.Equal(t, "FAQ", selected.Document.Title)
	assert.Equal(t, messages.ContentText, selected.Mode)
}

func TestView_QueryError(t *testing.T) {
	v := NewView(nil, nil, &stubQuery{err: errors.New("llm down")})
	v.SetDimensions(100, 40)

	submit(t, v, "Anything?")

	require.Error(t, v.Err())
	assert.True(t, v.InputFocused())
	assert.Contains(t, v.View(), "llm down")
}

func TestView_NoQueryService(t *testing.T) {
	v := NewView(nil, nil, nil)
	v.SetDimensions(80, 24)

	msg := submit(t, v, "Anything?")

	assert.Equal(t, messages.ErrorOccurred{Err: ErrNoQueryService}, msg)
	assert.ErrorIs(t, v.Err(), ErrNoQueryService)
}

func TestView_EscReturnsToMenu(t *testing.T) {
	v := NewView(nil, nil, nil)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}
