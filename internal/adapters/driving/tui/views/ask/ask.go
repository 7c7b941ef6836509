// Package ask provides the question and answer view for the TUI.
package ask

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// View is the ask view: a question input, the latest answer, its sources
// and a status bar. Follow-up questions stay in the same conversation
// until it is reset.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QuestionInput
	sources   *list.SourceList
	statusbar *status.Bar

	queryService driving.QueryService
	ctx          context.Context
	projectID    string

	question       string
	answer         string
	conversationID string
	turns          int

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool
}

// NewView creates a new ask view.
func NewView(s *styles.Styles, km *keymap.KeyMap, queryService driving.QueryService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:       s,
		keymap:       km,
		input:        input.NewQuestionInput(s),
		sources:      list.NewSourceList(s),
		statusbar:    status.NewBar(s, km),
		queryService: queryService,
		ctx:          context.Background(),
		width:        80,
		height:       24,
		focusInput:   true,
	}
}

// WithContext sets the context for queries.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// WithProject scopes questions to a project.
func (v *View) WithProject(projectID string) *View {
	v.projectID = projectID
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			question := strings.TrimSpace(v.input.Value())
			if question == "" {
				return v, nil
			}
			v.question = question
			v.focusInput = false
			v.input.Blur()
			v.statusbar.SetState(status.StateThinking)
			return v, v.ask(question)
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case keymap.Matches(msg.String(), v.keymap.Up):
		v.sources.MoveUp()
	case keymap.Matches(msg.String(), v.keymap.Down):
		v.sources.MoveDown()
	case keymap.Matches(msg.String(), v.keymap.NewQuestion):
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	case keymap.Matches(msg.String(), v.keymap.Reset):
		v.Reset()
		return v, v.input.Focus()
	case keymap.Matches(msg.String(), v.keymap.Open):
		src := v.sources.SelectedSource()
		if src == nil {
			return v, nil
		}
		doc := domain.Document{ID: src.DocumentID, Title: src.DocumentTitle}
		return v, func() tea.Msg {
			return messages.DocumentSelected{Document: doc, Mode: messages.ContentText}
		}
	}

	return v, nil
}

// ask returns a command that runs the question through the query service.
func (v *View) ask(question string) tea.Cmd {
	svc := v.queryService
	ctx := v.ctx
	req := domain.NewQueryRequest(question)
	req.ProjectID = v.projectID
	req.ConversationID = v.conversationID

	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoQueryService}
		}
		resp, err := svc.Query(ctx, req)
		return messages.AnswerReceived{Question: question, Response: resp, Err: err}
	}
}

func (v *View) handleAnswer(msg messages.AnswerReceived) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}
	if msg.Response == nil {
		return
	}

	v.err = nil
	v.answer = msg.Response.Answer
	if msg.Response.ConversationID != "" {
		v.conversationID = msg.Response.ConversationID
	}
	v.turns++
	v.sources.SetSources(msg.Response.Sources)
	v.statusbar.SetAnswer(msg.Response)
	v.focusInput = false
	v.input.Blur()
}

func (v *View) setError(err error) {
	if err == nil {
		return
	}
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
	// Let the user retype the question.
	v.focusInput = true
	v.input.Focus()
}

// View renders the ask view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 12)

	header := v.styles.Title.Render("docqa")
	if v.conversationID != "" {
		header += v.styles.Muted.Render("  conversation " + v.conversationID)
	}
	sections = append(sections, header, "", v.input.View(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	if v.answer != "" {
		sections = append(sections,
			v.styles.Muted.Render("Q: "+v.question),
			v.styles.Answer.Width(max(v.width-4, 20)).Render(v.answer),
			"",
			v.sources.View(),
		)
	}

	sections = append(sections, "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	// Reserve space for header, input, answer and status.
	v.sources.SetDimensions(width, height/2)
	v.statusbar.SetWidth(width)
}

// Reset clears the answer and starts a new conversation.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.sources.SetSources(nil)
	v.question = ""
	v.answer = ""
	v.conversationID = ""
	v.turns = 0
	v.err = nil
	v.statusbar.Clear()
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Question returns the current input value.
func (v *View) Question() string {
	return v.input.Value()
}

// SetQuestion sets the input value.
func (v *View) SetQuestion(q string) {
	v.input.SetValue(q)
}

// Answer returns the last answer.
func (v *View) Answer() string {
	return v.answer
}

// Sources returns the citations of the last answer.
func (v *View) Sources() []domain.Source {
	return v.sources.Sources()
}

// ConversationID returns the active conversation, if any.
func (v *View) ConversationID() string {
	return v.conversationID
}

// Turns returns the number of answers received in this conversation.
func (v *View) Turns() int {
	return v.turns
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}
