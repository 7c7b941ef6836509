package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/views/doccontent"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/views/docdetails"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/views/documents"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/views/menu"
)

// App routes messages to the active view.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	menuView       *menu.View
	askView        *ask.View
	documentsView  *documents.View
	docContentView *doccontent.View
	docDetailsView *docdetails.View

	currentView messages.ViewType

	// err is the most recent ErrorOccurred.
	err error

	width  int
	height int
	ready  bool
}

var _ tea.Model = (*App)(nil)

// NewApp builds every view up front. ports must validate.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	menuView := menu.NewView(s)
	menuView.SetScope(ports.ProjectID)

	return &App{
		ports:          ports,
		ctx:            context.Background(),
		styles:         s,
		keymap:         km,
		menuView:       menuView,
		askView:        ask.NewView(s, km, ports.Query).WithProject(ports.ProjectID),
		documentsView:  documents.NewView(s, ports.Documents),
		docContentView: doccontent.NewView(s, ports.Documents),
		docDetailsView: docdetails.NewView(s),
		currentView:    messages.ViewMenu,
	}, nil
}

// WithContext sets the context used for queries.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.askView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("docqa"),
	)
}

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo,funlen
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		// Global quit with ctrl+c
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

		switch a.currentView {
		case messages.ViewMenu:
			a.menuView, cmd = a.menuView.Update(msg)
		case messages.ViewAsk:
			a.askView, cmd = a.askView.Update(msg)
			a.err = a.askView.Err()
		case messages.ViewDocuments:
			a.documentsView, cmd = a.documentsView.Update(msg)
		case messages.ViewDocContent:
			a.docContentView, cmd = a.docContentView.Update(msg)
		case messages.ViewDocDetails:
			a.docDetailsView, cmd = a.docDetailsView.Update(msg)
		case messages.ViewHelp:
			if msg.Type == tea.KeyEsc {
				a.currentView = messages.ViewMenu
			}
		}
		return a, cmd

	case messages.ViewChanged:
		a.currentView = msg.View
		switch msg.View {
		case messages.ViewAsk:
			return a, a.askView.Init()
		case messages.ViewDocuments:
			return a, a.documentsView.Init()
		case messages.ViewMenu, messages.ViewHelp, messages.ViewDocContent, messages.ViewDocDetails:
		}
		return a, nil

	case messages.AnswerReceived:
		a.askView, cmd = a.askView.Update(msg)
		a.err = a.askView.Err()
		return a, cmd

	case messages.DocumentsLoaded:
		a.documentsView, cmd = a.documentsView.Update(msg)
		return a, cmd

	case messages.DocumentsRefresh:
		// Ticks that arrive after leaving the list are dropped.
		a.documentsView, cmd = a.documentsView.Update(msg)
		if a.currentView != messages.ViewDocuments {
			return a, nil
		}
		return a, cmd

	case messages.DocumentSelected:
		back := a.currentView
		if back == messages.ViewDocContent {
			back = messages.ViewDocuments
		}
		a.currentView = messages.ViewDocContent
		doc := msg.Document
		return a, a.docContentView.SetDocument(&doc, msg.Mode, back)

	case messages.DocumentContentLoaded:
		a.docContentView, cmd = a.docContentView.Update(msg)
		return a, cmd

	case messages.DocumentDetailsRequested:
		doc := msg.Document
		a.docDetailsView.SetDocument(&doc)
		a.currentView = messages.ViewDocDetails
		return a, nil

	case messages.ErrorOccurred:
		a.err = msg.Err
		switch a.currentView {
		case messages.ViewAsk:
			a.askView, cmd = a.askView.Update(msg)
		case messages.ViewDocuments:
			a.documentsView, cmd = a.documentsView.Update(msg)
		case messages.ViewDocContent:
			a.docContentView, cmd = a.docContentView.Update(msg)
		case messages.ViewDocDetails:
			a.docDetailsView, cmd = a.docDetailsView.Update(msg)
		case messages.ViewMenu, messages.ViewHelp:
		}
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	// Forward other messages (cursor blinks) to the active input.
	if a.currentView == messages.ViewAsk {
		a.askView, cmd = a.askView.Update(msg)
	}
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewAsk:
		return a.askView.View()
	case messages.ViewDocuments:
		return a.documentsView.View()
	case messages.ViewDocContent:
		return a.docContentView.View()
	case messages.ViewDocDetails:
		return a.docDetailsView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	case messages.ViewMenu:
	}
	return a.menuView.View()
}

// viewHelp renders the keybindings grouped by purpose.
func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")

	groups := []string{"Navigation", "Questions", "General"}
	for i, bindings := range a.keymap.FullHelp() {
		b.WriteString(a.styles.Subtitle.Render(groups[i] + ":"))
		b.WriteString("\n")
		for _, binding := range bindings {
			b.WriteString(helpLine(binding))
		}
		b.WriteString("\n")
	}

	b.WriteString(a.styles.Subtitle.Render("Documents:"))
	b.WriteString("\n")
	b.WriteString("  enter       Actions (content, chunks, details)\n")
	b.WriteString("  tab         Toggle text and chunks\n")
	b.WriteString("  r           Reload list\n\n")

	b.WriteString(a.styles.Help.Render("[esc] back to menu"))
	return b.String()
}

func helpLine(binding key.Binding) string {
	h := binding.Help()
	return fmt.Sprintf("  %-10s  %s\n", h.Key, h.Desc)
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Answer returns the last answer shown in the ask view.
func (a *App) Answer() string {
	return a.askView.Answer()
}

// ConversationID returns the conversation the ask view is continuing.
func (a *App) ConversationID() string {
	return a.askView.ConversationID()
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.menuView.SetDimensions(width, height)
	a.askView.SetDimensions(width, height)
	a.documentsView.SetDimensions(width, height)
	a.docContentView.SetDimensions(width, height)
	a.docDetailsView.SetDimensions(width, height)
}
