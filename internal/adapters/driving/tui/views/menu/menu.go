// Package menu is the start screen of the terminal UI.
package menu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
)

// Item is one menu entry. Key is its single-letter shortcut.
type Item struct {
	Key   string
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool
}

// Items are the entries shown on the start screen.
var Items = []Item{
	{Key: "a", Label: "Ask a question", Hint: "answers cite the chunks they came from", View: messages.ViewAsk},
	{Key: "d", Label: "Documents", Hint: "browse ingested text, chunks and status", View: messages.ViewDocuments},
	{Key: "?", Label: "Help", Hint: "keys and commands", View: messages.ViewHelp},
	{Key: "q", Label: "Quit", Quit: true},
}

// View is the start menu.
type View struct {
	styles   *styles.Styles
	selected int
	scope    string
	width    int
	height   int
	ready    bool
}

// NewView creates the menu.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, width: 80, height: 24}
}

// SetScope names the project questions are scoped to.
func (v *View) SetScope(projectID string) {
	v.scope = projectID
}

// Init implements the view contract.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update moves the cursor and activates entries.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		switch k := msg.String(); k {
		case "up", "k":
			v.selected = (v.selected + len(Items) - 1) % len(Items)
		case "down", "j", "tab":
			v.selected = (v.selected + 1) % len(Items)
		case "enter":
			return v, activate(Items[v.selected])
		default:
			for i, item := range Items {
				if item.Key == k {
					v.selected = i
					return v, activate(item)
				}
			}
		}
	}
	return v, nil
}

func activate(item Item) tea.Cmd {
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg { return messages.ViewChanged{View: item.View} }
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	subtitle := "Ask questions about your documents"
	if v.scope != "" {
		subtitle += " · project " + v.scope
	}

	lines := []string{v.styles.Title.Render("docqa"), "", v.styles.Muted.Render(subtitle), ""}
	for i, item := range Items {
		label := fmt.Sprintf("[%s] %s", item.Key, item.Label)
		if i != v.selected {
			lines = append(lines, "  "+v.styles.Normal.Render(label))
			continue
		}
		line := "> " + v.styles.Subtitle.Render(label)
		if item.Hint != "" && v.width >= 60 {
			line += "  " + v.styles.Muted.Render(item.Hint)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", v.styles.Help.Render("[↑/↓] move  [enter] select  [a/d/?/q] shortcut"))
	return strings.Join(lines, "\n")
}

// SetDimensions sets the view size.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Selected returns the cursor position.
func (v *View) Selected() int {
	return v.selected
}
