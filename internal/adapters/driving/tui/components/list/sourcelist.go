// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

// SourceList displays the citations of an answer in a navigable list.
type SourceList struct {
	sources  []domain.Source
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewSourceList creates a new source list component.
func NewSourceList(s *styles.Styles) *SourceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SourceList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the list.
func (l *SourceList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *SourceList) Update(msg tea.Msg) (*SourceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the source list.
func (l *SourceList) View() string {
	if len(l.sources) == 0 {
		return l.styles.Muted.Render("No sources")
	}

	lines := make([]string, 0, len(l.sources)*2+2)
	lines = append(lines, l.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(l.sources))), "")

	// Each source takes two lines.
	visible := (l.height - 2) / 2
	if visible < 1 {
		visible = 1
	}

	start := 0
	if l.selected >= visible {
		start = l.selected - visible + 1
	}
	end := min(start+visible, len(l.sources))

	for i := start; i < end; i++ {
		lines = append(lines, l.renderSource(i, &l.sources[i]))
	}

	return strings.Join(lines, "\n")
}

func (l *SourceList) renderSource(index int, src *domain.Source) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	title := src.DocumentTitle
	if title == "" {
		title = src.DocumentID
	}
	if loc := Location(src); loc != "" {
		title += " (" + loc + ")"
	}
	title = truncate(title, max(l.width-20, 10))

	marker := fmt.Sprintf("[%d]", src.ID)
	score := fmt.Sprintf("%.2f", src.Score)

	var head string
	if index == l.selected {
		head = l.styles.Selected.Render(fmt.Sprintf("%s%s %s  %s", indicator, marker, title, score))
	} else {
		head = l.styles.Normal.Render(indicator) +
			l.styles.Citation.Render(marker) + " " +
			l.styles.Normal.Render(title) + "  " +
			l.styles.Muted.Render(score)
	}

	preview := strings.Join(strings.Fields(src.TextPreview), " ")
	preview = truncate(preview, max(l.width-6, 20))

	return head + "\n" + l.styles.Muted.Render("    "+preview)
}

// Location describes where in its document a source was found.
func Location(src *domain.Source) string {
	switch {
	case src.PageNum != nil:
		return fmt.Sprintf("p. %d", *src.PageNum)
	case src.Timestamp != nil:
		total := int(*src.Timestamp)
		return fmt.Sprintf("%d:%02d", total/60, total%60)
	case src.Section != "":
		return src.Section
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// SetSources replaces the listed sources.
func (l *SourceList) SetSources(sources []domain.Source) {
	l.sources = sources
	l.selected = 0
}

// Sources returns the current sources.
func (l *SourceList) Sources() []domain.Source {
	return l.sources
}

// Selected returns the index of the selected source.
func (l *SourceList) Selected() int {
	return l.selected
}

// SelectedSource returns the currently selected source, or nil if none.
func (l *SourceList) SelectedSource() *domain.Source {
	if l.selected < 0 || l.selected >= len(l.sources) {
		return nil
	}
	return &l.sources[l.selected]
}

// MoveUp moves selection up.
func (l *SourceList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *SourceList) MoveDown() {
	if l.selected < len(l.sources)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *SourceList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Count returns the number of sources.
func (l *SourceList) Count() int {
	return len(l.sources)
}
