// Package documents lists ingested documents with their ingestion status.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

var errNoDocumentService = errors.New("document service not available")

// RefreshInterval is how often the list reloads while any document is
// still queued or processing.
var RefreshInterval = 2 * time.Second

// Filter narrows the list by ingestion status.
type Filter int

const (
	FilterAll Filter = iota
	FilterReady
	FilterPending
	FilterFailed
	filterCount
)

func (f Filter) String() string {
	switch f {
	case FilterReady:
		return "ready"
	case FilterPending:
		return "pending"
	case FilterFailed:
		return "failed"
	default:
		return "all"
	}
}

func (f Filter) keep(d *domain.Document) bool {
	switch f {
	case FilterReady:
		return d.Status == domain.DocumentStatusReady
	case FilterPending:
		return !d.Status.IsTerminal()
	case FilterFailed:
		return d.Status == domain.DocumentStatusError
	default:
		return true
	}
}

// View is the document list.
type View struct {
	styles *styles.Styles
	svc    driving.DocumentService

	all     []domain.Document
	shown   []int // indexes into all that pass the filter
	filter  Filter
	cursor  int
	offset  int
	width   int
	height  int
	loading bool
	polling bool
	err     error
}

// NewView creates a document list backed by svc.
func NewView(s *styles.Styles, svc driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, svc: svc}
}

// Init resets the cursor and loads the list.
func (v *View) Init() tea.Cmd {
	v.cursor, v.offset = 0, 0
	v.err = nil
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	svc := v.svc
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentsLoaded{Err: errNoDocumentService}
		}
		docs, err := svc.List(context.Background())
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

// Update handles key presses, loaded documents and refresh ticks.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case messages.DocumentsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.setDocuments(msg.Documents)
		}
		return v, v.schedulePoll()

	case messages.DocumentsRefresh:
		v.polling = false
		return v, v.load()

	case messages.ErrorOccurred:
		v.err = msg.Err

	case tea.KeyMsg:
		return v, v.handleKey(msg.String())
	}
	return v, nil
}

// schedulePoll arms one refresh tick while documents are still being
// ingested. At most one tick is outstanding.
func (v *View) schedulePoll() tea.Cmd {
	if v.polling || v.Pending() == 0 {
		return nil
	}
	v.polling = true
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg {
		return messages.DocumentsRefresh{}
	})
}

func (v *View) handleKey(k string) tea.Cmd {
	switch k {
	case "up", "k":
		v.move(-1)
	case "down", "j":
		v.move(1)
	case "f":
		v.filter = (v.filter + 1) % filterCount
		v.applyFilter()
	case "r":
		v.loading = true
		return v.load()
	case "esc":
		return func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case "enter", "c", "d":
		doc := v.SelectedDocument()
		if doc == nil {
			return nil
		}
		selected := *doc
		switch k {
		case "c":
			return func() tea.Msg { return messages.DocumentSelected{Document: selected, Mode: messages.ContentChunks} }
		case "d":
			return func() tea.Msg { return messages.DocumentDetailsRequested{Document: selected} }
		default:
			return func() tea.Msg { return messages.DocumentSelected{Document: selected, Mode: messages.ContentText} }
		}
	}
	return nil
}

func (v *View) setDocuments(docs []domain.Document) {
	var keepID string
	if d := v.SelectedDocument(); d != nil {
		keepID = d.ID
	}
	v.all = docs
	v.applyFilter()
	for i, idx := range v.shown {
		if v.all[idx].ID == keepID {
			v.cursor = i
			v.scrollToCursor()
			break
		}
	}
}

func (v *View) applyFilter() {
	v.shown = v.shown[:0]
	for i := range v.all {
		if v.filter.keep(&v.all[i]) {
			v.shown = append(v.shown, i)
		}
	}
	v.cursor = min(v.cursor, max(len(v.shown)-1, 0))
	v.scrollToCursor()
}

func (v *View) move(delta int) {
	next := v.cursor + delta
	if next < 0 || next >= len(v.shown) {
		return
	}
	v.cursor = next
	v.scrollToCursor()
}

func (v *View) scrollToCursor() {
	rows := v.rows()
	switch {
	case v.cursor < v.offset:
		v.offset = v.cursor
	case v.cursor >= v.offset+rows:
		v.offset = v.cursor - rows + 1
	}
}

// rows is the number of list lines that fit under the header and help.
func (v *View) rows() int {
	return max(v.height-8, 1)
}

// View renders the list.
func (v *View) View() string {
	header := fmt.Sprintf("Documents (%d)", len(v.all))
	if v.filter != FilterAll {
		header = fmt.Sprintf("Documents (%d of %d, %s)", len(v.shown), len(v.all), v.filter)
	}
	if n := v.Pending(); n > 0 {
		header += fmt.Sprintf("  %d ingesting", n)
	}

	var body string
	switch {
	case v.loading && len(v.all) == 0:
		body = v.styles.Muted.Render("Loading documents...")
	case v.err != nil:
		body = v.styles.Error.Render("Error: " + v.err.Error())
	case len(v.all) == 0:
		body = v.styles.Muted.Render("No documents ingested yet. Use `docqa ingest` to add some.")
	case len(v.shown) == 0:
		body = v.styles.Muted.Render(fmt.Sprintf("No %s documents.", v.filter))
	default:
		body = v.renderRows()
	}

	help := v.styles.Help.Render("[↑/↓] move  [enter] text  [c] chunks  [d] details  [f] filter  [r] reload  [esc] back")
	return v.styles.Title.Render(header) + "\n\n" + body + "\n\n" + help
}

func (v *View) renderRows() string {
	titleWidth := max(v.width/2-4, 10)
	uriWidth := max(v.width/2-16, 10)
	end := min(v.offset+v.rows(), len(v.shown))

	lines := make([]string, 0, end-v.offset+2)
	for i := v.offset; i < end; i++ {
		doc := &v.all[v.shown[i]]
		title := clip(displayTitle(doc), titleWidth)
		where := doc.URI
		if where == "" {
			where = doc.SourceType.String()
		}
		where = clipLeft(where, uriWidth)
		status := fmt.Sprintf("%-10s", doc.Status)

		if i == v.cursor {
			lines = append(lines, v.styles.Selected.Render(fmt.Sprintf("> %-*s  %s  %s", titleWidth, title, status, where)))
			continue
		}
		lines = append(lines, v.styles.Normal.Render(fmt.Sprintf("  %-*s  ", titleWidth, title))+
			v.styles.StatusStyle(string(doc.Status)).Render(status)+"  "+
			v.styles.Muted.Render(where))
	}
	if len(v.shown) > v.rows() {
		lines = append(lines, "", v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", v.offset+1, end, len(v.shown))))
	}
	return strings.Join(lines, "\n")
}

func displayTitle(doc *domain.Document) string {
	if doc.Title != "" {
		return doc.Title
	}
	return doc.ID
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func clipLeft(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "..." + string(r[len(r)-n+3:])
}

// SetDimensions sets the view size.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.scrollToCursor()
}

// Documents returns every loaded document, ignoring the filter.
func (v *View) Documents() []domain.Document {
	return v.all
}

// Filter returns the active status filter.
func (v *View) Filter() Filter {
	return v.filter
}

// Pending counts documents that are queued or processing.
func (v *View) Pending() int {
	n := 0
	for i := range v.all {
		if !v.all[i].Status.IsTerminal() {
			n++
		}
	}
	return n
}

// SelectedIndex returns the cursor position within the filtered list.
func (v *View) SelectedIndex() int {
	return v.cursor
}

// SelectedDocument returns the document under the cursor, or nil.
func (v *View) SelectedDocument() *domain.Document {
	if v.cursor >= len(v.shown) {
		return nil
	}
	return &v.all[v.shown[v.cursor]]
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}
