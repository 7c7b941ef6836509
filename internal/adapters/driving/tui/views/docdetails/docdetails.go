// Package docdetails shows a document's metadata and ingestion state.
package docdetails

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

const (
	timeLayout    = "2006-01-02 15:04:05"
	labelWidth    = 10
	maxHeadingLen = 50
)

// row is one rendered line. An empty label marks a section heading, a nil
// row a blank line.
type row struct {
	label, value string
	nested       bool
}

// View is the document details panel.
type View struct {
	styles *styles.Styles

	document *domain.Document
	rows     []*row
	offset   int
	width    int
	height   int
	err      error
}

// NewView creates a details panel.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s}
}

// SetDocument shows doc, scrolled to the top.
func (v *View) SetDocument(doc *domain.Document) {
	v.document = doc
	v.rows = describe(doc)
	v.offset = 0
	v.err = nil
}

// SetError shows err in place of the details.
func (v *View) SetError(err error) {
	v.err = err
}

// Init implements the view contract.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles keys and errors.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case messages.ErrorOccurred:
		v.err = msg.Err
	case tea.KeyMsg:
		return v, v.handleKey(msg.String())
	}
	return v, nil
}

func (v *View) handleKey(k string) tea.Cmd {
	switch k {
	case "up", "k":
		v.offset = max(v.offset-1, 0)
	case "down", "j":
		v.offset = min(v.offset+1, v.maxOffset())
	case "esc":
		return func() tea.Msg { return messages.ViewChanged{View: messages.ViewDocuments} }
	case "enter", "t":
		if v.document == nil {
			return nil
		}
		selected := messages.DocumentSelected{Document: *v.document, Mode: messages.ContentChunks}
		if k == "t" {
			selected.Mode = messages.ContentText
		}
		return func() tea.Msg { return selected }
	}
	return nil
}

func (v *View) visible() int {
	return max(v.height-6, 1)
}

func (v *View) maxOffset() int {
	return max(len(v.rows)-v.visible(), 0)
}

// describe lists the fields worth showing for doc. Source metadata only
// appears for the fields its source type fills in.
func describe(doc *domain.Document) []*row {
	if doc == nil {
		return nil
	}
	field := func(label, value string) *row { return &row{label: label, value: value} }
	nested := func(label, value string) *row { return &row{label: label, value: value, nested: true} }

	rows := []*row{
		field("ID", doc.ID),
		field("Title", doc.Title),
		field("Type", doc.SourceType.String()),
		field("Status", string(doc.Status)),
	}
	if doc.Error != "" {
		rows = append(rows, field("Error", doc.Error))
	}
	if doc.URI != "" {
		rows = append(rows, field("URI", doc.URI))
	}
	rows = append(rows, field("Length", fmt.Sprintf("%d chars", len([]rune(doc.Content)))))
	for _, ts := range []struct {
		label string
		at    time.Time
	}{{"Created", doc.CreatedAt}, {"Updated", doc.UpdatedAt}} {
		if !ts.at.IsZero() {
			rows = append(rows, field(ts.label, ts.at.Format(timeLayout)))
		}
	}

	var source []*row
	src := &doc.Source
	if src.Title != "" && src.Title != doc.Title {
		source = append(source, nested("title", src.Title))
	}
	if n := len(src.Pages); n > 0 {
		source = append(source, nested("pages", fmt.Sprint(n)))
	}
	if n := len(src.Segments); n > 0 {
		source = append(source, nested("segments", fmt.Sprint(n)))
	}
	if src.Duration != nil {
		source = append(source, nested("duration", clock(*src.Duration)))
	}
	for _, h := range src.Headings {
		if r := []rune(h); len(r) > maxHeadingLen {
			h = string(r[:maxHeadingLen-3]) + "..."
		}
		source = append(source, nested("heading", h))
	}
	if len(source) > 0 {
		rows = append(rows, nil, &row{value: "Source"})
		rows = append(rows, source...)
	}
	return rows
}

// clock formats seconds as m:ss, or h:mm:ss past an hour.
func clock(seconds float64) string {
	s := int(seconds + 0.5)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func (v *View) renderRow(r *row) string {
	switch {
	case r == nil:
		return ""
	case r.label == "":
		return v.styles.Subtitle.Render(r.value + ":")
	case r.nested:
		return v.styles.Muted.Render(fmt.Sprintf("  %s:", r.label)) + " " + v.styles.Normal.Render(r.value)
	default:
		return v.styles.Subtitle.Render(fmt.Sprintf("%-*s", labelWidth, r.label+":")) + " " + v.styles.Normal.Render(r.value)
	}
}

// View renders the panel.
func (v *View) View() string {
	var body string
	switch {
	case v.err != nil:
		body = v.styles.Error.Render("Error: " + v.err.Error())
	case v.document == nil:
		body = v.styles.Muted.Render("No document details available")
	default:
		end := min(v.offset+v.visible(), len(v.rows))
		lines := make([]string, 0, end-v.offset+2)
		for _, r := range v.rows[v.offset:end] {
			lines = append(lines, v.renderRow(r))
		}
		if len(v.rows) > v.visible() {
			lines = append(lines, "", v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", v.offset+1, end, len(v.rows))))
		}
		body = strings.Join(lines, "\n")
	}

	rule := strings.Repeat("─", max(min(v.width-4, 60), 0))
	help := v.styles.Help.Render("[↑/↓] scroll  [enter] chunks  [t] text  [esc] back")
	return v.styles.Title.Render("Document Details") + "\n" + rule + "\n\n" + body + "\n\n" + help
}

// SetDimensions sets the panel size.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.offset = min(v.offset, v.maxOffset())
}

// Document returns the document shown.
func (v *View) Document() *domain.Document {
	return v.document
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
