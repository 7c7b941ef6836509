// Package doccontent shows a document's extracted text or its chunks.
package doccontent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

var errNoDocumentService = errors.New("document service not available")

// chrome is the number of lines taken by the title, rule and footer.
const chrome = 6

// View is a scrollable pager over one document.
type View struct {
	styles *styles.Styles
	svc    driving.DocumentService

	document *domain.Document
	mode     messages.ContentMode
	back     messages.ViewType

	content string
	chunks  []domain.Chunk
	// chunkStarts holds the wrapped line each chunk header lands on.
	chunkStarts []int
	pager       viewport.Model
	width       int
	height      int
	loading     bool
	err         error
}

// NewView creates a content pager backed by svc.
func NewView(s *styles.Styles, svc driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, svc: svc, pager: viewport.New(0, 0)}
}

// SetDocument shows doc in the given mode and starts loading it. Esc
// returns to back.
func (v *View) SetDocument(doc *domain.Document, mode messages.ContentMode, back messages.ViewType) tea.Cmd {
	v.document = doc
	v.mode = mode
	v.back = back
	v.content = ""
	v.chunks = nil
	v.chunkStarts = nil
	v.err = nil
	v.loading = true
	v.pager.SetContent("")
	v.pager.GotoTop()
	return v.load(doc, mode)
}

// Init implements the view contract; loading starts in SetDocument.
func (v *View) Init() tea.Cmd {
	return nil
}

func (v *View) load(doc *domain.Document, mode messages.ContentMode) tea.Cmd {
	svc := v.svc
	return func() tea.Msg {
		if doc == nil || svc == nil {
			return messages.DocumentContentLoaded{Err: errNoDocumentService}
		}
		ctx := context.Background()
		if mode == messages.ContentChunks {
			chunks, err := svc.GetChunks(ctx, doc.ID)
			return messages.DocumentContentLoaded{DocumentID: doc.ID, Chunks: chunks, Err: err}
		}
		full, err := svc.Get(ctx, doc.ID)
		if err != nil {
			return messages.DocumentContentLoaded{DocumentID: doc.ID, Err: err}
		}
		return messages.DocumentContentLoaded{DocumentID: doc.ID, Content: full.Content}
	}
}

// Update handles loaded content, resizes and keys.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case messages.DocumentContentLoaded:
		if v.document != nil && msg.DocumentID != "" && msg.DocumentID != v.document.ID {
			return v, nil // stale load for a document we already left
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.content = msg.Content
			if v.mode == messages.ContentChunks {
				v.chunks = msg.Chunks
				v.content = renderChunks(msg.Chunks)
			}
			v.layout()
		}

	case messages.ErrorOccurred:
		v.err = msg.Err

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		back := v.back
		return v, func() tea.Msg { return messages.ViewChanged{View: back} }
	case "tab":
		if v.document == nil {
			return v, nil
		}
		next := messages.ContentChunks
		if v.mode == messages.ContentChunks {
			next = messages.ContentText
		}
		return v, v.SetDocument(v.document, next, v.back)
	case "g", "home":
		v.pager.GotoTop()
	case "G", "end":
		v.pager.GotoBottom()
	case "n":
		v.jumpChunk(1)
	case "p":
		v.jumpChunk(-1)
	default:
		var cmd tea.Cmd
		v.pager, cmd = v.pager.Update(msg)
		return v, cmd
	}
	return v, nil
}

// jumpChunk scrolls to the next or previous chunk header.
func (v *View) jumpChunk(dir int) {
	at := v.pager.YOffset
	if dir > 0 {
		for _, line := range v.chunkStarts {
			if line > at {
				v.pager.SetYOffset(line)
				return
			}
		}
		return
	}
	for i := len(v.chunkStarts) - 1; i >= 0; i-- {
		if v.chunkStarts[i] < at {
			v.pager.SetYOffset(v.chunkStarts[i])
			return
		}
	}
}

// layout wraps the content to the pager width. In chunk mode each block is
// wrapped separately so its header offset is known.
func (v *View) layout() {
	width := max(v.width-4, 20)
	v.chunkStarts = v.chunkStarts[:0]
	if v.mode != messages.ContentChunks {
		v.pager.SetContent(strings.Join(wrap(v.content, width), "\n"))
		return
	}

	var lines []string
	for i := range v.chunks {
		if i > 0 {
			lines = append(lines, "")
		}
		v.chunkStarts = append(v.chunkStarts, len(lines))
		lines = append(lines, wrap(chunkBlock(&v.chunks[i]), width)...)
	}
	v.pager.SetContent(strings.Join(lines, "\n"))
}

// wrap breaks lines longer than width runes, preferring the last space.
func wrap(text string, width int) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		r := []rune(line)
		for len(r) > width {
			cut := width
			for i := width; i > width/2; i-- {
				if r[i] == ' ' {
					cut = i
					break
				}
			}
			out = append(out, strings.TrimRight(string(r[:cut]), " "))
			r = []rune(strings.TrimLeft(string(r[cut:]), " "))
		}
		out = append(out, string(r))
	}
	return out
}

// renderChunks prints one block per chunk headed by its index, character
// span and location.
func renderChunks(chunks []domain.Chunk) string {
	blocks := make([]string, 0, len(chunks))
	for i := range chunks {
		blocks = append(blocks, chunkBlock(&chunks[i]))
	}
	return strings.Join(blocks, "\n\n")
}

func chunkBlock(c *domain.Chunk) string {
	head := fmt.Sprintf("#%d  [%d-%d]", c.Index, c.StartChar, c.EndChar)
	if loc := location(c); loc != "" {
		head += "  " + loc
	}
	return head + "\n" + c.Text
}

func location(c *domain.Chunk) string {
	switch {
	case c.PageNum != nil:
		return fmt.Sprintf("page %d", *c.PageNum)
	case c.TimestampStart != nil:
		s := int(*c.TimestampStart)
		return fmt.Sprintf("%d:%02d", s/60, s%60)
	default:
		return c.Section
	}
}

// View renders the pager.
func (v *View) View() string {
	title := "Document"
	if d := v.document; d != nil {
		title = d.Title
		if title == "" {
			title = d.ID
		}
		if v.mode == messages.ContentChunks {
			title += " · chunks"
		}
	}

	var body string
	switch {
	case v.loading:
		body = v.styles.Muted.Render("Loading content...")
	case v.err != nil:
		body = v.styles.Error.Render("Error: " + v.err.Error())
	case v.content == "":
		body = v.styles.Muted.Render("(No content)")
	default:
		body = v.pager.View()
		if v.pager.TotalLineCount() > v.pager.Height {
			last := min(v.pager.YOffset+v.pager.Height, v.pager.TotalLineCount())
			body += "\n" + v.styles.Muted.Render(fmt.Sprintf("  [%3.f%%] lines %d-%d of %d",
				v.pager.ScrollPercent()*100, v.pager.YOffset+1, last, v.pager.TotalLineCount()))
		}
	}

	help := "[↑/↓/PgUp/PgDn] scroll  [g/G] top/bottom  [tab] text/chunks  [esc] back"
	if v.mode == messages.ContentChunks {
		help = "[↑/↓/PgUp/PgDn] scroll  [n/p] next/prev chunk  [tab] text/chunks  [esc] back"
	}

	rule := strings.Repeat("─", max(min(v.width-4, 60), 0))
	return v.styles.Title.Render(title) + "\n" + rule + "\n\n" + body + "\n\n" + v.styles.Help.Render(help)
}

// SetDimensions resizes the pager and rewraps the content.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.pager.Width = max(width-4, 20)
	v.pager.Height = max(height-chrome, 1)
	if v.content != "" {
		v.layout()
	}
}

// Document returns the document being shown.
func (v *View) Document() *domain.Document {
	return v.document
}

// Mode reports whether text or chunks are shown.
func (v *View) Mode() messages.ContentMode {
	return v.mode
}

// Content returns the unwrapped text being shown.
func (v *View) Content() string {
	return v.content
}

// Offset returns the first visible wrapped line.
func (v *View) Offset() int {
	return v.pager.YOffset
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}
