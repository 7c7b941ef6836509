package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	answerStyle = lipgloss.NewStyle().PaddingLeft(2)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// styler renders with lipgloss only when writing to a terminal.
type styler struct {
	enabled bool
}

func newStyler(w io.Writer) styler {
	f, ok := w.(*os.File)
	return styler{enabled: ok && term.IsTerminal(int(f.Fd()))}
}

func (s styler) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

func (s styler) title(text string) string  { return s.render(titleStyle, text) }
func (s styler) label(text string) string  { return s.render(labelStyle, text) }
func (s styler) answer(text string) string { return s.render(answerStyle, text) }

func (s styler) status(text string, healthy, degraded bool) string {
	switch {
	case degraded:
		return s.render(warnStyle, text)
	case healthy:
		return s.render(okStyle, text)
	default:
		return s.render(errStyle, text)
	}
}
