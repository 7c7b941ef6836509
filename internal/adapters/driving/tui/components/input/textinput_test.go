package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
)

func TestNewQuestionInput(t *testing.T) {
	q := NewQuestionInput(styles.DefaultStyles())

	require.NotNil(t, q)
	assert.True(t, q.Focused())
	assert.Empty(t, q.Value())
	assert.Equal(t, questionLimit, q.textinput.CharLimit)
	assert.NotNil(t, q.Init())
}

func TestQuestionInput_NilStyles(t *testing.T) {
	q := NewQuestionInput(nil)

	assert.NotNil(t, q.styles)
}

func TestQuestionInput_Typing(t *testing.T) {
	q := NewQuestionInput(nil)

	q.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("why?")})

	assert.Equal(t, "why?", q.Value())
}

func TestQuestionInput_FocusBlur(t *testing.T) {
	q := NewQuestionInput(nil)

	q.Blur()
	assert.False(t, q.Focused())

	q.Focus()
	assert.True(t, q.Focused())
}

func TestQuestionInput_SetWidth(t *testing.T) {
	q := NewQuestionInput(nil)

	q.SetWidth(100)
	assert.Equal(t, 100, q.Width())
	assert.Equal(t, 88, q.textinput.Width)

	q.SetWidth(10)
	assert.Equal(t, 20, q.textinput.Width)
}

func TestQuestionInput_ViewAndReset(t *testing.T) {
	q := NewQuestionInput(nil)
	q.SetValue("hello")

	assert.Contains(t, q.View(), "Ask:")

	q.Reset()
	assert.Empty(t, q.Value())
}
