package status

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestNewBar(t *testing.T) {
	bar := NewBar(styles.DefaultStyles(), keymap.DefaultKeyMap())

	require.NotNil(t, bar)
	assert.Equal(t, StateReady, bar.State())
	assert.Empty(t, bar.Message())
	assert.Equal(t, 80, bar.Width())
	assert.Nil(t, bar.Init())
}

func TestNewBar_NilDependencies(t *testing.T) {
	bar := NewBar(nil, nil)

	assert.NotNil(t, bar.styles)
	assert.NotNil(t, bar.keymap)

	updated, cmd := bar.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, bar, updated)
	assert.Nil(t, cmd)
}

func TestBar_States(t *testing.T) {
	tests := []struct {
		state   State
		message string
		want    string
	}{
		{StateReady, "", "Ready"},
		{StateThinking, "", "Thinking..."},
		{StateError, "timeout", "Error: timeout"},
		{StateError, "", "Error"},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			bar := NewBar(nil, nil)
			bar.SetWidth(120)
			bar.SetState(tt.state)
			bar.SetMessage(tt.message)

			assert.Contains(t, bar.View(), tt.want)
		})
	}
}

func TestBar_SetAnswer(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetWidth(160)

	bar.SetAnswer(&domain.QueryResponse{
		ModelUsed:  "llama3",
		ChunksUsed: 3,
		Usage:      domain.Usage{TotalTokens: 120},
		Cached:     true,
	})

	assert.Equal(t, StateAnswered, bar.State())
	assert.Equal(t, "llama3 · 3 chunks · 120 tokens · cached", bar.Message())
	out := bar.View()
	assert.Contains(t, out, "follow up")
	assert.Contains(t, out, "new conversation")
}

func TestSummary_Nil(t *testing.T) {
	assert.Empty(t, Summary(nil))
}

func TestBar_Clear(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetState(StateError)
	bar.SetMessage("boom")

	bar.Clear()

	assert.Equal(t, StateReady, bar.State())
	assert.Empty(t, bar.Message())
}
