package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeyMap_Bindings(t *testing.T) {
	km := DefaultKeyMap()
	require.NotNil(t, km)

	tests := []struct {
		name string
		keys []string
		want string
	}{
		{"quit", km.Quit.Keys(), "q"},
		{"help", km.Help.Keys(), "?"},
		{"back", km.Back.Keys(), "esc"},
		{"ask", km.Ask.Keys(), "enter"},
		{"up", km.Up.Keys(), "k"},
		{"down", km.Down.Keys(), "j"},
		{"follow up", km.NewQuestion.Keys(), "n"},
		{"reset", km.Reset.Keys(), "r"},
		{"open", km.Open.Keys(), "o"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.keys, tt.want)
		})
	}
}

func TestKeyMap_HelpGroups(t *testing.T) {
	km := DefaultKeyMap()

	assert.Len(t, km.ShortHelp(), 2)
	assert.Len(t, km.AnswerHelp(), 5)
	assert.Len(t, km.FullHelp(), 3)
}

func TestMatches(t *testing.T) {
	km := DefaultKeyMap()

	assert.True(t, Matches("up", km.Up))
	assert.True(t, Matches("k", km.Up))
	assert.False(t, Matches("j", km.Up))
	assert.True(t, Matches("ctrl+c", km.Quit))
}
