package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_Getters(t *testing.T) {
	s := NewConfigStore()
	require.NoError(t, s.Set("s", "v"))
	require.NoError(t, s.Set("i", int64(7)))
	require.NoError(t, s.Set("f", 0.25))
	require.NoError(t, s.Set("b", true))
	require.NoError(t, s.Set("d", "90s"))
	require.NoError(t, s.Set("secs", 5))

	assert.Equal(t, "v", s.GetString("s"))
	assert.Equal(t, 7, s.GetInt("i"))
	assert.InDelta(t, 0.25, s.GetFloat("f"), 1e-9)
	assert.InDelta(t, 7.0, s.GetFloat("i"), 1e-9)
	assert.True(t, s.GetBool("b"))

	d, ok := s.GetDuration("d")
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, d)

	d, ok = s.GetDuration("secs")
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)

	_, ok = s.GetDuration("missing")
	assert.False(t, ok)
	assert.Equal(t, "", s.GetString("i"))
	assert.Equal(t, "", s.Path())
}
