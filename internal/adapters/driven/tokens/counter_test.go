package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"héllo wörld", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Estimate(tt.text), tt.text)
	}
}

func TestCounter_Count(t *testing.T) {
	c := NewCounter("")
	assert.Equal(t, DefaultEncoding, c.name)
	assert.Equal(t, 0, c.Count(""))

	n := c.Count("The quick brown fox jumps over the lazy dog.")
	assert.Greater(t, n, 0)
	assert.LessOrEqual(t, n, 44)
}

func TestCounter_UnknownEncodingEstimates(t *testing.T) {
	c := NewCounter("no-such-encoding")
	assert.Equal(t, Estimate("abcdefgh"), c.Count("abcdefgh"))
}
