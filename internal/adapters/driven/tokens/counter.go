// Package tokens estimates model token usage for prompts and answers.
package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Counter implements the interface.
var _ driven.TokenCounter = (*Counter)(nil)

// DefaultEncoding is the BPE used by current OpenAI chat models.
const DefaultEncoding = "cl100k_base"

// charsPerToken is the fallback ratio when no encoding is available.
const charsPerToken = 4

// Counter counts tokens with a tiktoken encoding. The encoding is loaded
// lazily on first use; when it cannot be loaded the counter estimates
// one token per four characters.
type Counter struct {
	name string

	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewCounter creates a counter for the named encoding.
func NewCounter(encoding string) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Counter{name: encoding}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(c.load)
	if c.encoding == nil {
		return Estimate(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

func (c *Counter) load() {
	enc, err := tiktoken.GetEncoding(c.name)
	if err != nil {
		logger.Debug("tokens: encoding %s unavailable, estimating: %v", c.name, err)
		return
	}
	c.encoding = enc
}

// Estimate approximates token count from character count, rounding up.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}
