package chunker

import "unicode"

// abbreviations are titles whose trailing period never ends a sentence.
var abbreviations = map[string]bool{
	"Dr":   true,
	"Mr":   true,
	"Mrs":  true,
	"Ms":   true,
	"Prof": true,
	"Sr":   true,
	"Jr":   true,
}

// Sentence is a trimmed sentence with its rune offsets in the source text.
type Sentence struct {
	Text  string
	Start int
	End   int
}

// Len returns the sentence length in characters.
func (s Sentence) Len() int {
	return s.End - s.Start
}

// SplitSentences splits text at terminal punctuation followed by whitespace
// and an upper-case letter. Periods after common titles (Dr, Mr, Mrs, Ms,
// Prof, Sr, Jr) are not boundaries. Empty sentences are dropped.
func SplitSentences(text string) []Sentence {
	runes := []rune(text)
	n := len(runes)

	var sentences []Sentence
	start := 0
	for i := 0; i < n; i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		j := i + 1
		for j < n && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= n || !unicode.IsUpper(runes[j]) {
			continue
		}
		if r == '.' && isAbbreviation(runes, i) {
			continue
		}

		if s, ok := trimmed(runes, start, i+1); ok {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}

	if s, ok := trimmed(runes, start, n); ok {
		sentences = append(sentences, s)
	}
	return sentences
}

// isAbbreviation reports whether the word ending just before the period at
// index dot is a protected title.
func isAbbreviation(runes []rune, dot int) bool {
	k := dot
	for k > 0 && isWordRune(runes[k-1]) {
		k--
	}
	return abbreviations[string(runes[k:dot])]
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func trimmed(runes []rune, start, end int) (Sentence, bool) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start == end {
		return Sentence{}, false
	}
	return Sentence{Text: string(runes[start:end]), Start: start, End: end}, true
}
