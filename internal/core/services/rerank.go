package services

import (
	"cmp"
	"slices"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Length bands for the rerank length score, in characters.
const (
	shortChunkChars = 100
	longChunkChars  = 1000
)

// Rerank scores candidates by alpha*similarity + beta*keyword overlap +
// gamma*length score and returns the best topK, highest first. Weights
// are used as given. Equal scores keep their retrieval order.
func Rerank(query string, candidates []domain.RetrievalCandidate, topK int, w domain.RerankSettings) []domain.RankedChunk {
	ranked := make([]domain.RankedChunk, len(candidates))
	for i, c := range candidates {
		score := w.Alpha*c.Similarity +
			w.Beta*keywordOverlap(query, c.Chunk.Text) +
			w.Gamma*lengthScore(c.Chunk.Len())
		ranked[i] = domain.RankedChunk{RetrievalCandidate: c, Score: score}
	}

	slices.SortStableFunc(ranked, func(a, b domain.RankedChunk) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return truncate(ranked, topK)
}

// TopBySimilarity keeps the first topK candidates, already ordered by
// similarity, scoring each by its similarity.
func TopBySimilarity(candidates []domain.RetrievalCandidate, topK int) []domain.RankedChunk {
	ranked := make([]domain.RankedChunk, len(candidates))
	for i, c := range candidates {
		ranked[i] = domain.RankedChunk{RetrievalCandidate: c, Score: c.Similarity}
	}
	return truncate(ranked, topK)
}

func truncate(ranked []domain.RankedChunk, n int) []domain.RankedChunk {
	if n >= 0 && len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}

// keywordOverlap is |Q ∩ C| / |Q| over lower-cased whitespace tokens.
func keywordOverlap(query, text string) float64 {
	q := tokenSet(query)
	if len(q) == 0 {
		return 0
	}
	c := tokenSet(text)
	shared := 0
	for tok := range q {
		if _, ok := c[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(q))
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// lengthScore penalises very short chunks more than very long ones.
func lengthScore(chars int) float64 {
	switch {
	case chars < shortChunkChars:
		return 0.5
	case chars > longChunkChars:
		return 0.8
	default:
		return 1.0
	}
}
