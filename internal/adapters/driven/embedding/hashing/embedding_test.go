package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

func TestEmbed_DimensionAndDeterminism(t *testing.T) {
	s := NewEmbeddingService(Config{Dimensions: 64})

	a, err := s.Embed(context.Background(), "The quick brown fox")
	require.NoError(t, err)
	b, err := s.Embed(context.Background(), "the QUICK brown fox!")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "case and punctuation must not change the vector")
}

func TestEmbed_SimilarTextsScoreHigher(t *testing.T) {
	s := NewEmbeddingService(Config{})
	ctx := context.Background()

	query, _ := s.Embed(ctx, "how do cats sleep")
	related, _ := s.Embed(ctx, "cats sleep for most of the day")
	unrelated, _ := s.Embed(ctx, "quarterly revenue grew in europe")

	assert.Greater(t, cosine(query, related), cosine(query, unrelated))
}

func TestEmbed_EmptyText(t *testing.T) {
	vec, err := NewEmbeddingService(Config{Dimensions: 8}).Embed(context.Background(), "  ...  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vec)
}

func TestEmbed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEmbeddingService(Config{}).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	s := NewEmbeddingService(Config{Dimensions: 32})
	ctx := context.Background()

	batch, err := s.EmbedBatch(ctx, []string{"alpha", "beta", "alpha"})
	require.NoError(t, err)
	require.Len(t, batch, 3)

	alpha, _ := s.Embed(ctx, "alpha")
	beta, _ := s.Embed(ctx, "beta")
	assert.Equal(t, alpha, batch[0])
	assert.Equal(t, beta, batch[1])
	assert.Equal(t, alpha, batch[2])
}
