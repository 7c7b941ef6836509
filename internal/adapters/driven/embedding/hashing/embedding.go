// Package hashing provides an offline embedding model based on feature
// hashing. Words and character trigrams are hashed into a fixed number of
// signed buckets, so texts sharing vocabulary get similar vectors without
// a model download or network access.
package hashing

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "bge-small-en-v1.5"
	DefaultDimensions = 384

	wordWeight    = 1.0
	trigramWeight = 0.5
)

var tokenPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)

// Config holds configuration for the hashing embedding service.
type Config struct {
	// Model is the name reported for stored embeddings.
	Model string

	// Dimensions is the number of hash buckets.
	Dimensions int
}

// EmbeddingService hashes text features into a fixed-size vector.
// It is stateless and safe for concurrent use.
type EmbeddingService struct {
	model      string
	dimensions int
}

// NewEmbeddingService creates a new hashing embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{model: cfg.Model, dimensions: cfg.Dimensions}
}

// Embed generates a vector for text. Text without letters or digits maps
// to the zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, s.dimensions)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		s.add(vec, "w:"+tok, wordWeight)

		runes := []rune("^" + tok + "$")
		for i := 0; i+3 <= len(runes); i++ {
			s.add(vec, "c:"+string(runes[i:i+3]), trigramWeight)
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// add hashes feature into a bucket; the top hash bit picks the sign so
// collisions tend to cancel rather than accumulate.
func (s *EmbeddingService) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(s.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the configured model name.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
