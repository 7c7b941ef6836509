// Package chunker provides a sentence-aligned text chunking processor.
package chunker

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultChunkSize is the default soft limit on characters per chunk.
const DefaultChunkSize = 512

// DefaultChunkOverlap is the default overlap budget in characters.
const DefaultChunkOverlap = 50

// DefaultMaxChunks is the default cap on chunks per document.
const DefaultMaxChunks = 1000

// Processor packs sentences into chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
	maxChunks int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap budget in characters.
// Zero disables overlap.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithMaxChunks caps the number of chunks produced for one document.
func WithMaxChunks(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxChunks = n
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		maxChunks: DefaultMaxChunks,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	sentences := SplitSentences(doc.Content)
	if len(sentences) == 0 {
		return nil, nil
	}

	groups := p.pack(sentences)
	if len(groups) > p.maxChunks {
		logger.Warn("document %s produced %d chunks, keeping first %d", doc.ID, len(groups), p.maxChunks)
		groups = groups[:p.maxChunks]
	}

	chunks := make([]domain.Chunk, 0, len(groups))
	for i, group := range groups {
		chunks = append(chunks, newChunk(doc.ID, i, group))
	}
	setTotal(chunks)
	return chunks, nil
}

// pack greedily groups sentences. A group closes when the next sentence
// would push it past chunkSize. When overlap is enabled and the closed group
// had more than one sentence, its last sentence seeds the next group if it
// fits inside the overlap budget. A single oversized sentence forms its own group.
func (p *Processor) pack(sentences []Sentence) [][]Sentence {
	var groups [][]Sentence
	var current []Sentence
	currentLen := 0

	for _, s := range sentences {
		if currentLen+s.Len() > p.chunkSize && len(current) > 0 {
			groups = append(groups, current)

			last := current[len(current)-1]
			if p.overlap > 0 && len(current) > 1 && last.Len() <= p.overlap {
				current = []Sentence{last}
				currentLen = last.Len() + 1
			} else {
				current = nil
				currentLen = 0
			}
		}

		current = append(current, s)
		currentLen += s.Len() + 1 // joining space
	}

	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func newChunk(docID string, index int, group []Sentence) domain.Chunk {
	parts := make([]string, len(group))
	for i, s := range group {
		parts[i] = s.Text
	}

	return domain.Chunk{
		ID:         uuid.New().String(),
		DocumentID: docID,
		Index:      index,
		StartChar:  group[0].Start,
		EndChar:    group[len(group)-1].End,
		Text:       strings.Join(parts, " "),
		Extra:      map[string]string{},
	}
}

// setTotal records the chunk count on every chunk.
func setTotal(chunks []domain.Chunk) {
	total := strconv.Itoa(len(chunks))
	for i := range chunks {
		if chunks[i].Extra == nil {
			chunks[i].Extra = map[string]string{}
		}
		chunks[i].Extra["total_chunks"] = total
	}
}
