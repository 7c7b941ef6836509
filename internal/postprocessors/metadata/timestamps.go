package metadata

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DefaultMaxGap is the default largest silence, in seconds, allowed
// between consecutive segments of one chunk.
const DefaultMaxGap = 30.0

// Timestamps attaches time ranges to transcript chunks.
type Timestamps struct {
	chunkSize int
	maxGap    float64
}

// TimestampsOption configures the timestamps processor.
type TimestampsOption func(*Timestamps)

// WithSegmentChunkSize sets the character budget used when grouping segments.
func WithSegmentChunkSize(size int) TimestampsOption {
	return func(t *Timestamps) {
		if size > 0 {
			t.chunkSize = size
		}
	}
}

// WithMaxGap sets the gap that forces a chunk break between segments.
func WithMaxGap(seconds float64) TimestampsOption {
	return func(t *Timestamps) {
		if seconds > 0 {
			t.maxGap = seconds
		}
	}
}

// NewTimestamps creates a timestamps processor.
func NewTimestamps(opts ...TimestampsOption) *Timestamps {
	t := &Timestamps{
		chunkSize: 512,
		maxGap:    DefaultMaxGap,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the processor name.
func (t *Timestamps) Name() string {
	return "timestamps"
}

// Process prefers grouping the transcript's timed segments into chunks,
// replacing the sentence chunks. Without segments it interpolates times
// linearly over the total duration.
func (t *Timestamps) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if doc.SourceType != domain.SourceTypeYouTube {
		return chunks, nil
	}

	if len(doc.Source.Segments) > 0 {
		if grouped := t.groupSegments(doc.ID, doc.Source.Segments); len(grouped) > 0 {
			return grouped, nil
		}
	}

	if doc.Source.Duration != nil && len(chunks) > 0 {
		step := *doc.Source.Duration / float64(len(chunks))
		for i := range chunks {
			chunks[i].TimestampStart = domain.Float64Ptr(float64(i) * step)
			chunks[i].TimestampEnd = domain.Float64Ptr(float64(i+1) * step)
		}
	}
	return chunks, nil
}

// placed is a segment with its character offset in the joined transcript.
type placed struct {
	seg   domain.Segment
	text  string
	start int
}

func (t *Timestamps) groupSegments(docID string, segments []domain.Segment) []domain.Chunk {
	var chunks []domain.Chunk
	var current []placed
	currentLen := 0
	cursor := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, segmentChunk(docID, len(chunks), current))
		current = nil
		currentLen = 0
	}

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		n := len([]rune(text))

		if len(current) > 0 {
			gap := seg.Start - current[len(current)-1].seg.End
			if currentLen+n > t.chunkSize || gap > t.maxGap {
				flush()
			}
		}

		current = append(current, placed{seg: seg, text: text, start: cursor})
		currentLen += n + 1
		cursor += n + 1
	}
	flush()

	total := strconv.Itoa(len(chunks))
	for i := range chunks {
		chunks[i].Extra["total_chunks"] = total
	}
	return chunks
}

func segmentChunk(docID string, index int, group []placed) domain.Chunk {
	parts := make([]string, len(group))
	for i, p := range group {
		parts[i] = p.text
	}
	first, last := group[0], group[len(group)-1]

	return domain.Chunk{
		ID:             uuid.New().String(),
		DocumentID:     docID,
		Index:          index,
		StartChar:      first.start,
		EndChar:        last.start + len([]rune(last.text)),
		Text:           strings.Join(parts, " "),
		TimestampStart: domain.Float64Ptr(first.seg.Start),
		TimestampEnd:   domain.Float64Ptr(last.seg.End),
		Extra:          map[string]string{},
	}
}
