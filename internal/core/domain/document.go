package domain

import "time"

// SourceType identifies how a document's text was produced.
// It selects the positional metadata attached to each chunk.
type SourceType string

// Supported source types.
const (
	// SourceTypeText is plain text with no positional metadata.
	SourceTypeText SourceType = "text"

	// SourceTypePDF is paginated text. Chunks receive page numbers.
	SourceTypePDF SourceType = "pdf"

	// SourceTypeURL is a structured web page. Chunks receive a section and heading path.
	SourceTypeURL SourceType = "url"

	// SourceTypeYouTube is a timestamped transcript. Chunks receive time ranges.
	SourceTypeYouTube SourceType = "youtube"
)

// IsValid returns true if the source type is recognised.
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeText, SourceTypePDF, SourceTypeURL, SourceTypeYouTube:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s SourceType) String() string {
	return string(s)
}

// DocumentStatus tracks a document through background ingestion.
type DocumentStatus string

// Ingestion states. A document moves queued -> processing -> ready | error.
const (
	DocumentStatusQueued     DocumentStatus = "queued"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusError      DocumentStatus = "error"
)

// IsTerminal returns true once ingestion has finished, successfully or not.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusReady || s == DocumentStatusError
}

// Page is the text of one page of a paginated source.
type Page struct {
	PageNum int    `json:"page_num"`
	Text    string `json:"text"`
}

// Segment is one timed span of a transcript, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SourceMetadata is the positional metadata supplied by a source adapter.
// Only the fields relevant to the document's SourceType are populated.
type SourceMetadata struct {
	// Title is the source's own title, if any.
	Title string `json:"title,omitempty"`

	// Pages holds per-page text for paginated sources.
	Pages []Page `json:"pages,omitempty"`

	// Segments holds timed transcript segments.
	Segments []Segment `json:"segments,omitempty"`

	// Headings lists the headings found in a structured source.
	Headings []string `json:"headings,omitempty"`

	// Duration is the total length of a timed source in seconds.
	Duration *float64 `json:"duration,omitempty"`
}

// Document is ingested text together with its source metadata.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Title is the human-readable title.
	Title string

	// Content is the full extracted text, before chunking.
	Content string

	// SourceType selects chunk metadata enrichment.
	SourceType SourceType

	// URI is the original location (file path, URL, etc).
	URI string

	// Source is the positional metadata from the source adapter.
	Source SourceMetadata

	// Status is the ingestion state.
	Status DocumentStatus

	// Error holds the failure message when Status is error.
	Error string

	// CreatedAt is when the document was first submitted.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// Chunk is a contiguous, sentence-aligned segment of a document.
// For a document with N chunks, indices are exactly 0..N-1.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the 0-based position within the document.
	Index int

	// StartChar and EndChar are character offsets into the document text.
	StartChar int
	EndChar   int

	// Text is the chunk content.
	Text string

	// PageNum is set for paginated sources.
	PageNum *int

	// HeadingPath is set for structured sources.
	HeadingPath string

	// Section names the structural section a chunk belongs to.
	Section string

	// TimestampStart and TimestampEnd are set for timed sources, in seconds.
	TimestampStart *float64
	TimestampEnd   *float64

	// Extra holds additional string metadata.
	Extra map[string]string

	// CreatedAt is when the chunk was stored.
	CreatedAt time.Time
}

// Len returns the chunk length in characters.
func (c *Chunk) Len() int {
	return len([]rune(c.Text))
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
