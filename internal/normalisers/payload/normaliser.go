// Package payload normalises pre-extracted documents stored as JSON. This is
// how PDF page text and YouTube transcripts produced by external tools enter
// the ingestion pipeline with their positional metadata intact.
package payload

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// MIMEType is the media type of a document payload.
const MIMEType = "application/vnd.docqa.document+json"

// Payload is the JSON shape of a pre-extracted document.
type Payload struct {
	Title      string                `json:"title"`
	Content    string                `json:"content"`
	SourceType domain.SourceType     `json:"source_type"`
	URI        string                `json:"uri"`
	Source     domain.SourceMetadata `json:"source"`
}

// Normaliser decodes document payloads.
type Normaliser struct{}

// New creates a new payload normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType, "application/json"}
}

// Priority returns the selection priority. Payloads outrank the plain text
// fallback for application/json.
func (n *Normaliser) Priority() int {
	return 60
}

// Normalise decodes the payload. Content may be omitted when the source
// carries pages or segments; it is then rebuilt from them. JSON that is not
// a payload yields ErrUnsupportedType so a registry can fall back.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	var p Payload
	if err := json.Unmarshal(raw.Content, &p); err != nil {
		return nil, fmt.Errorf("%w: not a document payload: %v", domain.ErrUnsupportedType, err)
	}

	if p.SourceType == "" {
		p.SourceType = inferSourceType(p.Source)
	}
	if !p.SourceType.IsValid() {
		return nil, fmt.Errorf("%w: source type %q", domain.ErrUnsupportedType, p.SourceType)
	}

	content := p.Content
	if strings.TrimSpace(content) == "" {
		content = joinSource(p.Source)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: payload has no content", domain.ErrUnsupportedType)
	}

	title := p.Title
	if title == "" {
		title = p.Source.Title
	}
	title = raw.TitleOr(title)

	uri := p.URI
	if uri == "" {
		uri = raw.URI
	}

	return &driven.NormaliseResult{
		Document: domain.Document{
			Title:      title,
			Content:    content,
			SourceType: p.SourceType,
			URI:        uri,
			Source:     p.Source,
		},
	}, nil
}

func inferSourceType(src domain.SourceMetadata) domain.SourceType {
	switch {
	case len(src.Segments) > 0:
		return domain.SourceTypeYouTube
	case len(src.Pages) > 0:
		return domain.SourceTypePDF
	case len(src.Headings) > 0:
		return domain.SourceTypeURL
	default:
		return domain.SourceTypeText
	}
}

func joinSource(src domain.SourceMetadata) string {
	var parts []string
	for _, p := range src.Pages {
		parts = append(parts, strings.TrimSpace(p.Text))
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}
	for _, s := range src.Segments {
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, " ")
}
