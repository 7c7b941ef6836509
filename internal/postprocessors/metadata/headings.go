package metadata

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// SectionContent is the section tag given to body text of a web page.
const SectionContent = "content"

// Headings tags chunks of structured web pages.
type Headings struct{}

// NewHeadings creates a heading processor.
func NewHeadings() *Headings {
	return &Headings{}
}

// Name returns the processor name.
func (h *Headings) Name() string {
	return "headings"
}

// Process sets the section when the page has headings and uses the page
// title as heading path.
func (h *Headings) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if doc.SourceType != domain.SourceTypeURL {
		return chunks, nil
	}

	title := doc.Source.Title
	if title == "" {
		title = doc.Title
	}

	for i := range chunks {
		if len(doc.Source.Headings) > 0 {
			chunks[i].Section = SectionContent
		}
		if title != "" {
			chunks[i].HeadingPath = title
		}
	}
	return chunks, nil
}
