package metadata

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Pages distributes page numbers proportionally across chunks of a PDF.
type Pages struct{}

// NewPages creates a page-number processor.
func NewPages() *Pages {
	return &Pages{}
}

// Name returns the processor name.
func (p *Pages) Name() string {
	return "pages"
}

// Process assigns page numbers. With N chunks over P pages each page gets
// max(1, N/P) consecutive chunks and the remainder lands on the last page.
func (p *Pages) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if doc.SourceType != domain.SourceTypePDF || len(doc.Source.Pages) == 0 || len(chunks) == 0 {
		return chunks, nil
	}

	totalPages := len(doc.Source.Pages)
	perPage := max(1, len(chunks)/totalPages)

	for i := range chunks {
		idx := min(i/perPage+1, totalPages)
		page := doc.Source.Pages[idx-1].PageNum
		if page <= 0 {
			page = idx
		}
		chunks[i].PageNum = domain.IntPtr(page)
	}
	return chunks, nil
}
