// Package tui provides an interactive terminal interface for asking
// questions and browsing the document library.
package tui

import (
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI calls into.
type Ports struct {
	// Query answers questions against the library.
	Query driving.QueryService

	// Documents lists and reads ingested documents.
	Documents driving.DocumentService

	// ProjectID scopes questions to one project. Empty means all documents.
	ProjectID string
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Documents == nil {
		return ErrMissingDocumentService
	}
	return nil
}
