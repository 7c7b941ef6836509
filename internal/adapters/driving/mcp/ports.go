package mcp

import (
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Query answers questions and retrieves chunks. Required.
	Query driving.QueryService

	// Documents backs the document resources.
	Documents driving.DocumentService

	// Projects backs the project resources.
	Projects driving.ProjectService

	// Cache backs the cache_stats tool.
	Cache driving.CacheAdmin
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
