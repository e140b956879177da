package mcp

import (
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retriever answers semantic queries.
	Retriever driving.Retriever

	// Indexer runs corpus index runs.
	Indexer driving.Indexer

	// Documents manages indexed documents.
	Documents driving.DocumentService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	// Indexer and Documents are optional; their tools and resources
	// are only registered when present.
	return nil
}
