// Package tui provides an interactive terminal user interface for quarry.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retriever answers semantic queries.
	Retriever driving.Retriever

	// Documents provides corpus statistics for the status bar.
	// Optional; the status bar omits totals when nil.
	Documents driving.DocumentService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(retriever driving.Retriever, documents driving.DocumentService) *Ports {
	return &Ports{
		Retriever: retriever,
		Documents: documents,
	}
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}
