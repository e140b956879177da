package driven

import (
	"context"
	"errors"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// Loader reads raw documents from a source root.
type Loader interface {
	// Root returns the source root the loader scans.
	Root() string

	// Validate checks the source root exists and is readable.
	// Returns nil if ready to load, error describing the problem otherwise.
	Validate(ctx context.Context) error

	// Load streams every document under the source root.
	// Returns channels for documents and errors. Per-file failures are
	// sent as *domain.LoadError and the scan continues; a clean scan
	// finishes with a LoadComplete sentinel on the error channel before
	// both channels close. Rescanning yields the same set absent
	// filesystem changes.
	Load(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Watch listens for filesystem changes under the source root.
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)

	// Close releases resources.
	Close() error
}

// LoadComplete is sent on the error channel when a scan completes.
// Its presence distinguishes a finished scan from an aborted one.
type LoadComplete struct {
	// Documents is the number of documents streamed.
	Documents int
}

// Error implements the error interface.
// This allows LoadComplete to be sent on the error channel.
func (*LoadComplete) Error() string {
	return "load complete"
}

// IsLoadComplete checks if an error is actually a successful completion.
// Returns the LoadComplete and true if it is, nil and false otherwise.
func IsLoadComplete(err error) (*LoadComplete, bool) {
	var lc *LoadComplete
	if errors.As(err, &lc) {
		return lc, true
	}
	return nil, false
}
