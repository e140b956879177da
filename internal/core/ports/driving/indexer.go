package driving

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// Indexer coordinates corpus indexing runs.
type Indexer interface {
	// Index runs the loader -> chunker -> embedder -> store pipeline
	// over the source root. Per-document failures are collected into
	// the report; only run-level failures (cancellation, an open
	// embedder circuit, a model mismatch) return an error.
	Index(ctx context.Context, opts domain.IndexOptions) (*domain.IndexReport, error)

	// Watch re-indexes individual documents as the source root changes.
	// Blocks until ctx is cancelled or the watcher fails.
	Watch(ctx context.Context, opts domain.IndexOptions) error

	// Status returns progress for the current or most recent run.
	Status(ctx context.Context) (*domain.IndexStatus, error)
}
