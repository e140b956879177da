package driven

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// VectorIndex provides semantic similarity search operations.
// Backends enforce the corpus dimension: storing a vector whose length
// differs from the recorded index metadata fails with
// domain.ErrInvalidInput.
type VectorIndex interface {
	// UpsertChunk inserts or replaces a chunk and its vector.
	UpsertChunk(ctx context.Context, chunk domain.Chunk) error

	// DeleteChunks removes all chunks for a document.
	DeleteChunks(ctx context.Context, documentID string) error

	// Search finds the k nearest chunks to the query vector.
	// Results are ordered by similarity descending; exact ties are
	// broken by ascending (document ID, position). Only chunks whose
	// model ID matches params.ModelID are considered, and hits below
	// params.Threshold are dropped when a threshold is set.
	Search(ctx context.Context, query []float32, params SearchParams) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// SearchParams bounds a nearest-neighbour query.
type SearchParams struct {
	// K is the maximum number of hits to return.
	K int

	// ModelID restricts hits to vectors produced by this model.
	ModelID string

	// Threshold drops hits with similarity below it. Nil disables.
	Threshold *float64
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score in [-1, 1].
	Similarity float64
}
