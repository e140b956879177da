package driving

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// DocumentService manages indexed documents.
type DocumentService interface {
	// List returns document records without content, ordered by ID.
	// Zero limit means no limit.
	List(ctx context.Context, limit, offset int) ([]domain.Document, error)

	// Get retrieves a document by ID, content included.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// Remove deletes a document record and all its chunks.
	// Removal is always explicit; index runs never delete documents.
	Remove(ctx context.Context, documentID string) error

	// Stats returns corpus totals.
	Stats(ctx context.Context) (*domain.CorpusStats, error)
}
