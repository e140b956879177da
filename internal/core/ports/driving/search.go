package driving

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// Retriever answers semantic queries against the indexed corpus.
type Retriever interface {
	// Query embeds the text and returns the top-k most similar chunks,
	// ordered by score descending with ties broken by ascending
	// (document ID, position). A top-k larger than the corpus returns
	// everything available.
	Query(ctx context.Context, text string, opts domain.QueryOptions) ([]domain.RetrievalResult, error)
}
