package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.Retriever = (*Retriever)(nil)

// RetrieverConfig tunes a Retriever.
type RetrieverConfig struct {
	// QueryPrefix is prepended to query text before embedding
	// (e.g., "query: " for e5-style models). Never applied twice.
	QueryPrefix string
}

// Retriever answers semantic queries: it embeds the query text and
// ranks stored chunks by vector similarity.
type Retriever struct {
	docStore    driven.DocumentStore
	vectorIndex driven.VectorIndex
	embedder    driven.EmbeddingService
	cfg         RetrieverConfig
}

// NewRetriever creates a new retriever.
func NewRetriever(
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	embedder driven.EmbeddingService,
	cfg RetrieverConfig,
) *Retriever {
	return &Retriever{
		docStore:    docStore,
		vectorIndex: vectorIndex,
		embedder:    embedder,
		cfg:         cfg,
	}
}

// Query embeds the text and returns the top-k most similar chunks.
func (r *Retriever) Query(
	ctx context.Context, text string, opts domain.QueryOptions,
) ([]domain.RetrievalResult, error) {
	logger.Section("Query Execution")
	logger.Debug("Query: %q", text)

	// 1. Validate input
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: query text is empty", domain.ErrInvalidInput)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	logger.Debug("Top-k: %d", topK)

	// 2. Refuse model mismatches up front; partial results are worse
	// than an explicit error
	meta, err := r.docStore.GetMeta(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrIndexEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("get index meta: %w", err)
	}
	if meta.ModelID != r.embedder.ModelName() || meta.Dimensions != r.embedder.Dimensions() {
		return nil, fmt.Errorf("%w: corpus indexed with %s (%dd), configured %s (%dd)",
			domain.ErrConfigMismatch, meta.ModelID, meta.Dimensions,
			r.embedder.ModelName(), r.embedder.Dimensions())
	}

	// 3. Generate the query embedding
	prefixed := applyEmbedPrefix(r.cfg.QueryPrefix, text)
	prefixed = truncateForEmbedding(prefixed, r.embedder.MaxInputLength())

	embedding, err := r.embedder.Embed(ctx, prefixed)
	if err != nil {
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	// 4. Nearest-neighbour search restricted to the corpus model
	hits, err := r.vectorIndex.Search(ctx, embedding, driven.SearchParams{
		K:         topK,
		ModelID:   meta.ModelID,
		Threshold: opts.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))

	// 5. Hydrate hits into full results
	results, err := r.hydrateResults(ctx, hits, opts)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}

	logger.Info("Query returned %d results", len(results))
	return results, nil
}

// hydrateResults converts vector hits into RetrievalResults. Chunks or
// documents deleted since the search are skipped, preserving order.
func (r *Retriever) hydrateResults(
	ctx context.Context, hits []driven.VectorHit, opts domain.QueryOptions,
) ([]domain.RetrievalResult, error) {
	results := make([]domain.RetrievalResult, 0, len(hits))

	for _, hit := range hits {
		chunk, err := r.docStore.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", hit.ChunkID, err)
		}

		doc, err := r.docStore.GetDocument(ctx, chunk.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
		}

		result := domain.RetrievalResult{
			Chunk:    *chunk,
			Document: *doc,
			Score:    hit.Similarity,
		}
		// Vectors and full content stay out of results unless asked for.
		result.Chunk.Embedding = nil
		if !opts.FullDocument {
			result.Document.Content = ""
		}

		if opts.WithContext && !opts.FullDocument {
			result.Context = r.expandContext(ctx, doc, chunk, opts.ContextSize)
		}

		results = append(results, result)
	}

	return results, nil
}

// expandContext widens a chunk by its neighbours on each side. The
// window is sliced from the parent's content by offset, so overlapping
// chunks never duplicate text.
func (r *Retriever) expandContext(
	ctx context.Context, doc *domain.Document, chunk *domain.Chunk, size int,
) string {
	if size <= 0 {
		size = 1
	}

	neighbours, err := r.docStore.GetChunkRange(ctx, chunk.DocumentID, chunk.Position-size, chunk.Position+size)
	if err != nil || len(neighbours) == 0 {
		logger.Debug("Context expansion for %s failed: %v", chunk.ID, err)
		return chunk.Content
	}

	start := neighbours[0].StartOffset
	end := neighbours[len(neighbours)-1].EndOffset
	if start < 0 || end > len(doc.Content) || start >= end {
		// Offsets disagree with the stored content; fall back to the
		// chunk itself rather than slicing garbage.
		return chunk.Content
	}
	return doc.Content[start:end]
}
