package domain

// DefaultTopK bounds a query that does not specify a result limit.
const DefaultTopK = 5

// QueryOptions configures a retrieval query.
type QueryOptions struct {
	// TopK is the maximum number of results. Zero means DefaultTopK.
	// A value larger than the corpus returns everything available.
	TopK int

	// Threshold drops results whose similarity falls below it.
	// Nil disables threshold filtering.
	Threshold *float64

	// WithContext attaches the text of adjacent chunks to each result.
	WithContext bool

	// ContextSize is how many chunks on each side to include when
	// WithContext is set. Zero means 1.
	ContextSize int

	// FullDocument replaces each result's context with the parent
	// document's entire normalised content.
	FullDocument bool
}

// RetrievalResult represents a single scored hit.
type RetrievalResult struct {
	// Chunk is the matched chunk, embedding omitted.
	Chunk Chunk

	// Document is the matched chunk's parent. Content is populated
	// only when the query asked for full documents.
	Document Document

	// Score is the cosine similarity in [-1, 1].
	Score float64

	// Context is the chunk text widened by its neighbours, when
	// requested. Empty otherwise.
	Context string
}
