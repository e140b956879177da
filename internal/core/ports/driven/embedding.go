package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// The core treats it as a remote, untrusted dependency: calls may fail
// transiently and are wrapped in retry and circuit-breaker policy by
// the resilient decorator.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI-compatible HTTP endpoints (text-embedding-3-small, ...)
//   - A deterministic hash embedder for tests and offline runs
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// This is more efficient than calling Embed in a loop for large batches.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// Every vector the service produces has exactly this length.
	Dimensions() int

	// ModelName returns the identifier of the embedding model in use.
	// Stored alongside every vector to detect model-version mismatches.
	ModelName() string

	// MaxInputLength returns the longest input, in bytes, the model
	// accepts. Callers truncate chunk text to this length before
	// submission.
	MaxInputLength() int

	// Ping validates the service is reachable by making a lightweight test request.
	// This is used at startup to verify connectivity before indexing begins.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
