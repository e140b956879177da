package domain

import (
	"fmt"
	"time"
)

// DocumentStatus tracks where a document sits in the indexing lifecycle.
type DocumentStatus string

const (
	// StatusUnprocessed marks a document that has been discovered but
	// never successfully indexed.
	StatusUnprocessed DocumentStatus = "unprocessed"

	// StatusProcessed marks a document whose chunks and content hash
	// are fully committed.
	StatusProcessed DocumentStatus = "processed"

	// StatusStale marks a document whose stored chunks no longer match
	// its source content (edit detected, or a replacement failed midway).
	StatusStale DocumentStatus = "stale"
)

// Document represents an indexed document with metadata.
// It is the canonical representation after normalisation.
type Document struct {
	// ID is the slash-separated path relative to the source root.
	// It is stable across runs and never reassigned.
	ID string

	// Title is the human-readable title.
	Title string

	// Content is the full text content after normalisation.
	// This is the complete document text before chunking.
	Content string

	// ContentHash is the hex SHA-256 of the raw source bytes.
	// Incremental indexing compares this against the stored value.
	ContentHash string

	// ModTime is the source file's last-modified timestamp.
	ModTime time.Time

	// Status is the document's indexing lifecycle state.
	Status DocumentStatus

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first discovered.
	CreatedAt time.Time

	// IndexedAt is when the document's chunks were last committed.
	IndexedAt time.Time
}

// Chunk represents the unit of embedding and retrieval.
// Documents are split into chunks for granular search results.
type Chunk struct {
	// ID is the deterministic chunk identifier, see ChunkID.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	// Positions are contiguous from 0 in document order.
	Position int

	// StartOffset and EndOffset are byte offsets into the parent's
	// normalised content such that Content == parent[StartOffset:EndOffset].
	StartOffset int
	EndOffset   int

	// Embedding is the vector representation for semantic search.
	Embedding []float32

	// ModelID identifies the embedding model that produced the vector.
	ModelID string
}

// ChunkID builds the deterministic identifier for a chunk.
// The format keeps upserts idempotent: re-indexing a document
// produces the same IDs for the same positions.
func ChunkID(documentID string, position int) string {
	return fmt.Sprintf("%s#%d", documentID, position)
}

// CorpusStats summarises the indexed corpus.
type CorpusStats struct {
	// Documents is the number of document records.
	Documents int

	// Chunks is the number of stored chunks.
	Chunks int
}
