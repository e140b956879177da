package driven

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// DocumentStore persists document records, their chunks and the
// corpus-wide index metadata.
type DocumentStore interface {
	// SaveDocument stores or updates a document record.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID, content included.
	// Returns domain.ErrNotFound if no record exists.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentHash returns the stored content hash for a document.
	// Returns domain.ErrNotFound if no record exists.
	GetDocumentHash(ctx context.Context, id string) (string, error)

	// SetDocumentHash records a document's content hash.
	SetDocumentHash(ctx context.Context, id, hash string) error

	// UpdateDocumentStatus moves a document through its lifecycle.
	UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error

	// ReplaceDocument atomically swaps a document's chunks and commits
	// its record (hash, status, indexed-at) in the same transaction.
	// Concurrent readers observe either the old chunk set or the new
	// one, never a mixture and never an empty in-between state.
	// An existing record keeps its original CreatedAt.
	ReplaceDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunks retrieves all chunks for a document ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunkRange retrieves a document's chunks with positions in
	// [from, to], ordered by position. Used for context expansion.
	GetChunkRange(ctx context.Context, documentID string, from, to int) ([]domain.Chunk, error)

	// DeleteDocument removes a document record and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns document records without content,
	// ordered by ID. Zero limit means no limit.
	ListDocuments(ctx context.Context, limit, offset int) ([]domain.Document, error)

	// Stats returns corpus totals.
	Stats(ctx context.Context) (*domain.CorpusStats, error)

	// GetMeta returns the recorded index metadata.
	// Returns domain.ErrNotFound before the first commit.
	GetMeta(ctx context.Context) (*domain.IndexMeta, error)

	// SetMeta records the index metadata.
	SetMeta(ctx context.Context, meta domain.IndexMeta) error

	// Close releases resources.
	Close() error
}
