package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	// Configuration validation failures wrap this sentinel.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown loader or normaliser type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrIndexInProgress indicates an index run is already running.
	ErrIndexInProgress = errors.New("index run in progress")

	// ErrIndexEmpty indicates the corpus contains no indexed documents.
	ErrIndexEmpty = errors.New("index is empty")

	// ErrConfigMismatch indicates the configured embedding model differs
	// from the model recorded for the indexed corpus. Querying or
	// incrementally indexing across model identifiers is refused.
	ErrConfigMismatch = errors.New("embedding model mismatch")

	// ErrEmbedderUnavailable indicates the embedding service is down or
	// its circuit breaker is open. Retrying immediately will not help.
	ErrEmbedderUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable indicates the vector store cannot be reached.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrLoaderClosed indicates the loader has been closed.
	ErrLoaderClosed = errors.New("loader closed")
)

// LoadError reports a file that could not be read or normalised.
// Load errors are collected and reported, never fatal to a run.
type LoadError struct {
	// Path is the source-root-relative path of the failing file.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// EmbedError reports an embedding failure for a single chunk.
// The failure is isolated to the chunk's document, not the run.
type EmbedError struct {
	// ChunkID identifies the chunk whose embedding failed.
	ChunkID string

	// Err is the underlying cause.
	Err error
}

func (e *EmbedError) Error() string {
	return fmt.Sprintf("embedding chunk %s: %v", e.ChunkID, e.Err)
}

func (e *EmbedError) Unwrap() error { return e.Err }

// StoreError reports a store operation failure. During indexing it
// aborts the current document's commit; the document stays stale.
type StoreError struct {
	// Op names the failing store operation.
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
