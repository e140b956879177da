package domain

import "time"

// IndexOptions configures a corpus index run.
type IndexOptions struct {
	// SourceRoot is the directory to index. Empty means the configured
	// default source root.
	SourceRoot string

	// Incremental skips documents whose content hash is unchanged.
	// When false every document is re-chunked and re-embedded, and the
	// recorded embedding model may change.
	Incremental bool
}

// IndexReport summarises one index run. A run never aborts because of
// a single document; per-document failures are collected here.
type IndexReport struct {
	// RunID uniquely identifies the run.
	RunID string

	// DocumentsIndexed counts documents whose chunks were committed.
	DocumentsIndexed int

	// DocumentsSkipped counts documents left untouched because their
	// content hash matched the stored one.
	DocumentsSkipped int

	// DocumentsFailed counts documents that could not be committed.
	DocumentsFailed int

	// ChunksWritten counts chunks stored across all committed documents.
	ChunksWritten int

	// Errors holds one message per failed or skipped-with-error document.
	Errors []string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the total wall-clock time of the run.
	Duration time.Duration
}

// IndexStatus reports the progress of a running or finished index run.
type IndexStatus struct {
	// RunID identifies the run being reported.
	RunID string

	// Running is true while the run is in flight.
	Running bool

	// DocumentsProcessed counts documents handled so far, including
	// skips and failures.
	DocumentsProcessed int

	// ChunksWritten counts chunks committed so far.
	ChunksWritten int

	// ErrorCount counts per-document failures so far.
	ErrorCount int
}

// IndexMeta records corpus-wide embedding parameters. It is written on
// the first successful document commit and enforced from then on.
type IndexMeta struct {
	// ModelID is the embedding model identifier for every stored vector.
	ModelID string

	// Dimensions is the vector dimensionality D.
	Dimensions int
}
