package domain

import "fmt"

// Default chunking configuration values.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultChunkMinSize = 50
)

// ChunkingConfig controls how normalised text is split into chunks.
// All sizes are measured in bytes of UTF-8 text; splits never land
// inside a multi-byte rune.
type ChunkingConfig struct {
	// Size is the target chunk size. Chunks may come out smaller when
	// boundary preservation wins, never more than Size+Overlap larger.
	Size int

	// Overlap is how much trailing text of chunk i is repeated at the
	// start of chunk i+1. Zero disables overlap.
	Overlap int

	// MinSize is the smallest chunk the splitter will emit. A trailing
	// fragment below MinSize is merged into its predecessor. A document
	// shorter than MinSize still yields exactly one chunk.
	MinSize int
}

// DefaultChunkingConfig returns the standard configuration.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		Size:    DefaultChunkSize,
		Overlap: DefaultChunkOverlap,
		MinSize: DefaultChunkMinSize,
	}
}

// Validate rejects impossible configurations up front, before any
// document is processed.
func (c ChunkingConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidInput, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidInput, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidInput, c.Overlap, c.Size)
	}
	if c.MinSize < 0 {
		return fmt.Errorf("%w: chunk min size must not be negative, got %d", ErrInvalidInput, c.MinSize)
	}
	if c.MinSize > c.Size {
		return fmt.Errorf("%w: chunk min size %d must not exceed chunk size %d", ErrInvalidInput, c.MinSize, c.Size)
	}
	return nil
}
