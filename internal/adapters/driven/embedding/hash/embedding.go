// Package hash provides a deterministic embedding service that needs no
// external model. Vectors are derived from the SHA-256 digest of the
// input, so equal texts always embed identically. Useful for tests and
// offline runs; the vectors carry no semantic meaning.
package hash

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultDimensions matches the smallest common sentence-embedding size.
const DefaultDimensions = 384

// EmbeddingService generates deterministic pseudo-embeddings.
type EmbeddingService struct {
	dimensions int
	model      string
}

// NewEmbeddingService creates a hash embedding service. Zero or
// negative dimensions fall back to the default.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{
		dimensions: dimensions,
		// The dimension is part of the identifier so a size change
		// reads as a model change to the index metadata.
		model: fmt.Sprintf("hash-%d", dimensions),
	}
}

// Embed derives a unit-length vector from the SHA-256 digest of the
// text, re-hashing the digest whenever more bytes are needed.
func (s *EmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dimensions)

	block := sha256.Sum256([]byte(text))
	var norm float64
	for i := range vec {
		off := (i * 4) % sha256.Size
		if off == 0 && i > 0 {
			block = sha256.Sum256(block[:])
		}
		bits := binary.BigEndian.Uint32(block[off : off+4])
		v := float32(int32(bits)) / math.MaxInt32
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	// L2-normalize so cosine similarity behaves like the real services.
	// A zero norm cannot happen: digest words are never all zero.
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}

	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the identifier of the embedding scheme.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// MaxInputLength reports no input limit.
func (s *EmbeddingService) MaxInputLength() int {
	return 0
}

// Ping always succeeds; there is no remote service.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
