package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure Store implements both storage interfaces.
var (
	_ driven.DocumentStore = (*Store)(nil)
	_ driven.VectorIndex   = (*Store)(nil)
)

// Store is an in-memory implementation of driven.DocumentStore and
// driven.VectorIndex. Used for tests and throwaway indexes.
type Store struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
	meta      *domain.IndexMeta
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// SaveDocument stores or updates a document record.
func (s *Store) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID, content included.
func (s *Store) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentHash returns the stored content hash for a document.
func (s *Store) GetDocumentHash(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return doc.ContentHash, nil
}

// SetDocumentHash records a document's content hash.
func (s *Store) SetDocumentHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.ContentHash = hash
	s.documents[id] = doc
	return nil
}

// UpdateDocumentStatus moves a document through its lifecycle.
func (s *Store) UpdateDocumentStatus(_ context.Context, id string, status domain.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	s.documents[id] = doc
	return nil
}

// ReplaceDocument atomically swaps a document's chunks and commits its
// record under a single lock acquisition.
func (s *Store) ReplaceDocument(_ context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range chunks {
		if err := s.checkDimensions(chunks[i]); err != nil {
			return err
		}
	}

	record := *doc
	if existing, ok := s.documents[record.ID]; ok && !existing.CreatedAt.IsZero() {
		// Replacement keeps the original discovery time.
		record.CreatedAt = existing.CreatedAt
	}
	s.documents[record.ID] = record
	if len(chunks) == 0 {
		delete(s.chunks, doc.ID)
		return nil
	}
	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	s.chunks[doc.ID] = stored
	return nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *Store) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.ID == id {
				return &chunk, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// GetChunks retrieves all chunks for a document ordered by position.
func (s *Store) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks, ok := s.chunks[documentID]
	if !ok {
		return nil, nil
	}
	result := make([]domain.Chunk, len(chunks))
	copy(result, chunks)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// GetChunkRange retrieves a document's chunks with positions in
// [from, to], ordered by position.
func (s *Store) GetChunkRange(_ context.Context, documentID string, from, to int) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Chunk
	for _, chunk := range s.chunks[documentID] {
		if chunk.Position >= from && chunk.Position <= to {
			result = append(result, chunk)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// DeleteDocument removes a document record and its chunks.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// ListDocuments returns document records without content, ordered by ID.
func (s *Store) ListDocuments(_ context.Context, limit, offset int) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.documents))
	for id := range s.documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	result := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		doc := s.documents[id]
		doc.Content = ""
		result = append(result, doc)
	}
	return result, nil
}

// Stats returns corpus totals.
func (s *Store) Stats(_ context.Context) (*domain.CorpusStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &domain.CorpusStats{Documents: len(s.documents)}
	for _, chunks := range s.chunks {
		stats.Chunks += len(chunks)
	}
	return stats, nil
}

// GetMeta returns the recorded index metadata.
func (s *Store) GetMeta(_ context.Context) (*domain.IndexMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return nil, domain.ErrNotFound
	}
	meta := *s.meta
	return &meta, nil
}

// SetMeta records the index metadata.
func (s *Store) SetMeta(_ context.Context, meta domain.IndexMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = &meta
	return nil
}

// UpsertChunk inserts or replaces a chunk and its vector.
func (s *Store) UpsertChunk(_ context.Context, chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDimensions(chunk); err != nil {
		return err
	}

	chunks := s.chunks[chunk.DocumentID]
	for i := range chunks {
		if chunks[i].ID == chunk.ID {
			chunks[i] = chunk
			return nil
		}
	}
	s.chunks[chunk.DocumentID] = append(chunks, chunk)
	return nil
}

// DeleteChunks removes all chunks for a document.
func (s *Store) DeleteChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return nil
}

// Search finds the k nearest chunks to the query vector by brute-force
// cosine similarity over all stored vectors.
func (s *Store) Search(_ context.Context, query []float32, params driven.SearchParams) ([]driven.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		chunk domain.Chunk
		score float64
	}

	var candidates []scored
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if params.ModelID != "" && chunk.ModelID != params.ModelID {
				continue
			}
			if len(chunk.Embedding) == 0 {
				continue
			}
			score := domain.CosineSimilarity(query, chunk.Embedding)
			if params.Threshold != nil && score < *params.Threshold {
				continue
			}
			candidates = append(candidates, scored{chunk: chunk, score: score})
		}
	}

	// Order by similarity descending, ties by (document ID, position).
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].chunk.DocumentID != candidates[j].chunk.DocumentID {
			return candidates[i].chunk.DocumentID < candidates[j].chunk.DocumentID
		}
		return candidates[i].chunk.Position < candidates[j].chunk.Position
	})

	if params.K > 0 && len(candidates) > params.K {
		candidates = candidates[:params.K]
	}

	hits := make([]driven.VectorHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, driven.VectorHit{ChunkID: c.chunk.ID, Similarity: c.score})
	}
	return hits, nil
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}

// checkDimensions enforces the corpus dimension on writes. Callers hold
// the lock.
func (s *Store) checkDimensions(chunk domain.Chunk) error {
	if s.meta == nil {
		return nil
	}
	if len(chunk.Embedding) != s.meta.Dimensions {
		return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
			domain.ErrInvalidInput, chunk.ID, len(chunk.Embedding), s.meta.Dimensions)
	}
	return nil
}
