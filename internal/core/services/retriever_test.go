package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/quarry/internal/core/domain"
)

// --- Mock implementations for retriever testing ---
// Note: These are prefixed with "ret" to avoid conflicts with indexer mocks

// retMockEmbedder implements driven.EmbeddingService with a fixed
// query embedding.
type retMockEmbedder struct {
	embedding []float32
	err       error
	calls     []string
}

func (e *retMockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls = append(e.calls, text)
	if e.err != nil {
		return nil, e.err
	}
	if e.embedding != nil {
		return e.embedding, nil
	}
	return []float32{1, 0, 0}, nil
}

func (e *retMockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := e.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

func (e *retMockEmbedder) Dimensions() int              { return 3 }
func (e *retMockEmbedder) ModelName() string            { return "mock-model" }
func (e *retMockEmbedder) MaxInputLength() int          { return 0 }
func (e *retMockEmbedder) Ping(_ context.Context) error { return nil }
func (e *retMockEmbedder) Close() error                 { return nil }

// seedStore builds a memory store carrying the mock model's metadata.
func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.SetMeta(context.Background(), domain.IndexMeta{
		ModelID:    "mock-model",
		Dimensions: 3,
	}))
	return store
}

// seedDocument stores a document and one embedded chunk per vector.
func seedDocument(t *testing.T, store *memory.Store, docID, content string, vectors ...[]float32) {
	t.Helper()
	ctx := context.Background()

	doc := &domain.Document{
		ID:          docID,
		Title:       docID,
		Content:     content,
		ContentHash: "hash-" + docID,
		Status:      domain.StatusProcessed,
	}

	chunks := make([]domain.Chunk, 0, len(vectors))
	for i, vec := range vectors {
		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(docID, i),
			DocumentID: docID,
			Content:    fmt.Sprintf("chunk %d of %s", i, docID),
			Position:   i,
			Embedding:  vec,
			ModelID:    "mock-model",
		})
	}
	require.NoError(t, store.ReplaceDocument(ctx, doc, chunks))
}

// --- Tests ---

func TestNewRetriever(t *testing.T) {
	store := memory.NewStore()
	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	require.NotNil(t, retriever)
	assert.NotNil(t, retriever.docStore)
	assert.NotNil(t, retriever.vectorIndex)
}

func TestRetriever_Query_EmptyText(t *testing.T) {
	store := seedStore(t)
	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	_, err := retriever.Query(context.Background(), "   ", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetriever_Query_EmptyIndex(t *testing.T) {
	store := memory.NewStore()
	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	_, err := retriever.Query(context.Background(), "anything", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrIndexEmpty)
}

func TestRetriever_Query_ModelMismatch(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.SetMeta(context.Background(), domain.IndexMeta{
		ModelID:    "other-model",
		Dimensions: 3,
	}))
	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	_, err := retriever.Query(context.Background(), "anything", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrConfigMismatch)
	assert.Contains(t, err.Error(), "other-model")
}

func TestRetriever_Query_DimensionMismatch(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.SetMeta(context.Background(), domain.IndexMeta{
		ModelID:    "mock-model",
		Dimensions: 768,
	}))
	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	_, err := retriever.Query(context.Background(), "anything", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrConfigMismatch)
}

func TestRetriever_Query_RanksBySimilarity(t *testing.T) {
	store := seedStore(t)
	seedDocument(t, store, "close.md", "close content", []float32{1, 0, 0})
	seedDocument(t, store, "near.md", "near content", []float32{0.8, 0.6, 0})
	seedDocument(t, store, "far.md", "far content", []float32{0, 1, 0})

	retriever := NewRetriever(store, store, &retMockEmbedder{embedding: []float32{1, 0, 0}}, RetrieverConfig{})

	results, err := retriever.Query(context.Background(), "test query", domain.QueryOptions{TopK: 3})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "close.md", results[0].Document.ID)
	assert.Equal(t, "near.md", results[1].Document.ID)
	assert.Equal(t, "far.md", results[2].Document.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Greater(t, results[1].Score, results[2].Score)
}

func TestRetriever_Query_ResultShape(t *testing.T) {
	store := seedStore(t)
	seedDocument(t, store, "a.md", "full document content", []float32{1, 0, 0})

	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	results, err := retriever.Query(context.Background(), "test", domain.QueryOptions{TopK: 1})

	require.NoError(t, err)
	require.Len(t, results, 1)
	result := results[0]
	assert.Equal(t, "a.md#0", result.Chunk.ID)
	assert.Equal(t, "chunk 0 of a.md", result.Chunk.Content)
	assert.Nil(t, result.Chunk.Embedding, "vectors stay out of results")
	assert.Empty(t, result.Document.Content, "full content only on request")
	assert.Equal(t, "a.md", result.Document.ID)
	assert.InDelta(t, 1.0, result.Score, 1e-6)
}

func TestRetriever_Query_DefaultTopK(t *testing.T) {
	store := seedStore(t)
	for i := 0; i < 8; i++ {
		seedDocument(t, store, fmt.Sprintf("doc-%d.md", i), "content", []float32{1, 0, 0})
	}

	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	results, err := retriever.Query(context.Background(), "test", domain.QueryOptions{})

	require.NoError(t, err)
	assert.Len(t, results, domain.DefaultTopK)
}

func TestRetriever_Query_TopKLargerThanCorpus(t *testing.T) {
	store := seedStore(t)
	seedDocument(t, store, "a.md", "content A", []float32{1, 0, 0})
	seedDocument(t, store, "b.md", "content B", []float32{0, 1, 0})

	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	results, err := retriever.Query(context.Background(), "test", domain.QueryOptions{TopK: 5})

	require.NoError(t, err)
	assert.Len(t, results, 2, "a small corpus returns what it has")
}

func TestRetriever_Query_Threshold(t *testing.T) {
	store := seedStore(t)
	seedDocument(t, store, "close.md", "close", []float32{1, 0, 0})
	seedDocument(t, store, "far.md", "far", []float32{0, 1, 0})

	retriever := NewRetriever(store, store, &retMockEmbedder{embedding: []float32{1, 0, 0}}, RetrieverConfig{})

	threshold := 0.5
	results, err := retriever.Query(context.Background(), "test", domain.QueryOptions{
		TopK:      10,
		Threshold: &threshold,
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "close.md", results[0].Document.ID)
}

func TestRetriever_Query_DeterministicTieBreak(t *testing.T) {
	store := seedStore(t)
	// Identical vectors everywhere: order must fall back to
	// (document ID, position) and stay stable across runs.
	seedDocument(t, store, "b.md", "content B", []float32{1, 0, 0}, []float32{1, 0, 0})
	seedDocument(t, store, "a.md", "content A", []float32{1, 0, 0})

	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	for run := 0; run < 3; run++ {
		results, err := retriever.Query(context.Background(), "test", domain.QueryOptions{TopK: 3})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a.md#0", results[0].Chunk.ID)
		assert.Equal(t, "b.md#0", results[1].Chunk.ID)
		assert.Equal(t, "b.md#1", results[2].Chunk.ID)
	}
}

func TestRetriever_Query_SkipsOrphanedChunks(t *testing.T) {
	store := seedStore(t)
	seedDocument(t, store, "a.md", "content A", []float32{1, 0, 0})

	// A chunk whose document record is gone: hydration skips it
	require.NoError(t, store.UpsertChunk(context.Background(), domain.Chunk{
		ID:         "ghost.md#0",
		DocumentID: "ghost.md",
		Content:    "orphaned",
		Position:   0,
		Embedding:  []float32{1, 0, 0},
		ModelID:    "mock-model",
	}))

	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	results, err := retriever.Query(context.Background(), "test", domain.QueryOptions{TopK: 10})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.md", results[0].Document.ID)
}

func TestRetriever_Query_WithContext(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	content := "first part. second part. third part."
	doc := &domain.Document{ID: "a.md", Title: "a.md", Content: content, Status: domain.StatusProcessed}
	chunks := []domain.Chunk{
		{ID: "a.md#0", DocumentID: "a.md", Content: "first part. ", Position: 0,
			StartOffset: 0, EndOffset: 12, Embedding: []float32{0, 1, 0}, ModelID: "mock-model"},
		{ID: "a.md#1", DocumentID: "a.md", Content: "second part. ", Position: 1,
			StartOffset: 12, EndOffset: 25, Embedding: []float32{1, 0, 0}, ModelID: "mock-model"},
		{ID: "a.md#2", DocumentID: "a.md", Content: "third part.", Position: 2,
			StartOffset: 25, EndOffset: 36, Embedding: []float32{0, 0, 1}, ModelID: "mock-model"},
	}
	require.NoError(t, store.ReplaceDocument(ctx, doc, chunks))

	retriever := NewRetriever(store, store, &retMockEmbedder{embedding: []float32{1, 0, 0}}, RetrieverConfig{})

	results, err := retriever.Query(ctx, "test", domain.QueryOptions{
		TopK:        1,
		WithContext: true,
		ContextSize: 1,
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.md#1", results[0].Chunk.ID)
	assert.Equal(t, "first part. second part. third part.", results[0].Context)
}

func TestRetriever_Query_FullDocument(t *testing.T) {
	store := seedStore(t)
	seedDocument(t, store, "a.md", "the full document body", []float32{1, 0, 0})

	retriever := NewRetriever(store, store, &retMockEmbedder{}, RetrieverConfig{})

	results, err := retriever.Query(context.Background(), "test", domain.QueryOptions{
		TopK:         1,
		FullDocument: true,
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "the full document body", results[0].Document.Content)
	assert.Empty(t, results[0].Context)
}

func TestRetriever_Query_AppliesQueryPrefix(t *testing.T) {
	store := seedStore(t)
	embedder := &retMockEmbedder{}
	retriever := NewRetriever(store, store, embedder, RetrieverConfig{QueryPrefix: "query: "})

	_, err := retriever.Query(context.Background(), "find me", domain.QueryOptions{})

	require.NoError(t, err)
	require.Len(t, embedder.calls, 1)
	assert.Equal(t, "query: find me", embedder.calls[0])
}

func TestRetriever_Query_EmbedError(t *testing.T) {
	store := seedStore(t)
	embedder := &retMockEmbedder{err: errors.New("backend offline")}
	retriever := NewRetriever(store, store, embedder, RetrieverConfig{})

	_, err := retriever.Query(context.Background(), "test", domain.QueryOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate query embedding")
}
