package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/quarry/internal/core/domain"
)

func TestNewDocumentService(t *testing.T) {
	service := NewDocumentService(memory.NewStore())
	require.NotNil(t, service)
	assert.NotNil(t, service.docStore)
}

func TestDocumentService_List(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	for _, id := range []string{"b.md", "a.md", "c.md"} {
		require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: id, Content: "body"}))
	}

	service := NewDocumentService(store)
	docs, err := service.List(ctx, 0, 0)

	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a.md", docs[0].ID)
	assert.Empty(t, docs[0].Content, "listing omits content")
}

func TestDocumentService_List_NegativeLimit(t *testing.T) {
	service := NewDocumentService(memory.NewStore())

	_, err := service.List(context.Background(), -1, 0)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentService_List_NegativeOffset(t *testing.T) {
	service := NewDocumentService(memory.NewStore())

	_, err := service.List(context.Background(), 0, -1)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentService_Get(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "a.md", Content: "full body"}))

	service := NewDocumentService(store)
	doc, err := service.Get(ctx, "a.md")

	require.NoError(t, err)
	assert.Equal(t, "full body", doc.Content)
}

func TestDocumentService_Get_EmptyID(t *testing.T) {
	service := NewDocumentService(memory.NewStore())

	_, err := service.Get(context.Background(), "  ")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentService_Get_NotFound(t *testing.T) {
	service := NewDocumentService(memory.NewStore())

	_, err := service.Get(context.Background(), "missing.md")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_Remove(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "a.md", Content: "body"}
	chunks := []domain.Chunk{{ID: "a.md#0", DocumentID: "a.md", Content: "body", Position: 0}}
	require.NoError(t, store.ReplaceDocument(ctx, doc, chunks))

	service := NewDocumentService(store)
	require.NoError(t, service.Remove(ctx, "a.md"))

	_, err := store.GetDocument(ctx, "a.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := store.GetChunks(ctx, "a.md")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDocumentService_Remove_EmptyID(t *testing.T) {
	service := NewDocumentService(memory.NewStore())

	err := service.Remove(context.Background(), "")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentService_Remove_NotFound(t *testing.T) {
	service := NewDocumentService(memory.NewStore())

	err := service.Remove(context.Background(), "missing.md")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_Stats(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.ReplaceDocument(ctx, &domain.Document{ID: "a.md"}, []domain.Chunk{
		{ID: "a.md#0", DocumentID: "a.md", Position: 0},
		{ID: "a.md#1", DocumentID: "a.md", Position: 1},
	}))

	service := NewDocumentService(store)
	stats, err := service.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 2, stats.Chunks)
}
