package tui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// MockRetriever implements driving.Retriever for testing.
type MockRetriever struct {
	QueryFunc func(
		ctx context.Context, text string, opts domain.QueryOptions,
	) ([]domain.RetrievalResult, error)
}

func (m *MockRetriever) Query(
	ctx context.Context, text string, opts domain.QueryOptions,
) ([]domain.RetrievalResult, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, text, opts)
	}
	return nil, nil
}

// MockDocumentService implements driving.DocumentService for testing.
type MockDocumentService struct {
	ListFunc   func(ctx context.Context, limit, offset int) ([]domain.Document, error)
	GetFunc    func(ctx context.Context, documentID string) (*domain.Document, error)
	RemoveFunc func(ctx context.Context, documentID string) error
	StatsFunc  func(ctx context.Context) (*domain.CorpusStats, error)
}

func (m *MockDocumentService) List(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *MockDocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, documentID)
	}
	return nil, nil
}

func (m *MockDocumentService) Remove(ctx context.Context, documentID string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, documentID)
	}
	return nil
}

func (m *MockDocumentService) Stats(ctx context.Context) (*domain.CorpusStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return nil, nil
}

func TestNewPorts(t *testing.T) {
	retriever := &MockRetriever{}
	documents := &MockDocumentService{}

	ports := NewPorts(retriever, documents)

	require.NotNil(t, ports)
	assert.Equal(t, retriever, ports.Retriever)
	assert.Equal(t, documents, ports.Documents)
}

func TestPorts_Validate_AllSet(t *testing.T) {
	ports := &Ports{
		Retriever: &MockRetriever{},
		Documents: &MockDocumentService{},
	}

	err := ports.Validate()

	assert.NoError(t, err)
}

func TestPorts_Validate_MissingRetriever(t *testing.T) {
	ports := &Ports{
		Documents: &MockDocumentService{},
	}

	err := ports.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRetriever)
}

func TestPorts_Validate_DocumentsOptional(t *testing.T) {
	ports := &Ports{
		Retriever: &MockRetriever{},
	}

	err := ports.Validate()

	assert.NoError(t, err)
}
