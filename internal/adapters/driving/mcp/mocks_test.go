package mcp

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	results  []domain.RetrievalResult
	err      error
	lastText string
	lastOpts domain.QueryOptions
}

func (m *mockRetriever) Query(
	_ context.Context,
	text string,
	opts domain.QueryOptions,
) ([]domain.RetrievalResult, error) {
	m.lastText = text
	m.lastOpts = opts
	return m.results, m.err
}

// mockIndexer is a mock implementation of driving.Indexer.
type mockIndexer struct {
	report   *domain.IndexReport
	status   *domain.IndexStatus
	err      error
	lastOpts domain.IndexOptions
}

func (m *mockIndexer) Index(_ context.Context, opts domain.IndexOptions) (*domain.IndexReport, error) {
	m.lastOpts = opts
	return m.report, m.err
}

func (m *mockIndexer) Watch(_ context.Context, opts domain.IndexOptions) error {
	m.lastOpts = opts
	return m.err
}

func (m *mockIndexer) Status(_ context.Context) (*domain.IndexStatus, error) {
	return m.status, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	stats     *domain.CorpusStats
	err       error
	removed   []string
}

func (m *mockDocumentService) List(_ context.Context, _, _ int) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.document, nil
}

func (m *mockDocumentService) Remove(_ context.Context, documentID string) error {
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, documentID)
	return nil
}

func (m *mockDocumentService) Stats(_ context.Context) (*domain.CorpusStats, error) {
	return m.stats, m.err
}
