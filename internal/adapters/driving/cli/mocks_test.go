package cli

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// mockRetriever implements driving.Retriever for command tests.
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

// mockIndexer implements driving.Indexer for command tests.
type mockIndexer struct {
	report   *domain.IndexReport
	status   *domain.IndexStatus
	indexErr error
	watchErr error
	watched  bool
	lastOpts domain.IndexOptions
}

func (m *mockIndexer) Index(_ context.Context, opts domain.IndexOptions) (*domain.IndexReport, error) {
	m.lastOpts = opts
	return m.report, m.indexErr
}

func (m *mockIndexer) Watch(_ context.Context, opts domain.IndexOptions) error {
	m.watched = true
	m.lastOpts = opts
	return m.watchErr
}

func (m *mockIndexer) Status(_ context.Context) (*domain.IndexStatus, error) {
	return m.status, nil
}

// mockDocumentService implements driving.DocumentService for command tests.
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

// mockConfigStore implements driven.ConfigStore over a plain map.
type mockConfigStore struct {
	values map[string]any
	setErr error
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{values: make(map[string]any)}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	value, ok := m.values[key]
	return value, ok
}

func (m *mockConfigStore) GetString(key string) string {
	if value, ok := m.values[key].(string); ok {
		return value
	}
	return ""
}

func (m *mockConfigStore) GetInt(key string) int {
	if value, ok := m.values[key].(int); ok {
		return value
	}
	return 0
}

func (m *mockConfigStore) GetFloat(key string) float64 {
	if value, ok := m.values[key].(float64); ok {
		return value
	}
	return 0
}

func (m *mockConfigStore) GetBool(key string) bool {
	if value, ok := m.values[key].(bool); ok {
		return value
	}
	return false
}

func (m *mockConfigStore) GetStringSlice(key string) []string {
	if value, ok := m.values[key].([]string); ok {
		return value
	}
	return nil
}

func (m *mockConfigStore) Set(key string, value any) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockConfigStore) Save() error { return nil }

func (m *mockConfigStore) Load() error { return nil }

func (m *mockConfigStore) Path() string { return "/tmp/quarry-test/config.toml" }

// mockRetrieverError always fails.
type mockRetrieverError struct{}

func (m *mockRetrieverError) Query(
	_ context.Context,
	_ string,
	_ domain.QueryOptions,
) ([]domain.RetrievalResult, error) {
	return nil, errors.New("embedder unreachable")
}

func testRetrievalResults() []domain.RetrievalResult {
	return []domain.RetrievalResult{
		{
			Chunk: domain.Chunk{
				ID:         domain.ChunkID("docs/intro.md", 0),
				DocumentID: "docs/intro.md",
				Content:    "Quarry indexes documents into chunk vectors.",
				Position:   0,
			},
			Document: domain.Document{ID: "docs/intro.md", Title: "Introduction"},
			Score:    0.93,
		},
		{
			Chunk: domain.Chunk{
				ID:         domain.ChunkID("docs/usage.md", 2),
				DocumentID: "docs/usage.md",
				Content:    "Queries are embedded with the same model.",
				Position:   2,
			},
			Document: domain.Document{ID: "docs/usage.md", Title: "Usage"},
			Score:    0.81,
		},
	}
}

func testIndexReport() *domain.IndexReport {
	return &domain.IndexReport{
		RunID:            "run-test",
		DocumentsIndexed: 3,
		DocumentsSkipped: 1,
		DocumentsFailed:  0,
		ChunksWritten:    12,
		StartedAt:        time.Now(),
		Duration:         1500 * time.Millisecond,
	}
}

func testDocuments() []domain.Document {
	return []domain.Document{
		{ID: "docs/intro.md", Title: "Introduction", Status: domain.StatusProcessed},
		{ID: "docs/usage.md", Title: "Usage", Status: domain.StatusStale},
	}
}

// setupTestServices wires working mocks into the command tree and
// returns a cleanup that restores whatever was there before.
func setupTestServices() func() {
	oldRetriever := retrieverService
	oldIndexer := indexerService
	oldDocuments := documentService
	oldConfig := configStore

	retrieverService = &mockRetriever{results: testRetrievalResults()}
	indexerService = &mockIndexer{report: testIndexReport()}
	documentService = &mockDocumentService{
		documents: testDocuments(),
		document: &domain.Document{
			ID:          "docs/intro.md",
			Title:       "Introduction",
			Content:     "Quarry indexes documents into chunk vectors.",
			ContentHash: "deadbeef",
			Status:      domain.StatusProcessed,
			CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			IndexedAt:   time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
		},
		stats: &domain.CorpusStats{Documents: 2, Chunks: 12},
	}
	configStore = newMockConfigStore()

	return func() {
		retrieverService = oldRetriever
		indexerService = oldIndexer
		documentService = oldDocuments
		configStore = oldConfig
	}
}
