package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query        string   `json:"query" jsonschema:"the search query text"`
	TopK         int      `json:"top_k,omitempty" jsonschema:"maximum number of results (default 5)"`
	Threshold    *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity in [-1, 1]; results below are dropped"`
	WithContext  bool     `json:"with_context,omitempty" jsonschema:"include neighbouring chunk text with each result"`
	ContextSize  int      `json:"context_size,omitempty" jsonschema:"chunks of context on each side (default 1)"`
	FullDocument bool     `json:"full_document,omitempty" jsonschema:"attach the whole parent document to each result"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Position   int     `json:"position"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
	Context    string  `json:"context,omitempty"`
	Document   string  `json:"document,omitempty"`
}

// IndexInput is the input schema for the index tool.
type IndexInput struct {
	SourceRoot  string `json:"source_root,omitempty" jsonschema:"directory to index (default: the configured source root)"`
	Incremental *bool  `json:"incremental,omitempty" jsonschema:"skip documents whose content is unchanged (default true)"`
}

// IndexOutput is the output schema for the index tool.
type IndexOutput struct {
	RunID            string   `json:"run_id"`
	DocumentsIndexed int      `json:"documents_indexed"`
	DocumentsSkipped int      `json:"documents_skipped"`
	DocumentsFailed  int      `json:"documents_failed"`
	ChunksWritten    int      `json:"chunks_written"`
	Errors           []string `json:"errors,omitempty"`
	Duration         string   `json:"duration"`
}

// DocumentCountInput is the (empty) input schema for document_count.
type DocumentCountInput struct{}

// DocumentCountOutput is the output schema for document_count.
type DocumentCountOutput struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// GetDocumentInput is the input schema for get_document.
type GetDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document ID (source-relative path)"`
}

// GetDocumentOutput is the output schema for get_document.
type GetDocumentOutput struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Status    string `json:"status"`
	IndexedAt string `json:"indexed_at,omitempty"`
}

// RemoveDocumentInput is the input schema for remove_document.
type RemoveDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document ID to remove"`
}

// RemoveDocumentOutput is the output schema for remove_document.
type RemoveDocumentOutput struct {
	Removed bool `json:"removed"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search across the indexed corpus",
	}, s.handleSearch)

	if s.ports.Indexer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "index",
			Description: "Index or re-index the document source",
		}, s.handleIndex)
	}

	if s.ports.Documents != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "document_count",
			Description: "Count indexed documents and chunks",
		}, s.handleDocumentCount)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "get_document",
			Description: "Fetch an indexed document with its content",
		}, s.handleGetDocument)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "remove_document",
			Description: "Remove a document and its chunks from the index",
		}, s.handleRemoveDocument)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.QueryOptions{
		TopK:         input.TopK,
		Threshold:    input.Threshold,
		WithContext:  input.WithContext,
		ContextSize:  input.ContextSize,
		FullDocument: input.FullDocument,
	}

	results, err := s.ports.Retriever.Query(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			DocumentID: results[i].Document.ID,
			Title:      results[i].Document.Title,
			Position:   results[i].Chunk.Position,
			Score:      results[i].Score,
			Content:    results[i].Chunk.Content,
			Context:    results[i].Context,
			Document:   results[i].Document.Content,
		}
	}

	return nil, output, nil
}

// handleIndex handles the index tool invocation.
func (s *Server) handleIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexInput,
) (*mcp.CallToolResult, IndexOutput, error) {
	incremental := true
	if input.Incremental != nil {
		incremental = *input.Incremental
	}

	report, err := s.ports.Indexer.Index(ctx, domain.IndexOptions{
		SourceRoot:  input.SourceRoot,
		Incremental: incremental,
	})
	if err != nil {
		return nil, IndexOutput{}, err
	}

	return nil, IndexOutput{
		RunID:            report.RunID,
		DocumentsIndexed: report.DocumentsIndexed,
		DocumentsSkipped: report.DocumentsSkipped,
		DocumentsFailed:  report.DocumentsFailed,
		ChunksWritten:    report.ChunksWritten,
		Errors:           report.Errors,
		Duration:         report.Duration.String(),
	}, nil
}

// handleDocumentCount handles the document_count tool invocation.
func (s *Server) handleDocumentCount(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ DocumentCountInput,
) (*mcp.CallToolResult, DocumentCountOutput, error) {
	stats, err := s.ports.Documents.Stats(ctx)
	if err != nil {
		return nil, DocumentCountOutput{}, err
	}

	return nil, DocumentCountOutput{
		Documents: stats.Documents,
		Chunks:    stats.Chunks,
	}, nil
}

// handleGetDocument handles the get_document tool invocation.
func (s *Server) handleGetDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDocumentInput,
) (*mcp.CallToolResult, GetDocumentOutput, error) {
	doc, err := s.ports.Documents.Get(ctx, input.DocumentID)
	if err != nil {
		return nil, GetDocumentOutput{}, err
	}

	output := GetDocumentOutput{
		ID:      doc.ID,
		Title:   doc.Title,
		Content: doc.Content,
		Status:  string(doc.Status),
	}
	if !doc.IndexedAt.IsZero() {
		output.IndexedAt = doc.IndexedAt.Format(time.RFC3339)
	}

	return nil, output, nil
}

// handleRemoveDocument handles the remove_document tool invocation.
func (s *Server) handleRemoveDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RemoveDocumentInput,
) (*mcp.CallToolResult, RemoveDocumentOutput, error) {
	if err := s.ports.Documents.Remove(ctx, input.DocumentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, RemoveDocumentOutput{Removed: false}, nil
		}
		return nil, RemoveDocumentOutput{}, err
	}

	return nil, RemoveDocumentOutput{Removed: true}, nil
}
