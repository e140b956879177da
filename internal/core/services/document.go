package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages indexed documents.
type DocumentService struct {
	docStore driven.DocumentStore
}

// NewDocumentService creates a new document service.
func NewDocumentService(docStore driven.DocumentStore) *DocumentService {
	return &DocumentService{docStore: docStore}
}

// List returns document records without content, ordered by ID.
func (s *DocumentService) List(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidInput)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", domain.ErrInvalidInput)
	}
	return s.docStore.ListDocuments(ctx, limit, offset)
}

// Get retrieves a document by ID, content included.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, fmt.Errorf("%w: document ID is empty", domain.ErrInvalidInput)
	}
	return s.docStore.GetDocument(ctx, documentID)
}

// Remove deletes a document record and all its chunks. Removal is
// always explicit; index runs never delete documents.
func (s *DocumentService) Remove(ctx context.Context, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return fmt.Errorf("%w: document ID is empty", domain.ErrInvalidInput)
	}

	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	logger.Info("Removed document %s", documentID)
	return nil
}

// Stats returns corpus totals.
func (s *DocumentService) Stats(ctx context.Context) (*domain.CorpusStats, error) {
	return s.docStore.Stats(ctx)
}
