package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/store"
	"github.com/google/uuid"
)

// DocumentService exposes read and delete access to the library. A
// document that was only partially processed remains accessible here so
// the user never loses the original upload; deleting a document leaves
// its job untouched.
type DocumentService interface {
	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// ListDocuments returns the user's documents, newest first.
	ListDocuments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Document, error)

	// DeleteDocument removes a document independently of any job.
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}

// documentServiceImpl implements the DocumentService interface.
type documentServiceImpl struct {
	docStore store.DocumentStore
	logger   *slog.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(docStore store.DocumentStore, logger *slog.Logger) (DocumentService, error) {
	if docStore == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "docStore cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &documentServiceImpl{
		docStore: docStore,
		logger:   logger.With("component", "document_service"),
	}, nil
}

// GetDocument implements DocumentService.GetDocument
func (s *documentServiceImpl) GetDocument(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Document, error) {
	doc, err := s.docStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, &ServiceError{Operation: "get_document", Message: "failed to retrieve document", Err: err}
	}
	return doc, nil
}

// ListDocuments implements DocumentService.ListDocuments
func (s *documentServiceImpl) ListDocuments(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := s.docStore.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, &ServiceError{Operation: "list_documents", Message: "failed to list documents", Err: err}
	}
	return docs, nil
}

// DeleteDocument implements DocumentService.DeleteDocument
func (s *documentServiceImpl) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	if err := s.docStore.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			return ErrDocumentNotFound
		}
		return &ServiceError{Operation: "delete_document", Message: "failed to delete document", Err: err}
	}

	s.logger.Info("document deleted", "document_id", id)
	return nil
}
