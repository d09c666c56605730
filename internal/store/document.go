package store

import (
	"context"
	"database/sql"

	"github.com/fennwick/docshelf/internal/domain"
	"github.com/google/uuid"
)

// DocumentStore defines the interface for document data persistence.
type DocumentStore interface {
	// Create saves a new document to the store.
	// It handles domain validation internally.
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document by its unique ID.
	// Returns ErrDocumentNotFound if the document does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// UpdateContent stores extracted content on a document and sets its
	// status in a single write. Used by workers to finalize a conversion.
	// Returns ErrDocumentNotFound if the document does not exist.
	UpdateContent(
		ctx context.Context,
		id uuid.UUID,
		content string,
		status domain.DocumentStatus,
	) error

	// UpdateStatus updates only the status of an existing document.
	// Returns ErrDocumentNotFound if the document does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus) error

	// List retrieves a user's documents ordered by created_at descending.
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Document, error)

	// Delete removes a document. Deleting a document never deletes its job.
	// Returns ErrDocumentNotFound if the document does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new DocumentStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) DocumentStore
}
