package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/platform/logger"
	"github.com/fennwick/docshelf/internal/store"
	"github.com/google/uuid"
)

// documentColumns is the column list shared by every document select.
const documentColumns = `id, user_id, title, content, doc_type, tags, status,
	category_id, file_name, created_at, updated_at`

// PostgresDocumentStore implements the store.DocumentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresDocumentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDocumentStore creates a new PostgreSQL implementation of the
// DocumentStore interface. If logger is nil, a default logger will be used.
func NewPostgresDocumentStore(db store.DBTX, logger *slog.Logger) *PostgresDocumentStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDocumentStore{
		db:     db,
		logger: logger.With(slog.String("component", "document_store")),
	}
}

// Ensure PostgresDocumentStore implements store.DocumentStore interface
var _ store.DocumentStore = (*PostgresDocumentStore)(nil)

// WithTx implements store.DocumentStore.WithTx
func (s *PostgresDocumentStore) WithTx(tx *sql.Tx) store.DocumentStore {
	return &PostgresDocumentStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.DocumentStore.Create
func (s *PostgresDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := doc.Validate(); err != nil {
		log.Warn("document validation failed during create",
			slog.String("error", err.Error()),
			slog.String("document_id", doc.ID.String()))
		return err
	}

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal document tags: %w", err)
	}

	query := `
		INSERT INTO documents (id, user_id, title, content, doc_type, tags,
			status, category_id, file_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.Title,
		doc.Content,
		doc.DocType,
		tags,
		doc.Status,
		doc.CategoryID,
		doc.FileName,
		doc.CreatedAt,
		doc.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create document",
			slog.String("error", err.Error()),
			slog.String("document_id", doc.ID.String()))
		return MapError(err)
	}

	log.Info("document created",
		slog.String("document_id", doc.ID.String()),
		slog.String("status", string(doc.Status)))
	return nil
}

// GetByID implements store.DocumentStore.GetByID
func (s *PostgresDocumentStore) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDocumentNotFound
		}
		return nil, MapError(err)
	}

	return doc, nil
}

// UpdateContent implements store.DocumentStore.UpdateContent
func (s *PostgresDocumentStore) UpdateContent(
	ctx context.Context,
	id uuid.UUID,
	content string,
	status domain.DocumentStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE documents
		SET content = $2, status = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, content, status, time.Now().UTC())
	if err != nil {
		log.Error("failed to update document content",
			slog.String("error", err.Error()),
			slog.String("document_id", id.String()))
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrDocumentNotFound
	}

	log.Info("document content updated",
		slog.String("document_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// UpdateStatus implements store.DocumentStore.UpdateStatus
func (s *PostgresDocumentStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.DocumentStatus,
) error {
	query := `
		UPDATE documents
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrDocumentNotFound
	}

	return nil
}

// List implements store.DocumentStore.List
func (s *PostgresDocumentStore) List(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	docs := []*domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}

	return docs, nil
}

// Delete implements store.DocumentStore.Delete
func (s *PostgresDocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrDocumentNotFound
	}

	return nil
}

// scanDocument scans one document row into a domain.Document.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var tags []byte

	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Title,
		&doc.Content,
		&doc.DocType,
		&tags,
		&doc.Status,
		&doc.CategoryID,
		&doc.FileName,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &doc.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document tags: %w", err)
		}
	}

	return &doc, nil
}
