package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the lifecycle state of a document.
type DocumentStatus string

// Possible document status values
const (
	DocumentStatusDraft      DocumentStatus = "draft"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusError      DocumentStatus = "error"
)

// DocType classifies the kind of content a document holds.
type DocType string

// Possible document types
const (
	DocTypePDF      DocType = "pdf"
	DocTypeMarkdown DocType = "markdown"
	DocTypeText     DocType = "text"
	DocTypeNote     DocType = "note"
	DocTypeWeb      DocType = "web"
)

// Common validation errors for Document
var (
	ErrEmptyDocumentID      = errors.New("document ID cannot be empty")
	ErrEmptyDocumentUserID  = errors.New("document user ID cannot be empty")
	ErrEmptyDocumentTitle   = errors.New("document title cannot be empty")
	ErrInvalidDocumentType  = errors.New("invalid document type")
	ErrInvalidDocumentState = errors.New("invalid document status")
)

// Document represents a user-visible library entry. A document may
// exist and be visible before its originating job completes: Status
// reflects conversion progress, not job existence.
type Document struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	DocType    DocType        `json:"doc_type"`
	Tags       []string       `json:"tags"`
	Status     DocumentStatus `json:"status"`
	CategoryID *uuid.UUID     `json:"category_id,omitempty"`
	FileName   string         `json:"file_name,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewDocument creates a new Document with the given owner, title, type and
// initial status. It generates a new UUID and sets timestamps.
// Returns an error if validation fails.
func NewDocument(
	userID uuid.UUID,
	title string,
	docType DocType,
	status DocumentStatus,
) (*Document, error) {
	now := time.Now().UTC()
	doc := &Document{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		DocType:   docType,
		Tags:      []string{},
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks if the Document has valid data.
// Returns an error if any field fails validation.
func (d *Document) Validate() error {
	if d.ID == uuid.Nil {
		return ErrEmptyDocumentID
	}

	if d.UserID == uuid.Nil {
		return ErrEmptyDocumentUserID
	}

	if d.Title == "" {
		return ErrEmptyDocumentTitle
	}

	if !isValidDocType(d.DocType) {
		return ErrInvalidDocumentType
	}

	if !isValidDocumentStatus(d.Status) {
		return ErrInvalidDocumentState
	}

	return nil
}

// UpdateStatus updates the document's status and the UpdatedAt timestamp.
// Returns an error if the new status is invalid.
func (d *Document) UpdateStatus(status DocumentStatus) error {
	if !isValidDocumentStatus(status) {
		return ErrInvalidDocumentState
	}

	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// SetContent stores extracted content on the document and marks it ready.
func (d *Document) SetContent(content string) {
	d.Content = content
	d.Status = DocumentStatusReady
	d.UpdatedAt = time.Now().UTC()
}

// isValidDocumentStatus checks if the given status is a valid DocumentStatus.
func isValidDocumentStatus(status DocumentStatus) bool {
	switch status {
	case DocumentStatusDraft, DocumentStatusProcessing,
		DocumentStatusReady, DocumentStatusError:
		return true
	default:
		return false
	}
}

// isValidDocType checks if the given type is a valid DocType.
func isValidDocType(docType DocType) bool {
	switch docType {
	case DocTypePDF, DocTypeMarkdown, DocTypeText, DocTypeNote, DocTypeWeb:
		return true
	default:
		return false
	}
}
