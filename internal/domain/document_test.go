package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennwick/docshelf/internal/domain"
)

func TestNewDocument(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("creates a valid document", func(t *testing.T) {
		t.Parallel()

		doc, err := domain.NewDocument(userID, "Weekly Notes", domain.DocTypeNote, domain.DocumentStatusReady)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, doc.ID)
		assert.Equal(t, userID, doc.UserID)
		assert.Equal(t, "Weekly Notes", doc.Title)
		assert.Equal(t, domain.DocumentStatusReady, doc.Status)
		assert.Empty(t, doc.Content)
		assert.NotNil(t, doc.Tags)
	})

	t.Run("rejects empty title", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewDocument(userID, "", domain.DocTypeNote, domain.DocumentStatusReady)
		assert.ErrorIs(t, err, domain.ErrEmptyDocumentTitle)
	})

	t.Run("rejects empty user ID", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewDocument(uuid.Nil, "Notes", domain.DocTypeNote, domain.DocumentStatusReady)
		assert.ErrorIs(t, err, domain.ErrEmptyDocumentUserID)
	})

	t.Run("rejects invalid doc type", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewDocument(userID, "Notes", domain.DocType("spreadsheet"), domain.DocumentStatusReady)
		assert.ErrorIs(t, err, domain.ErrInvalidDocumentType)
	})

	t.Run("rejects invalid status", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewDocument(userID, "Notes", domain.DocTypeNote, domain.DocumentStatus("archived"))
		assert.ErrorIs(t, err, domain.ErrInvalidDocumentState)
	})
}

func TestDocumentUpdateStatus(t *testing.T) {
	t.Parallel()

	doc, err := domain.NewDocument(uuid.New(), "Notes", domain.DocTypeNote, domain.DocumentStatusProcessing)
	require.NoError(t, err)

	before := doc.UpdatedAt
	require.NoError(t, doc.UpdateStatus(domain.DocumentStatusError))
	assert.Equal(t, domain.DocumentStatusError, doc.Status)
	assert.False(t, doc.UpdatedAt.Before(before))

	assert.ErrorIs(t, doc.UpdateStatus(domain.DocumentStatus("archived")), domain.ErrInvalidDocumentState)
	assert.Equal(t, domain.DocumentStatusError, doc.Status)
}

func TestDocumentSetContent(t *testing.T) {
	t.Parallel()

	doc, err := domain.NewDocument(uuid.New(), "Paper", domain.DocTypePDF, domain.DocumentStatusProcessing)
	require.NoError(t, err)

	doc.SetContent("extracted text")
	assert.Equal(t, "extracted text", doc.Content)
	assert.Equal(t, domain.DocumentStatusReady, doc.Status)
}
