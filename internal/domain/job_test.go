package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennwick/docshelf/internal/domain"
)

func TestNewProcessingJob(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	docID := uuid.New()

	t.Run("creates a valid pending job", func(t *testing.T) {
		t.Parallel()

		job, err := domain.NewProcessingJob(userID, docID, domain.SourceTypeFile, "/tmp/upload-1.md")
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, job.ID)
		assert.Equal(t, userID, job.UserID)
		assert.Equal(t, docID, job.DocumentID)
		assert.Equal(t, domain.JobStatusPending, job.Status)
		assert.Equal(t, domain.JobTypeDocumentConversion, job.JobType)
		assert.Equal(t, 0, job.Progress)
		assert.Nil(t, job.StartedAt)
		assert.Nil(t, job.CompletedAt)
		assert.Nil(t, job.ResultDocumentID)
		assert.False(t, job.CreatedAt.IsZero())
	})

	t.Run("rejects empty user ID", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewProcessingJob(uuid.Nil, docID, domain.SourceTypeFile, "/tmp/x")
		assert.ErrorIs(t, err, domain.ErrEmptyJobUserID)
	})

	t.Run("rejects empty document ID", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewProcessingJob(userID, uuid.Nil, domain.SourceTypeFile, "/tmp/x")
		assert.ErrorIs(t, err, domain.ErrEmptyJobDocumentID)
	})

	t.Run("rejects invalid source type", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewProcessingJob(userID, docID, domain.SourceType("carrier-pigeon"), "")
		assert.ErrorIs(t, err, domain.ErrInvalidSourceType)
	})
}

func TestProcessingJobValidate(t *testing.T) {
	t.Parallel()

	newValidJob := func() *domain.ProcessingJob {
		job, err := domain.NewProcessingJob(uuid.New(), uuid.New(), domain.SourceTypeURL, "https://example.com/a")
		require.NoError(t, err)
		return job
	}

	t.Run("rejects out-of-range progress", func(t *testing.T) {
		t.Parallel()

		job := newValidJob()
		job.Progress = 101
		assert.ErrorIs(t, job.Validate(), domain.ErrInvalidProgress)

		job.Progress = -1
		assert.ErrorIs(t, job.Validate(), domain.ErrInvalidProgress)
	})

	t.Run("rejects invalid status", func(t *testing.T) {
		t.Parallel()

		job := newValidJob()
		job.Status = domain.JobStatus("paused")
		assert.ErrorIs(t, job.Validate(), domain.ErrInvalidJobStatus)
	})
}

func TestCanTransitionTo(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from    domain.JobStatus
		to      domain.JobStatus
		allowed bool
	}{
		{domain.JobStatusPending, domain.JobStatusProcessing, true},
		{domain.JobStatusPending, domain.JobStatusFailed, true},
		{domain.JobStatusPending, domain.JobStatusCompleted, false},
		{domain.JobStatusPending, domain.JobStatusPending, false},

		{domain.JobStatusProcessing, domain.JobStatusCompleted, true},
		{domain.JobStatusProcessing, domain.JobStatusFailed, true},
		{domain.JobStatusProcessing, domain.JobStatusPending, false},
		{domain.JobStatusProcessing, domain.JobStatusProcessing, false},

		{domain.JobStatusFailed, domain.JobStatusPending, true},
		{domain.JobStatusFailed, domain.JobStatusProcessing, false},
		{domain.JobStatusFailed, domain.JobStatusCompleted, false},
		{domain.JobStatusFailed, domain.JobStatusFailed, false},

		{domain.JobStatusCompleted, domain.JobStatusPending, false},
		{domain.JobStatusCompleted, domain.JobStatusProcessing, false},
		{domain.JobStatusCompleted, domain.JobStatusFailed, false},
		{domain.JobStatusCompleted, domain.JobStatusCompleted, false},
	}

	for _, tc := range cases {
		job := &domain.ProcessingJob{Status: tc.from}
		assert.Equal(t, tc.allowed, job.CanTransitionTo(tc.to),
			"%s -> %s should be %v", tc.from, tc.to, tc.allowed)
	}
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, (&domain.ProcessingJob{Status: domain.JobStatusPending}).IsTerminal())
	assert.False(t, (&domain.ProcessingJob{Status: domain.JobStatusProcessing}).IsTerminal())
	assert.True(t, (&domain.ProcessingJob{Status: domain.JobStatusCompleted}).IsTerminal())
	assert.True(t, (&domain.ProcessingJob{Status: domain.JobStatusFailed}).IsTerminal())
}
