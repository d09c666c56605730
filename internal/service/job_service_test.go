package service_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/mocks"
	"github.com/fennwick/docshelf/internal/service"
	"github.com/fennwick/docshelf/internal/store"
)

type jobFixture struct {
	svc      service.JobService
	jobs     *mocks.MemJobStore
	enqueuer *fakeEnqueuer
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()

	jobs := mocks.NewMemJobStore()
	enqueuer := &fakeEnqueuer{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	svc, err := service.NewJobService(jobs, enqueuer, logger)
	require.NoError(t, err)

	return &jobFixture{svc: svc, jobs: jobs, enqueuer: enqueuer}
}

func (f *jobFixture) seedJob(t *testing.T, userID uuid.UUID, status domain.JobStatus) *domain.ProcessingJob {
	t.Helper()

	ctx := context.Background()
	job, err := domain.NewProcessingJob(userID, uuid.New(), domain.SourceTypeFile, "/tmp/upload")
	require.NoError(t, err)
	require.NoError(t, f.jobs.Create(ctx, job))

	switch status {
	case domain.JobStatusPending:
	case domain.JobStatusProcessing:
		_, err = f.jobs.Claim(ctx, job.ID)
		require.NoError(t, err)
	case domain.JobStatusCompleted:
		_, err = f.jobs.Claim(ctx, job.ID)
		require.NoError(t, err)
		require.NoError(t, f.jobs.MarkCompleted(ctx, job.ID, job.DocumentID))
	case domain.JobStatusFailed:
		_, err = f.jobs.Claim(ctx, job.ID)
		require.NoError(t, err)
		require.NoError(t, f.jobs.MarkFailed(ctx, job.ID, "boom"))
	}

	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, status, got.Status)
	return got
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newJobFixture(t)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		f.seedJob(t, userID, domain.JobStatusPending)
	}
	f.seedJob(t, uuid.New(), domain.JobStatusPending) // other user

	jobs, err := f.svc.ListJobs(ctx, userID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 3, "defaults apply and listing is scoped to the user")

	jobs, err = f.svc.ListJobs(ctx, userID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestGetJobStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newJobFixture(t)
	userID := uuid.New()

	stats, err := f.svc.GetJobStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total, "empty stats are zeroes, not an error")

	f.seedJob(t, userID, domain.JobStatusCompleted)
	f.seedJob(t, userID, domain.JobStatusFailed)
	f.seedJob(t, userID, domain.JobStatusPending)

	stats, err = f.svc.GetJobStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Pending)
}

func TestGetDocumentProcessingStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newJobFixture(t)

	job := f.seedJob(t, uuid.New(), domain.JobStatusProcessing)

	got, err := f.svc.GetDocumentProcessingStatus(ctx, job.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = f.svc.GetDocumentProcessingStatus(ctx, uuid.New())
	assert.ErrorIs(t, err, service.ErrJobNotFound)
}

func TestRetryJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("failed job returns to pending and is re-enqueued", func(t *testing.T) {
		t.Parallel()
		f := newJobFixture(t)
		job := f.seedJob(t, uuid.New(), domain.JobStatusFailed)

		require.NoError(t, f.svc.RetryJob(ctx, job.ID))

		got, err := f.jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusPending, got.Status)
		assert.Empty(t, got.ErrorMessage)
		assert.Equal(t, []uuid.UUID{job.ID}, f.enqueuer.offers())
	})

	t.Run("only failed jobs are retryable", func(t *testing.T) {
		t.Parallel()
		f := newJobFixture(t)

		for _, status := range []domain.JobStatus{
			domain.JobStatusPending,
			domain.JobStatusProcessing,
			domain.JobStatusCompleted,
		} {
			job := f.seedJob(t, uuid.New(), status)
			assert.ErrorIs(t, f.svc.RetryJob(ctx, job.ID), service.ErrInvalidJobState,
				"retry from %s must be rejected", status)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		t.Parallel()
		f := newJobFixture(t)
		assert.ErrorIs(t, f.svc.RetryJob(ctx, uuid.New()), service.ErrJobNotFound)
	})

	t.Run("full queue leaves the job pending", func(t *testing.T) {
		t.Parallel()
		f := newJobFixture(t)
		job := f.seedJob(t, uuid.New(), domain.JobStatusFailed)
		f.enqueuer.full = true

		require.NoError(t, f.svc.RetryJob(ctx, job.ID))

		got, err := f.jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusPending, got.Status)
	})
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("pending job is cancelled immediately", func(t *testing.T) {
		t.Parallel()
		f := newJobFixture(t)
		job := f.seedJob(t, uuid.New(), domain.JobStatusPending)

		require.NoError(t, f.svc.CancelJob(ctx, job.ID))

		got, err := f.jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, got.Status)
		assert.Equal(t, "cancelled by user", got.ErrorMessage)
	})

	t.Run("processing job is cancelled cooperatively", func(t *testing.T) {
		t.Parallel()
		f := newJobFixture(t)
		job := f.seedJob(t, uuid.New(), domain.JobStatusProcessing)

		require.NoError(t, f.svc.CancelJob(ctx, job.ID))

		got, err := f.jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, got.Status)
		assert.Contains(t, f.enqueuer.canceled, job.ID, "the in-flight worker must be signalled")
	})

	t.Run("terminal jobs cannot be cancelled", func(t *testing.T) {
		t.Parallel()
		f := newJobFixture(t)

		completed := f.seedJob(t, uuid.New(), domain.JobStatusCompleted)
		assert.ErrorIs(t, f.svc.CancelJob(ctx, completed.ID), service.ErrInvalidJobState)

		failed := f.seedJob(t, uuid.New(), domain.JobStatusFailed)
		assert.ErrorIs(t, f.svc.CancelJob(ctx, failed.ID), service.ErrInvalidJobState)
	})
}

func TestDeleteJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("deletes jobs in terminal and pending states", func(t *testing.T) {
		t.Parallel()
		f := newJobFixture(t)

		for _, status := range []domain.JobStatus{
			domain.JobStatusPending,
			domain.JobStatusCompleted,
			domain.JobStatusFailed,
		} {
			job := f.seedJob(t, uuid.New(), status)
			require.NoError(t, f.svc.DeleteJob(ctx, job.ID))

			_, err := f.jobs.GetByID(ctx, job.ID)
			assert.ErrorIs(t, err, store.ErrJobNotFound)
		}
	})

	t.Run("processing job is cancelled before deletion", func(t *testing.T) {
		t.Parallel()
		f := newJobFixture(t)
		job := f.seedJob(t, uuid.New(), domain.JobStatusProcessing)

		require.NoError(t, f.svc.DeleteJob(ctx, job.ID))

		assert.Contains(t, f.enqueuer.canceled, job.ID)
		_, err := f.jobs.GetByID(ctx, job.ID)
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	t.Run("unknown job", func(t *testing.T) {
		t.Parallel()
		f := newJobFixture(t)
		assert.ErrorIs(t, f.svc.DeleteJob(ctx, uuid.New()), service.ErrJobNotFound)
	})
}
