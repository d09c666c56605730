package mocks_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/mocks"
	"github.com/fennwick/docshelf/internal/store"
)

func newPendingJob(t *testing.T, s store.JobStore, userID uuid.UUID) *domain.ProcessingJob {
	t.Helper()

	job, err := domain.NewProcessingJob(userID, uuid.New(), domain.SourceTypeFile, "/tmp/upload")
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), job))
	return job
}

func TestClaimIsMutuallyExclusive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mocks.NewMemJobStore()
	job := newPendingJob(t, s, uuid.New())

	const workers = 16
	var wg sync.WaitGroup
	successes := make(chan *domain.ProcessingJob, workers)
	conflicts := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.Claim(ctx, job.ID)
			if err != nil {
				conflicts <- err
				return
			}
			successes <- claimed
		}()
	}
	wg.Wait()
	close(successes)
	close(conflicts)

	assert.Len(t, successes, 1, "exactly one worker must win the claim")
	assert.Len(t, conflicts, workers-1)
	for err := range conflicts {
		assert.ErrorIs(t, err, store.ErrJobClaimed)
	}

	winner := <-successes
	assert.Equal(t, domain.JobStatusProcessing, winner.Status)
	assert.NotNil(t, winner.StartedAt)
}

func TestClaimErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mocks.NewMemJobStore()

	t.Run("unknown job", func(t *testing.T) {
		_, err := s.Claim(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	t.Run("terminal job", func(t *testing.T) {
		job := newPendingJob(t, s, uuid.New())
		_, err := s.Claim(ctx, job.ID)
		require.NoError(t, err)
		require.NoError(t, s.MarkFailed(ctx, job.ID, "boom"))

		_, err = s.Claim(ctx, job.ID)
		assert.ErrorIs(t, err, store.ErrInvalidTransition)
	})
}

func TestProgressIsMonotonicAndGuarded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mocks.NewMemJobStore()
	job := newPendingJob(t, s, uuid.New())

	// Progress before claiming is rejected.
	assert.ErrorIs(t, s.UpdateProgress(ctx, job.ID, 10), store.ErrProgressNotAllowed)

	_, err := s.Claim(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, s.UpdateProgress(ctx, job.ID, 60))
	require.NoError(t, s.UpdateProgress(ctx, job.ID, 30)) // stale checkpoint, ignored
	require.NoError(t, s.UpdateProgress(ctx, job.ID, 250))

	got, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress, "progress clamps to 100 and never decreases")
}

func TestTransitionLegality(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("completed job cannot be retried or cancelled", func(t *testing.T) {
		t.Parallel()

		s := mocks.NewMemJobStore()
		job := newPendingJob(t, s, uuid.New())
		_, err := s.Claim(ctx, job.ID)
		require.NoError(t, err)
		require.NoError(t, s.MarkCompleted(ctx, job.ID, job.DocumentID))

		assert.ErrorIs(t, s.Retry(ctx, job.ID), store.ErrInvalidTransition)
		assert.ErrorIs(t, s.Cancel(ctx, job.ID, "late cancel"), store.ErrInvalidTransition)
	})

	t.Run("pending job cannot be completed", func(t *testing.T) {
		t.Parallel()

		s := mocks.NewMemJobStore()
		job := newPendingJob(t, s, uuid.New())
		assert.ErrorIs(t, s.MarkCompleted(ctx, job.ID, job.DocumentID), store.ErrInvalidTransition)
	})

	t.Run("retry resets a failed job in place", func(t *testing.T) {
		t.Parallel()

		s := mocks.NewMemJobStore()
		job := newPendingJob(t, s, uuid.New())
		_, err := s.Claim(ctx, job.ID)
		require.NoError(t, err)
		require.NoError(t, s.UpdateProgress(ctx, job.ID, 40))
		require.NoError(t, s.MarkFailed(ctx, job.ID, "conversion exploded"))

		require.NoError(t, s.Retry(ctx, job.ID))

		got, err := s.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID, "retry reuses the same job")
		assert.Equal(t, domain.JobStatusPending, got.Status)
		assert.Empty(t, got.ErrorMessage)
		assert.Equal(t, 0, got.Progress)
		assert.Nil(t, got.StartedAt)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("cancel works from pending and processing", func(t *testing.T) {
		t.Parallel()

		s := mocks.NewMemJobStore()

		pending := newPendingJob(t, s, uuid.New())
		require.NoError(t, s.Cancel(ctx, pending.ID, "cancelled by user"))
		got, err := s.GetByID(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, got.Status)
		assert.Equal(t, "cancelled by user", got.ErrorMessage)

		processing := newPendingJob(t, s, uuid.New())
		_, err = s.Claim(ctx, processing.ID)
		require.NoError(t, err)
		require.NoError(t, s.Cancel(ctx, processing.ID, "cancelled by user"))
	})
}

func TestReleaseStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mocks.NewMemJobStore()

	fresh := newPendingJob(t, s, uuid.New())
	_, err := s.Claim(ctx, fresh.ID)
	require.NoError(t, err)

	t.Run("zero age releases every processing job", func(t *testing.T) {
		released, err := s.ReleaseStale(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{fresh.ID}, released)

		got, err := s.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusPending, got.Status)
		assert.Equal(t, 0, got.Progress)
	})

	t.Run("nonzero age spares recent claims", func(t *testing.T) {
		_, err := s.Claim(ctx, fresh.ID)
		require.NoError(t, err)

		released, err := s.ReleaseStale(ctx, time.Hour)
		require.NoError(t, err)
		assert.Empty(t, released)

		got, err := s.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, got.Status)
	})
}

func TestStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mocks.NewMemJobStore()
	userID := uuid.New()

	t.Run("zero jobs yields zeroes, not an error", func(t *testing.T) {
		stats, err := s.Stats(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Total)
		assert.Equal(t, time.Duration(0), stats.AverageProcessingTime)
	})

	t.Run("counts are scoped per user", func(t *testing.T) {
		mine := newPendingJob(t, s, userID)
		_, err := s.Claim(ctx, mine.ID)
		require.NoError(t, err)
		require.NoError(t, s.MarkCompleted(ctx, mine.ID, mine.DocumentID))

		failed := newPendingJob(t, s, userID)
		_, err = s.Claim(ctx, failed.ID)
		require.NoError(t, err)
		require.NoError(t, s.MarkFailed(ctx, failed.ID, "boom"))

		newPendingJob(t, s, uuid.New()) // someone else's job

		stats, err := s.Stats(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, 0, stats.Pending)
	})
}

func TestGetByDocumentID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mocks.NewMemJobStore()
	userID := uuid.New()
	docID := uuid.New()

	t.Run("no job associated", func(t *testing.T) {
		_, err := s.GetByDocumentID(ctx, docID)
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	t.Run("returns the latest job for the document", func(t *testing.T) {
		first, err := domain.NewProcessingJob(userID, docID, domain.SourceTypeURL, "https://example.com/a")
		require.NoError(t, err)
		first.CreatedAt = time.Now().UTC().Add(-time.Hour)
		require.NoError(t, s.Create(ctx, first))

		second, err := domain.NewProcessingJob(userID, docID, domain.SourceTypeURL, "https://example.com/a")
		require.NoError(t, err)
		require.NoError(t, s.Create(ctx, second))

		got, err := s.GetByDocumentID(ctx, docID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
	})
}
