package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/fennwick/docshelf/internal/domain"
	"github.com/google/uuid"
)

// JobStore defines the interface for processing job persistence and is the
// single owner of the job state machine. Callers never mutate a job's
// status directly: every transition goes through one of the methods below,
// each of which enforces the legal transitions atomically.
type JobStore interface {
	// Create saves a new pending job to the store.
	Create(ctx context.Context, job *domain.ProcessingJob) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingJob, error)

	// Claim atomically transitions a job from pending to processing and
	// sets started_at, returning the claimed job. If two workers race on
	// the same job, exactly one succeeds; the loser gets ErrJobClaimed.
	// Returns ErrJobNotFound for unknown IDs and ErrInvalidTransition when
	// the job is in a terminal state.
	Claim(ctx context.Context, id uuid.UUID) (*domain.ProcessingJob, error)

	// UpdateProgress records conversion progress for a processing job.
	// Percent is clamped to [0,100] and progress never decreases within a
	// single processing period. Returns ErrProgressNotAllowed when the job
	// is not currently processing.
	UpdateProgress(ctx context.Context, id uuid.UUID, percent int) error

	// MarkCompleted transitions a job from processing to completed, setting
	// completed_at, progress=100 and the authoritative result document link.
	// The error message is reset to the empty string, never NULL.
	MarkCompleted(ctx context.Context, id uuid.UUID, resultDocumentID uuid.UUID) error

	// MarkFailed transitions a job from processing to failed, setting
	// completed_at and the error message.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error

	// Cancel transitions a pending or processing job to failed with a
	// cancellation-specific error message. Cancelling a processing job is
	// cooperative: the worker observes it at its next checkpoint.
	Cancel(ctx context.Context, id uuid.UUID, errorMessage string) error

	// Retry transitions a failed job back to pending, clearing the error
	// message, progress and run timestamps. The job keeps its ID and
	// creation time. Returns ErrInvalidTransition for non-failed jobs.
	Retry(ctx context.Context, id uuid.UUID) error

	// Delete removes the job row. Permitted from any state; callers must
	// cancel a processing job first (the job service does this explicitly).
	// Deleting a job never deletes its document.
	Delete(ctx context.Context, id uuid.UUID) error

	// List retrieves a user's jobs ordered by created_at descending.
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ProcessingJob, error)

	// GetByDocumentID returns the most recently created job targeting the
	// given document, or ErrJobNotFound if none is associated.
	GetByDocumentID(ctx context.Context, documentID uuid.UUID) (*domain.ProcessingJob, error)

	// FindByStatus retrieves jobs with the given status, oldest first.
	// A limit of zero or less means no limit. Used by the worker runner
	// for startup recovery and re-sweeps.
	FindByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.ProcessingJob, error)

	// ReleaseStale flips processing jobs whose claim is older than the
	// given age back to pending, resetting progress, and returns their IDs
	// so the runner can re-enqueue them. An age of zero releases every
	// processing job (startup crash recovery).
	ReleaseStale(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error)

	// Stats returns per-status counts and the mean processing duration
	// over completed jobs (zero when there are none).
	Stats(ctx context.Context, userID uuid.UUID) (*domain.JobStats, error)

	// WithTx returns a new JobStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) JobStore
}
