package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/store"
	"github.com/google/uuid"
)

// List pagination bounds.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// cancelledMessage is the cancellation-specific error message recorded on
// a cancelled job.
const cancelledMessage = "cancelled by user"

// JobService is the status query and control surface consumed by polling
// clients. All reads are side-effect-free.
type JobService interface {
	// ListJobs returns the user's jobs ordered by created_at descending.
	ListJobs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ProcessingJob, error)

	// GetJobStats returns per-status counts and the mean processing time
	// over completed jobs (zero, not an error, when there are none).
	GetJobStats(ctx context.Context, userID uuid.UUID) (*domain.JobStats, error)

	// GetJob retrieves a single job by ID.
	GetJob(ctx context.Context, id uuid.UUID) (*domain.ProcessingJob, error)

	// GetDocumentProcessingStatus returns the most relevant job for a
	// document, or ErrJobNotFound if no job is associated.
	GetDocumentProcessingStatus(ctx context.Context, documentID uuid.UUID) (*domain.ProcessingJob, error)

	// RetryJob resets a failed job to pending (same job ID, error message
	// and progress cleared) and re-enqueues it.
	RetryJob(ctx context.Context, id uuid.UUID) error

	// CancelJob moves a pending or processing job to failed with a
	// cancellation message. For a processing job this is cooperative: the
	// in-flight worker context is cut and the worker observes the
	// cancellation at its next checkpoint.
	CancelJob(ctx context.Context, id uuid.UUID) error

	// DeleteJob removes a job in any state. A processing job is cancelled
	// first, explicitly, before the row is removed. The job's document is
	// never deleted.
	DeleteJob(ctx context.Context, id uuid.UUID) error
}

// jobServiceImpl implements the JobService interface.
type jobServiceImpl struct {
	jobStore store.JobStore
	enqueuer JobEnqueuer
	logger   *slog.Logger
}

// NewJobService creates a new JobService.
func NewJobService(
	jobStore store.JobStore,
	enqueuer JobEnqueuer,
	logger *slog.Logger,
) (JobService, error) {
	if jobStore == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "jobStore cannot be nil"}
	}
	if enqueuer == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "enqueuer cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &jobServiceImpl{
		jobStore: jobStore,
		enqueuer: enqueuer,
		logger:   logger.With("component", "job_service"),
	}, nil
}

// ListJobs implements JobService.ListJobs
func (s *jobServiceImpl) ListJobs(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.ProcessingJob, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := s.jobStore.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, &ServiceError{Operation: "list_jobs", Message: "failed to list jobs", Err: err}
	}
	return jobs, nil
}

// GetJobStats implements JobService.GetJobStats
func (s *jobServiceImpl) GetJobStats(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.JobStats, error) {
	stats, err := s.jobStore.Stats(ctx, userID)
	if err != nil {
		return nil, &ServiceError{Operation: "get_job_stats", Message: "failed to compute stats", Err: err}
	}
	return stats, nil
}

// GetJob implements JobService.GetJob
func (s *jobServiceImpl) GetJob(ctx context.Context, id uuid.UUID) (*domain.ProcessingJob, error) {
	job, err := s.jobStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, &ServiceError{Operation: "get_job", Message: "failed to retrieve job", Err: err}
	}
	return job, nil
}

// GetDocumentProcessingStatus implements JobService.GetDocumentProcessingStatus
func (s *jobServiceImpl) GetDocumentProcessingStatus(
	ctx context.Context,
	documentID uuid.UUID,
) (*domain.ProcessingJob, error) {
	job, err := s.jobStore.GetByDocumentID(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, &ServiceError{Operation: "get_document_processing_status", Message: "failed to look up job", Err: err}
	}
	return job, nil
}

// RetryJob implements JobService.RetryJob
func (s *jobServiceImpl) RetryJob(ctx context.Context, id uuid.UUID) error {
	if err := s.jobStore.Retry(ctx, id); err != nil {
		return s.mapControlError("retry_job", err)
	}

	if err := s.enqueuer.Enqueue(id); err != nil {
		// The job is pending again; the monitor sweep will offer it.
		s.logger.Warn("job queue full after retry, deferring to monitor sweep",
			"job_id", id,
			"error", err)
	}

	s.logger.Info("job retried", "job_id", id)
	return nil
}

// CancelJob implements JobService.CancelJob
func (s *jobServiceImpl) CancelJob(ctx context.Context, id uuid.UUID) error {
	if err := s.jobStore.Cancel(ctx, id, cancelledMessage); err != nil {
		return s.mapControlError("cancel_job", err)
	}

	if s.enqueuer.CancelRunning(id) {
		s.logger.Info("cancellation signalled to in-flight worker", "job_id", id)
	}

	s.logger.Info("job cancelled", "job_id", id)
	return nil
}

// DeleteJob implements JobService.DeleteJob
func (s *jobServiceImpl) DeleteJob(ctx context.Context, id uuid.UUID) error {
	job, err := s.jobStore.GetByID(ctx, id)
	if err != nil {
		return s.mapControlError("delete_job", err)
	}

	if job.Status == domain.JobStatusProcessing {
		// Explicit cancel-before-delete; racing workers finalizing at the
		// same moment only turn this into a harmless no-op.
		if err := s.jobStore.Cancel(ctx, id, cancelledMessage); err != nil &&
			!errors.Is(err, store.ErrInvalidTransition) {
			return s.mapControlError("delete_job", err)
		}
		s.enqueuer.CancelRunning(id)
	}

	if err := s.jobStore.Delete(ctx, id); err != nil {
		return s.mapControlError("delete_job", err)
	}

	s.logger.Info("job deleted", "job_id", id)
	return nil
}

// mapControlError converts store sentinels to service sentinels for the
// control operations.
func (s *jobServiceImpl) mapControlError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		return ErrJobNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		return ErrInvalidJobState
	default:
		return &ServiceError{Operation: op, Message: "job store operation failed", Err: err}
	}
}
