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

// jobColumns is the column list shared by every job select/returning clause.
const jobColumns = `id, user_id, job_type, status, source_type, source_path,
	original_filename, method, title, tags, category_id, document_id, progress,
	error_message, result_document_id, created_at, started_at, completed_at`

// PostgresJobStore implements the store.JobStore interface using a
// PostgreSQL database as the storage backend. Every state transition is a
// single conditional UPDATE guarded by the current status, which makes the
// transitions atomic under concurrent workers without explicit locking.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the
// JobStore interface. If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// WithTx implements store.JobStore.WithTx
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.JobStore.Create
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.ProcessingJob) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return err
	}

	tags, err := json.Marshal(job.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal job tags: %w", err)
	}

	query := `
		INSERT INTO processing_jobs (id, user_id, job_type, status, source_type,
			source_path, original_filename, method, title, tags, category_id,
			document_id, progress, error_message, result_document_id, created_at,
			started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.UserID,
		job.JobType,
		job.Status,
		job.SourceType,
		job.SourcePath,
		job.OriginalFilename,
		job.Method,
		job.Title,
		tags,
		job.CategoryID,
		job.DocumentID,
		job.Progress,
		job.ErrorMessage,
		job.ResultDocumentID,
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
	)

	if err != nil {
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}

	log.Debug("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("document_id", job.DocumentID.String()),
		slog.String("source_type", string(job.SourceType)))
	return nil
}

// GetByID implements store.JobStore.GetByID
func (s *PostgresJobStore) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*domain.ProcessingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}

	return job, nil
}

// Claim implements store.JobStore.Claim. The conditional update is the
// compare-and-swap: only a row still in pending status is moved, so of any
// number of racing workers exactly one sees the row returned.
func (s *PostgresJobStore) Claim(
	ctx context.Context,
	id uuid.UUID,
) (*domain.ProcessingJob, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE processing_jobs
		SET status = $2, started_at = $3, progress = 0
		WHERE id = $1 AND status = $4
		RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRowContext(
		ctx,
		query,
		id,
		domain.JobStatusProcessing,
		time.Now().UTC(),
		domain.JobStatusPending,
	))
	if err == nil {
		log.Debug("job claimed", slog.String("job_id", id.String()))
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, MapError(err)
	}

	// The swap failed; inspect the row to report why.
	current, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status == domain.JobStatusProcessing {
		return nil, store.ErrJobClaimed
	}
	return nil, fmt.Errorf("%w: cannot claim %s job", store.ErrInvalidTransition, current.Status)
}

// UpdateProgress implements store.JobStore.UpdateProgress. Percent is
// clamped to [0,100]; GREATEST keeps progress monotonic even if reports
// arrive out of order.
func (s *PostgresJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	query := `
		UPDATE processing_jobs
		SET progress = GREATEST(progress, $2)
		WHERE id = $1 AND status = $3
	`
	result, err := s.db.ExecContext(ctx, query, id, percent, domain.JobStatusProcessing)
	if err != nil {
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return store.ErrProgressNotAllowed
	}

	return nil
}

// MarkCompleted implements store.JobStore.MarkCompleted
func (s *PostgresJobStore) MarkCompleted(
	ctx context.Context,
	id uuid.UUID,
	resultDocumentID uuid.UUID,
) error {
	query := `
		UPDATE processing_jobs
		SET status = $2, completed_at = $3, progress = 100,
			result_document_id = $4, error_message = ''
		WHERE id = $1 AND status = $5
	`
	return s.transition(ctx, "complete", query,
		id, domain.JobStatusCompleted, time.Now().UTC(), resultDocumentID,
		domain.JobStatusProcessing)
}

// MarkFailed implements store.JobStore.MarkFailed
func (s *PostgresJobStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE processing_jobs
		SET status = $2, completed_at = $3, error_message = $4
		WHERE id = $1 AND status = $5
	`
	return s.transition(ctx, "fail", query,
		id, domain.JobStatusFailed, time.Now().UTC(), errorMessage,
		domain.JobStatusProcessing)
}

// Cancel implements store.JobStore.Cancel
func (s *PostgresJobStore) Cancel(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE processing_jobs
		SET status = $2, completed_at = $3, error_message = $4
		WHERE id = $1 AND status IN ($5, $6)
	`
	return s.transition(ctx, "cancel", query,
		id, domain.JobStatusFailed, time.Now().UTC(), errorMessage,
		domain.JobStatusPending, domain.JobStatusProcessing)
}

// Retry implements store.JobStore.Retry. The job keeps its ID and creation
// time; error message, progress and run timestamps are cleared.
func (s *PostgresJobStore) Retry(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE processing_jobs
		SET status = $2, progress = 0, error_message = '',
			started_at = NULL, completed_at = NULL, result_document_id = NULL
		WHERE id = $1 AND status = $3
	`
	return s.transition(ctx, "retry", query,
		id, domain.JobStatusPending, domain.JobStatusFailed)
}

// transition runs a guarded status update and converts a zero-row result
// into ErrJobNotFound or ErrInvalidTransition.
func (s *PostgresJobStore) transition(
	ctx context.Context,
	op string,
	query string,
	id uuid.UUID,
	args ...any,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	queryArgs := append([]any{id}, args...)
	result, err := s.db.ExecContext(ctx, query, queryArgs...)
	if err != nil {
		log.Error("job transition failed",
			slog.String("op", op),
			slog.String("job_id", id.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: cannot %s %s job", store.ErrInvalidTransition, op, current.Status)
	}

	log.Debug("job transition applied",
		slog.String("op", op),
		slog.String("job_id", id.String()))
	return nil
}

// Delete implements store.JobStore.Delete
func (s *PostgresJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM processing_jobs WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrJobNotFound
	}

	return nil
}

// List implements store.JobStore.List
func (s *PostgresJobStore) List(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.ProcessingJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM processing_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return s.queryJobs(ctx, query, userID, limit, offset)
}

// GetByDocumentID implements store.JobStore.GetByDocumentID
func (s *PostgresJobStore) GetByDocumentID(
	ctx context.Context,
	documentID uuid.UUID,
) (*domain.ProcessingJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM processing_jobs
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	job, err := scanJob(s.db.QueryRowContext(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}

	return job, nil
}

// FindByStatus implements store.JobStore.FindByStatus. Jobs come back
// oldest first so the runner preserves FIFO submission order.
func (s *PostgresJobStore) FindByStatus(
	ctx context.Context,
	status domain.JobStatus,
	limit int,
) ([]*domain.ProcessingJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM processing_jobs
		WHERE status = $1
		ORDER BY created_at ASC
	`
	if limit > 0 {
		return s.queryJobs(ctx, query+` LIMIT $2`, status, limit)
	}
	return s.queryJobs(ctx, query, status)
}

// ReleaseStale implements store.JobStore.ReleaseStale
func (s *PostgresJobStore) ReleaseStale(
	ctx context.Context,
	olderThan time.Duration,
) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE processing_jobs
		SET status = $1, progress = 0, started_at = NULL
		WHERE status = $2 AND ($3 OR started_at < $4)
		RETURNING id
	`
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.db.QueryContext(
		ctx,
		query,
		domain.JobStatusPending,
		domain.JobStatusProcessing,
		olderThan == 0,
		cutoff,
	)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan released job id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating released jobs: %w", err)
	}

	if len(ids) > 0 {
		log.Info("released stale processing jobs", slog.Int("count", len(ids)))
	}
	return ids, nil
}

// Stats implements store.JobStore.Stats
func (s *PostgresJobStore) Stats(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.JobStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(
				AVG(EXTRACT(EPOCH FROM (completed_at - started_at)))
					FILTER (WHERE status = 'completed'),
				0
			)
		FROM processing_jobs
		WHERE user_id = $1
	`

	var stats domain.JobStats
	var avgSeconds float64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Processing,
		&stats.Completed,
		&stats.Failed,
		&avgSeconds,
	)
	if err != nil {
		return nil, MapError(err)
	}

	stats.AverageProcessingTime = time.Duration(avgSeconds * float64(time.Second))
	return &stats, nil
}

// queryJobs runs a multi-row job query and scans the results.
func (s *PostgresJobStore) queryJobs(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.ProcessingJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []*domain.ProcessingJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob scans one job row into a domain.ProcessingJob.
func scanJob(row rowScanner) (*domain.ProcessingJob, error) {
	var job domain.ProcessingJob
	var tags []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.JobType,
		&job.Status,
		&job.SourceType,
		&job.SourcePath,
		&job.OriginalFilename,
		&job.Method,
		&job.Title,
		&tags,
		&job.CategoryID,
		&job.DocumentID,
		&job.Progress,
		&job.ErrorMessage,
		&job.ResultDocumentID,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	job.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &job.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job tags: %w", err)
		}
	}

	return &job, nil
}
