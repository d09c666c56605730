package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a processing job.
type JobStatus string

// Possible job status values. Completed and failed are terminal:
// no further automatic transition except an explicit retry from failed.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// SourceType identifies where a job's input comes from.
type SourceType string

// Possible job source types
const (
	SourceTypeFile SourceType = "file"
	SourceTypeURL  SourceType = "url"
	SourceTypeData SourceType = "data"
)

// Job type constants
const (
	// JobTypeDocumentConversion is the job type for converting a submitted
	// source (file, URL or raw data) into document content.
	JobTypeDocumentConversion = "document_conversion"
)

// Common validation errors for ProcessingJob
var (
	ErrEmptyJobID         = errors.New("job ID cannot be empty")
	ErrEmptyJobUserID     = errors.New("job user ID cannot be empty")
	ErrEmptyJobDocumentID = errors.New("job document ID cannot be empty")
	ErrInvalidJobStatus   = errors.New("invalid job status")
	ErrInvalidSourceType  = errors.New("invalid job source type")
	ErrInvalidProgress    = errors.New("progress must be between 0 and 100")
)

// ProcessingJob represents one background conversion/ingestion operation
// tied loosely to a document. DocumentID is the conventional target link
// shared at creation; ResultDocumentID is the authoritative link, set only
// when the job completes successfully.
type ProcessingJob struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	JobType          string     `json:"job_type"`
	Status           JobStatus  `json:"status"`
	SourceType       SourceType `json:"source_type"`
	SourcePath       string     `json:"source_path,omitempty"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	Method           string     `json:"method,omitempty"`
	Title            string     `json:"title,omitempty"`
	Tags             []string   `json:"tags"`
	CategoryID       *uuid.UUID `json:"category_id,omitempty"`
	DocumentID       uuid.UUID  `json:"document_id"`
	Progress         int        `json:"progress"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	ResultDocumentID *uuid.UUID `json:"result_document_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// NewProcessingJob creates a pending conversion job targeting the given
// document. It generates a new UUID and sets the creation timestamp.
// Returns an error if validation fails.
func NewProcessingJob(
	userID uuid.UUID,
	documentID uuid.UUID,
	sourceType SourceType,
	sourcePath string,
) (*ProcessingJob, error) {
	job := &ProcessingJob{
		ID:         uuid.New(),
		UserID:     userID,
		JobType:    JobTypeDocumentConversion,
		Status:     JobStatusPending,
		SourceType: sourceType,
		SourcePath: sourcePath,
		Tags:       []string{},
		DocumentID: documentID,
		Progress:   0,
		CreatedAt:  time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the ProcessingJob has valid data.
// Returns an error if any field fails validation.
func (j *ProcessingJob) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.UserID == uuid.Nil {
		return ErrEmptyJobUserID
	}

	if j.DocumentID == uuid.Nil {
		return ErrEmptyJobDocumentID
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if !isValidSourceType(j.SourceType) {
		return ErrInvalidSourceType
	}

	if j.Progress < 0 || j.Progress > 100 {
		return ErrInvalidProgress
	}

	return nil
}

// IsTerminal reports whether the job is in a terminal state.
func (j *ProcessingJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// CanTransitionTo reports whether moving from the job's current status to
// the target status is a legal state machine transition. The full table:
//
//	pending    -> processing (claim), failed (cancel)
//	processing -> completed (succeed), failed (fail/cancel)
//	failed     -> pending (retry)
//	completed  -> (terminal)
func (j *ProcessingJob) CanTransitionTo(target JobStatus) bool {
	switch j.Status {
	case JobStatusPending:
		return target == JobStatusProcessing || target == JobStatusFailed
	case JobStatusProcessing:
		return target == JobStatusCompleted || target == JobStatusFailed
	case JobStatusFailed:
		return target == JobStatusPending
	default:
		return false
	}
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// isValidSourceType checks if the given type is a valid SourceType.
func isValidSourceType(sourceType SourceType) bool {
	switch sourceType {
	case SourceTypeFile, SourceTypeURL, SourceTypeData:
		return true
	default:
		return false
	}
}

// JobStats summarizes the job table for the polling status surface.
// AverageProcessingTime is the mean of completed_at - started_at over
// completed jobs only, and zero when there are none.
type JobStats struct {
	Total                 int           `json:"total"`
	Pending               int           `json:"pending"`
	Processing            int           `json:"processing"`
	Completed             int           `json:"completed"`
	Failed                int           `json:"failed"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
}
