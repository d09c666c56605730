package api

import (
	"time"

	"github.com/fennwick/docshelf/internal/domain"
	"github.com/google/uuid"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Token  string    `json:"token"`
}

// ImportTextRequest defines the payload for the synchronous text import
// endpoint.
type ImportTextRequest struct {
	Text       string     `json:"text" validate:"required,min=1"`
	Title      string     `json:"title,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
}

// SubmitURLRequest defines the payload for the URL submission endpoint.
type SubmitURLRequest struct {
	URL        string     `json:"url" validate:"required,min=1"`
	Title      string     `json:"title,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Method     string     `json:"method,omitempty"`
}

// DocumentResponse represents the response data for a document.
type DocumentResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content,omitempty"`
	DocType    string     `json:"doc_type"`
	Tags       []string   `json:"tags"`
	Status     string     `json:"status"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	FileName   string     `json:"file_name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// JobResponse represents the response data for a processing job.
type JobResponse struct {
	ID               string     `json:"id"`
	JobType          string     `json:"job_type"`
	Status           string     `json:"status"`
	SourceType       string     `json:"source_type"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	Title            string     `json:"title,omitempty"`
	DocumentID       string     `json:"document_id"`
	Progress         int        `json:"progress"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	ResultDocumentID *uuid.UUID `json:"result_document_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// JobStatsResponse represents the aggregate job statistics payload.
// AverageProcessingTime is reported in whole seconds.
type JobStatsResponse struct {
	Total                 int     `json:"total"`
	Pending               int     `json:"pending"`
	Processing            int     `json:"processing"`
	Completed             int     `json:"completed"`
	Failed                int     `json:"failed"`
	AverageProcessingTime float64 `json:"average_processing_time_seconds"`
}

// documentToResponse converts a domain.Document to a DocumentResponse.
func documentToResponse(doc *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:         doc.ID.String(),
		UserID:     doc.UserID.String(),
		Title:      doc.Title,
		Content:    doc.Content,
		DocType:    string(doc.DocType),
		Tags:       doc.Tags,
		Status:     string(doc.Status),
		CategoryID: doc.CategoryID,
		FileName:   doc.FileName,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

// jobToResponse converts a domain.ProcessingJob to a JobResponse. The
// internal spool path stays server-side.
func jobToResponse(job *domain.ProcessingJob) JobResponse {
	return JobResponse{
		ID:               job.ID.String(),
		JobType:          job.JobType,
		Status:           string(job.Status),
		SourceType:       string(job.SourceType),
		OriginalFilename: job.OriginalFilename,
		Title:            job.Title,
		DocumentID:       job.DocumentID.String(),
		Progress:         job.Progress,
		ErrorMessage:     job.ErrorMessage,
		ResultDocumentID: job.ResultDocumentID,
		CreatedAt:        job.CreatedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
	}
}

// statsToResponse converts domain.JobStats to the response payload.
func statsToResponse(stats *domain.JobStats) JobStatsResponse {
	return JobStatsResponse{
		Total:                 stats.Total,
		Pending:               stats.Pending,
		Processing:            stats.Processing,
		Completed:             stats.Completed,
		Failed:                stats.Failed,
		AverageProcessingTime: stats.AverageProcessingTime.Seconds(),
	}
}
