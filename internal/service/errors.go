package service

import (
	"errors"
	"fmt"
)

// Common sentinel errors for the service layer.
var (
	// ErrValidation indicates a malformed submission (empty text, bad URL
	// syntax, unsupported or unreadable file). It is surfaced synchronously
	// to the caller; no document or job is created.
	ErrValidation = errors.New("invalid submission")

	// ErrJobNotFound indicates the referenced processing job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrDocumentNotFound indicates the referenced document does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidJobState indicates a job control operation was requested
	// that is illegal for the job's current state (e.g., retrying a
	// pending job). The job is left unchanged.
	ErrInvalidJobState = errors.New("operation not allowed in current job state")
)

// ServiceError wraps errors from the service layer with operation context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "submit_file", "retry_job")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// validationError wraps a reason into an ErrValidation chain.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
