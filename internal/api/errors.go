package api

import (
	"errors"
	"net/http"

	"github.com/fennwick/docshelf/internal/api/shared"
	"github.com/fennwick/docshelf/internal/service"
	"github.com/fennwick/docshelf/internal/service/auth"
	"github.com/fennwick/docshelf/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors: illegal state-machine operations and lost claims
	case errors.Is(err, service.ErrInvalidJobState),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrJobClaimed),
		errors.Is(err, store.ErrEmailExists):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return "Invalid token"

	case errors.Is(err, service.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, service.ErrDocumentNotFound):
		return "Document not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, service.ErrInvalidJobState),
		errors.Is(err, store.ErrInvalidTransition):
		return "Operation not allowed in the job's current state"

	case errors.Is(err, store.ErrEmailExists):
		return "Email already exists"

	case errors.Is(err, service.ErrValidation):
		// Validation reasons are written for end users and never carry
		// internals, so the chain is safe to surface verbatim.
		return err.Error()

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError maps an error to a status code and safe message and writes
// the response, logging the underlying cause. An empty userMessage falls
// back to the mapped safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	status := MapErrorToStatusCode(err)
	if userMessage == "" {
		userMessage = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, userMessage, err)
}
