package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors (e.g., ErrJobNotFound, ErrDocumentNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a user with the same email).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrJobClaimed is returned when a claim attempt loses the race for a
	// pending job: another worker holds it. The losing worker is expected
	// to move on to its next candidate; this error is never user-facing.
	ErrJobClaimed = errors.New("job already claimed")

	// ErrInvalidTransition is returned when a job operation is illegal for
	// the job's current status (e.g., retrying a pending job). The job is
	// left unchanged.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrProgressNotAllowed is returned when a progress report arrives for
	// a job that is not currently processing.
	ErrProgressNotAllowed = errors.New("progress updates require a processing job")

	// Entity-specific "not found" errors

	// ErrUserNotFound indicates that the requested user does not exist.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrDocumentNotFound indicates that the requested document does not exist.
	ErrDocumentNotFound = fmt.Errorf("%w: document", ErrNotFound)

	// ErrJobNotFound indicates that the requested processing job does not exist.
	ErrJobNotFound = fmt.Errorf("%w: processing job", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrEmailExists indicates that a user with the given email already exists.
	ErrEmailExists = fmt.Errorf("%w: email", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
