/*
errors.go - Centralized error types for the report engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Callers classify with errors.Is/errors.As; the HTTP layer maps each
  kind to a status code.

ERROR CATEGORIES:
  1. Validation errors - malformed input reaching the core
  2. Precondition errors - deterministic business-rule rejections
  3. Storage errors - the atomic write could not be committed

RETRY POLICY:
  Only storage failures are retryable: the whole transition rolled back,
  so nothing was partially applied. All other kinds are deterministic and
  retrying would just fail again.
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input fails the core's defensive
	// bounds checks. See ValidationError for field detail.
	ErrValidation = errors.New("validation failed")

	// ErrReportNotFound is returned when a referenced report doesn't exist.
	ErrReportNotFound = errors.New("report not found")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrSelfVerification is returned when a reporter attempts to verify
	// their own report.
	ErrSelfVerification = errors.New("cannot verify own report")

	// ErrAlreadyVerified is returned when the same user attempts a second
	// verification of the same report.
	ErrAlreadyVerified = errors.New("report already verified by this user")

	// ErrAlreadyCollected is returned when collect is attempted on a
	// report already in the terminal state.
	ErrAlreadyCollected = errors.New("report already collected")

	// ErrUnauthorized is returned when collect is attempted without the
	// administrative capability.
	ErrUnauthorized = errors.New("admin capability required")

	// ErrDuplicateAward is returned when a second ledger entry for the
	// same (report, type) pair is attempted. Seeing this outside of a
	// deliberate race test indicates a lifecycle bug.
	ErrDuplicateAward = errors.New("duplicate reward for report and type")

	// ErrStorageFailure is returned when the underlying atomic write could
	// not be committed. The transition was fully rolled back; safe to retry.
	ErrStorageFailure = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field failed the defensive check.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StorageError wraps a driver-level failure. The cause is preserved for
// logs; callers should treat it as opaque and retryable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorageFailure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
// Only storage failures qualify: every other kind is deterministic.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}

// IsNotFound returns true if the error indicates a missing report or user.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReportNotFound) || errors.Is(err, ErrUserNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// or a deterministic precondition rejection.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrSelfVerification) ||
		errors.Is(err, ErrAlreadyVerified) ||
		errors.Is(err, ErrAlreadyCollected) ||
		errors.Is(err, ErrDuplicateAward)
}
