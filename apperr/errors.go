package apperr

import (
	"errors"
	"fmt"
)

// ValidationError means the caller omitted or malformed a required field.
// Never retried.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid field: %s", e.Field)
}

// MissingField reports a required field the caller did not supply.
func MissingField(field string) error {
	return &ValidationError{Field: field}
}

// UpstreamRejection means the payment provider declined the request. The
// provider's error_message is carried verbatim so callers see the real
// reason (e.g. "insufficient_funds") instead of a generic failure.
type UpstreamRejection struct {
	StatusCode   int
	ErrorMessage string
}

func (e *UpstreamRejection) Error() string {
	return fmt.Sprintf("provider rejected request (%d): %s", e.StatusCode, e.ErrorMessage)
}

// UpstreamUnavailable means the provider could not be reached or returned a
// 5xx. Safe to retry idempotent calls with backoff.
type UpstreamUnavailable struct {
	Err error
}

func (e *UpstreamUnavailable) Error() string {
	return fmt.Sprintf("provider unavailable: %v", e.Err)
}

func (e *UpstreamUnavailable) Unwrap() error { return e.Err }

// ConflictError means the operation would violate a uniqueness or
// state-transition invariant (duplicate referral, double claim, transition
// out of a terminal state). Reported, never retried.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// Conflict builds a ConflictError with a formatted reason.
func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError means a credential or endpoint the operation needs is
// not configured. Fatal for the call, reported as an internal error.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration: %s", e.Setting)
}

// IsValidation reports whether err is a caller error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is an invariant conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsRetryable reports whether err may be retried with backoff. Only
// transport-level provider failures qualify.
func IsRetryable(err error) bool {
	var ue *UpstreamUnavailable
	return errors.As(err, &ue)
}
