package domain

import (
	"errors"
	"fmt"
)

// FailureKind classifies an attempt failure for retry policy and audit.
type FailureKind string

const (
	// FailureTimeout: the capture deadline elapsed. Transient.
	FailureTimeout FailureKind = "timeout"
	// FailureNavigation: the browser could not load the tracking page. Transient.
	FailureNavigation FailureKind = "navigation_failed"
	// FailureBlocked: anti-automation detection on the carrier site. Terminal
	// for the current attempt; a human-escalation signal.
	FailureBlocked FailureKind = "blocked"
	// FailureModelError: the vision model errored or was unreachable. Transient.
	FailureModelError FailureKind = "model_error"
	// FailureMalformedResponse: the vision model returned an unusable payload.
	// A defect to report, not a transient condition.
	FailureMalformedResponse FailureKind = "malformed_response"
	// FailureCancelled: the caller cancelled the attempt.
	FailureCancelled FailureKind = "cancelled"
)

// Retryable reports whether the failure kind warrants a fresh attempt.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureTimeout, FailureNavigation, FailureModelError:
		return true
	default:
		return false
	}
}

// AttemptError is a classified failure of one capture/extraction attempt.
type AttemptError struct {
	Kind FailureKind
	Err  error
}

// NewAttemptError wraps err with a failure classification.
func NewAttemptError(kind FailureKind, err error) *AttemptError {
	return &AttemptError{Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *AttemptError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *AttemptError) Unwrap() error {
	return e.Err
}

// ClassifyAttemptError extracts the AttemptError from an error chain.
func ClassifyAttemptError(err error) (*AttemptError, bool) {
	var attemptErr *AttemptError
	if errors.As(err, &attemptErr) {
		return attemptErr, true
	}
	return nil, false
}

var (
	// ErrAlreadyInProgress is returned when a sync for the same tracking key is
	// already holding the lease. The caller gets it immediately, without
	// queueing, and no record is created.
	ErrAlreadyInProgress = errors.New("sync already in progress")
	// ErrLeaseConflict is returned by the lease manager when the key is held.
	ErrLeaseConflict = errors.New("lease already held")
)
