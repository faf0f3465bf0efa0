package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the application.
// The HTTP layer translates them to status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrQueueLocked       = errors.New("queue is currently locked")
	ErrStoreFetch        = errors.New("subscriber fetch failed")
	ErrFeedEmpty         = errors.New("rss feed is empty")
	ErrNoTargetDate      = errors.New("could not work out date from title")
	ErrInvalidTimeOfDay  = errors.New("time of day must be hour 0-23 and minute 0-59")
	ErrInvalidTargetDate = errors.New("target date must have day 1-31, month 1-12 and a positive year")
	ErrPollInProgress    = errors.New("a feed check is already running")
)

// WriteError is returned by queue writers when a whole batch could not be
// written. Retryable reports whether the same batch may be submitted again.
type WriteError struct {
	Retryable bool
	Err       error
}

func (e *WriteError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("retryable batch write: %v", e.Err)
	}
	return fmt.Sprintf("batch write: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a retryable WriteError.
func IsRetryable(err error) bool {
	var we *WriteError
	if errors.As(err, &we) {
		return we.Retryable
	}
	return false
}
