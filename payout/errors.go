package payout

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("payout: required parameter is nil")

	// ErrNotRunnable indicates the distribution is neither pending nor failed.
	ErrNotRunnable = errors.New("payout: distribution is not pending or failed")

	// ErrNotRetryable indicates a retry of a distribution that has not failed.
	ErrNotRetryable = errors.New("payout: only failed distributions can be retried")

	// ErrNoAttempts indicates a failed distribution with no recorded attempt.
	ErrNoAttempts = errors.New("payout: no previous attempt to retry")
)
