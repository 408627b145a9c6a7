package service

import (
	"context"
	"errors"
	"time"
)

const (
	maxAttempts  = 3
	retryBackoff = 50 * time.Millisecond
)

// terminal errors are precondition violations: retrying cannot change the
// outcome, so they surface to the caller immediately.
var terminalErrs = []error{
	ErrDuplicateRequest,
	ErrInvalidAmount,
	ErrInvalidChoice,
	ErrInsufficientFunds,
	ErrSupplyExceeded,
	ErrNotEligible,
	ErrNotFound,
}

func isTerminal(err error) bool {
	for _, t := range terminalErrs {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// withConflictRetry runs fn, retrying a bounded number of times with doubling
// backoff when the store reports a lost write race or a transient I/O
// failure. fn re-reads its inputs on every attempt, so a retry revalidates
// preconditions against fresh state.
func withConflictRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff << (attempt - 1)):
			}
		}
		err = fn()
		if err == nil || isTerminal(err) {
			return err
		}
	}
	return err
}
