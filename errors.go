package graphlake

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that a caller-specified deadline elapsed while waiting
// on an operation or upload. It carries the elapsed time and attempt count,
// not partial progress.
type TimeoutError struct {
	What     string
	Elapsed  time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("graphlake: %s timed out after %s (%d attempts)", e.What, e.Elapsed, e.Attempts)
}

// Is lets errors.Is(err, context.DeadlineExceeded) match a TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// CancelledError reports explicit caller cancellation of a wait, distinct
// from timeout. errors.Is(err, context.Canceled) also matches.
type CancelledError struct {
	What    string
	Elapsed time.Duration
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("graphlake: %s cancelled after %s", e.What, e.Elapsed)
}

func (e *CancelledError) Unwrap() error { return context.Canceled }

// OperationFailedError reports a terminal failed or cancelled operation
// status observed by the monitor. A server-side cancellation carries
// StatusCancelled; it is a failure, never success.
type OperationFailedError struct {
	OperationID string
	Status      OperationStatus
	Message     string
}

func (e *OperationFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graphlake: operation %s %s", e.OperationID, e.Status)
	}
	return fmt.Sprintf("graphlake: operation %s %s: %s", e.OperationID, e.Status, e.Message)
}

// ctxOutcome maps a done context to the matching error kind: caller deadline
// becomes TimeoutError, caller cancellation becomes CancelledError.
func ctxOutcome(ctx context.Context, what string, elapsed time.Duration, attempts int) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &TimeoutError{What: what, Elapsed: elapsed, Attempts: attempts}
	}
	return &CancelledError{What: what, Elapsed: elapsed}
}
