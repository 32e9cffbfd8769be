package resilience

import (
	"errors"
	"fmt"
)

// Sentinel errors for command execution. A *CommandError matches the sentinel
// of its kind with errors.Is.
var (
	// ErrOperationFailed is matched when the operation itself returned an error.
	ErrOperationFailed = errors.New("resilience: operation failed")

	// ErrTimeout is matched when the operation exceeded its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrRejected is matched when the bulkhead had no free worker or queue slot.
	ErrRejected = errors.New("resilience: bulkhead rejected execution")

	// ErrShortCircuited is matched when the circuit breaker refused the call.
	ErrShortCircuited = errors.New("resilience: circuit breaker short-circuited")
)

// Configuration and lifecycle errors.
var (
	// ErrInvalidConfig indicates a CallConfig violated an invariant.
	ErrInvalidConfig = errors.New("resilience: invalid call config")

	// ErrNilOperation indicates a Command without a Run function.
	ErrNilOperation = errors.New("resilience: command operation is nil")

	// ErrMissingCallType indicates a Command without a call type.
	ErrMissingCallType = errors.New("resilience: call type is required")

	// ErrExecutorClosed is returned after Executor.Close.
	ErrExecutorClosed = errors.New("resilience: executor is closed")

	// ErrBulkheadClosed is returned by Submit after Bulkhead.Close.
	ErrBulkheadClosed = errors.New("resilience: bulkhead is closed")

	// ErrMaxRetriesExceeded is returned when max retry attempts are exhausted.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")
)

// CommandError is returned by Executor.Execute when a command did not
// succeed and no fallback handled it. It is also the error handed to a
// fallback.
type CommandError struct {
	// CallType identifies the command's call type.
	CallType string

	// Kind is one of OutcomeFailure, OutcomeTimeout, OutcomeRejected or
	// OutcomeShortCircuited.
	Kind Outcome

	// Err is the underlying cause, if any. For OutcomeFailure it is the
	// error returned by the operation.
	Err error
}

func newCommandError(callType string, kind Outcome, cause error) *CommandError {
	return &CommandError{CallType: callType, Kind: kind, Err: cause}
}

// Error implements error.
func (e *CommandError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resilience: %s: %s", e.CallType, e.Kind)
	}
	return fmt.Sprintf("resilience: %s: %s: %v", e.CallType, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the failure kind.
func (e *CommandError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf returns the failure kind of err, or OutcomeSuccess when err is nil
// or not a *CommandError.
func KindOf(err error) Outcome {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return OutcomeSuccess
}
