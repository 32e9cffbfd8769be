package resilience

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Operation is the unit of work a command protects. It runs on a bulkhead
// worker with a context carrying the caller's execution context and the
// command deadline.
type Operation func(ctx context.Context) (any, error)

// Fallback produces an alternate result when the operation did not succeed.
// err is the *CommandError describing why. Fallbacks run on the caller's
// goroutine and are not themselves protected by the breaker.
type Fallback func(ctx context.Context, err error) (any, error)

// Command is one protected call: a call type, the operation and an optional
// fallback. The call type selects the CallConfig, statistics, breaker and
// bulkhead shared by all commands of that type.
type Command struct {
	CallType string
	Run      Operation
	Fallback Fallback
}

// PanicError is the failure reported when an operation panics.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// call runs op, converting a panic into a *PanicError.
func call(ctx context.Context, op Operation) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return op(ctx)
}

// Do executes a typed operation through e. It is the typed form of
// Executor.Execute; fallback may be nil.
func Do[T any](
	ctx context.Context,
	e *Executor,
	callType string,
	op func(ctx context.Context) (T, error),
	fallback func(ctx context.Context, err error) (T, error),
) (T, error) {
	cmd := Command{CallType: callType}
	if op != nil {
		cmd.Run = func(ctx context.Context) (any, error) {
			return op(ctx)
		}
	}
	if fallback != nil {
		cmd.Fallback = func(ctx context.Context, err error) (any, error) {
			return fallback(ctx, err)
		}
	}

	v, err := e.Execute(ctx, cmd)
	t, _ := v.(T)
	return t, err
}
