// Package resilience protects calls to remote dependencies.
//
// Every call is wrapped in a Command that names its call type. All commands
// of one call type share a CallConfig, a RollingWindow of outcome counts, a
// CircuitBreaker driven by that window and a Bulkhead of worker goroutines.
// One overloaded dependency therefore cannot exhaust the workers or trip the
// breaker of another.
//
// # Patterns
//
//   - Rolling window: outcome counts (success, failure, timeout, rejected,
//     short-circuited) in a ring of time buckets. Old buckets age out.
//
//   - Circuit breaker: closed, open and half-open states. It opens when
//     the window holds at least RequestVolumeThreshold calls and the error
//     percentage reaches ErrorThresholdPercentage. After SleepWindow exactly
//     one trial call is let through.
//
//   - Bulkhead: CoreSize workers behind a queue of MaxQueueSize tasks.
//     Submissions beyond that are rejected immediately.
//
//   - Timeout: each command has Timeout from submission, including time
//     spent queued.
//
//   - Fallback: an optional function producing an alternate result when
//     the command failed for any reason.
//
//   - Retry: available for callers composing commands. The Executor itself
//     never retries.
//
// # Usage
//
//	exec, err := resilience.NewExecutor(
//	    resilience.WithCallConfig("licenseByOrg", resilience.CallConfig{
//	        CoreSize:     30,
//	        MaxQueueSize: 10,
//	        Timeout:      12 * time.Second,
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer exec.Close()
//
//	licenses, err := resilience.Do(ctx, exec, "licenseByOrg",
//	    func(ctx context.Context) ([]License, error) {
//	        return repo.FindByOrg(ctx, orgID)
//	    },
//	    func(ctx context.Context, err error) ([]License, error) {
//	        return []License{placeholder}, nil
//	    },
//	)
//
// Errors returned without a fallback are *CommandError values matching one
// of ErrOperationFailed, ErrTimeout, ErrRejected or ErrShortCircuited with
// errors.Is.
//
// The caller's execctx.ExecutionContext is copied into the context the
// operation runs with, so correlation and identity ids survive the hop to
// the worker goroutine.
package resilience
