package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Timeout bounds a whole CheckAll (or a single Check). Checks still
	// running when it expires are reported unhealthy.
	// Default: 10 seconds
	Timeout time.Duration

	// Sequential runs checks one after another.
	// Default: false (parallel)
	Sequential bool
}

type namedChecker struct {
	name    string
	checker Checker
}

// Aggregator runs a set of named checkers and folds their results into one
// status. Checkers keep their registration order.
type Aggregator struct {
	config AggregatorConfig

	mu       sync.RWMutex
	checkers []namedChecker
}

// NewAggregator creates an Aggregator. At most one config is used.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	a := &Aggregator{}
	if len(config) > 0 {
		a.config = config[0]
	}
	if a.config.Timeout <= 0 {
		a.config.Timeout = 10 * time.Second
	}
	return a
}

func (a *Aggregator) indexOf(name string) int {
	return slices.IndexFunc(a.checkers, func(n namedChecker) bool { return n.name == name })
}

// Register adds checker under name. A checker already registered under
// that name is replaced in place.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if i := a.indexOf(name); i >= 0 {
		a.checkers[i].checker = checker
		return
	}
	a.checkers = append(a.checkers, namedChecker{name: name, checker: checker})
}

// Unregister removes the checker registered under name, if any.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if i := a.indexOf(name); i >= 0 {
		a.checkers = slices.Delete(a.checkers, i, i+1)
	}
}

// CheckerNames returns the registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.checkers))
	for _, n := range a.checkers {
		names = append(names, n.name)
	}
	return names
}

func (a *Aggregator) snapshot() []namedChecker {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.checkers)
}

// Check runs the checker registered under name. It returns
// ErrCheckerNotFound for an unknown name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	i := a.indexOf(name)
	var checker Checker
	if i >= 0 {
		checker = a.checkers[i].checker
	}
	a.mu.RUnlock()

	if checker == nil {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return runCheck(ctx, checker), nil
}

// CheckAll runs every registered checker and returns the results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	checkers := a.snapshot()
	results := make(map[string]Result, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	if a.config.Sequential {
		for _, n := range checkers {
			results[n.name] = runCheck(ctx, n.checker)
		}
		return results
	}

	// Each goroutine owns one slot, so no lock is needed until the merge.
	out := make([]Result, len(checkers))
	var g errgroup.Group
	for i, n := range checkers {
		g.Go(func() error {
			out[i] = runCheck(ctx, n.checker)
			return nil
		})
	}
	_ = g.Wait()

	for i, n := range checkers {
		results[n.name] = out[i]
	}
	return results
}

// OverallStatus folds results with Worst. No results is healthy.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	status := StatusHealthy
	for _, r := range results {
		status = Worst(status, r.Status)
	}
	return status
}

// runCheck runs checker on its own goroutine so a checker that ignores ctx
// cannot stall the caller past the deadline.
func runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)

	go func() {
		r := checker.Check(ctx)
		if r.Duration == 0 {
			r.Duration = time.Since(start)
		}
		if r.Timestamp.IsZero() {
			r.Timestamp = start
		}
		done <- r
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		r := Unhealthy("check timed out", ErrCheckTimeout)
		r.Duration = time.Since(start)
		r.Timestamp = start
		return r
	}
}

// Checker exposes the whole aggregator as one Checker named "aggregate".
// Per-checker status, message and duration end up in Details.
func (a *Aggregator) Checker() Checker {
	return NewCheckerFunc("aggregate", func(ctx context.Context) Result {
		results := a.CheckAll(ctx)

		details := make(map[string]any, len(results))
		for name, r := range results {
			details[name] = map[string]any{
				"status":   r.Status.String(),
				"message":  r.Message,
				"duration": r.Duration.String(),
			}
		}

		var r Result
		switch a.OverallStatus(results) {
		case StatusHealthy:
			r = Healthy("all checks passed")
		case StatusDegraded:
			r = Degraded("some checks degraded")
		default:
			r = Unhealthy("some checks failed", ErrCheckFailed)
		}
		return r.WithDetails(details)
	})
}
