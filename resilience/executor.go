package resilience

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/callguard/execctx"
)

// Execution describes one finished Executor.Execute call. It is handed to
// Hooks.AfterExecute.
type Execution struct {
	CallType string

	// Outcome is what the statistics recorded. It is meaningless when
	// Canceled is set.
	Outcome Outcome

	// Duration is the time from Execute until the primary path settled.
	Duration time.Duration

	// Err is the primary path's error: a *CommandError, or the caller's
	// context error when Canceled.
	Err error

	// Canceled is set when the caller's context ended before the command
	// settled.
	Canceled bool

	// FallbackUsed is set when the fallback ran; FallbackErr is its error.
	FallbackUsed bool
	FallbackErr  error
}

// Hooks observes the executor. Implementations must be safe for concurrent
// use and must return quickly.
type Hooks interface {
	// BeforeExecute runs on the caller's goroutine before anything else and
	// may decorate the context (for example with a span).
	BeforeExecute(ctx context.Context, callType string) context.Context

	// AfterExecute runs on the caller's goroutine once the result is known.
	AfterExecute(ctx context.Context, exec Execution)

	// OnStateChange runs whenever a call type's breaker changes state.
	OnStateChange(callType string, from, to State)
}

// NopHooks implements Hooks and does nothing.
type NopHooks struct{}

func (NopHooks) BeforeExecute(ctx context.Context, _ string) context.Context { return ctx }
func (NopHooks) AfterExecute(context.Context, Execution)                    {}
func (NopHooks) OnStateChange(string, State, State)                         {}

// ContextPropagator copies request-scoped values from the caller's context
// into the context an operation runs with on its worker.
type ContextPropagator func(caller, worker context.Context) context.Context

// Executor runs commands with bulkhead isolation, a per-call timeout, a
// statistics-driven circuit breaker and an optional fallback.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Isolation: every call type gets its own window, breaker and bulkhead.
//   - Errors: a failed command without fallback returns a *CommandError;
//     a fallback's own error is returned unchanged.
//   - Retries: the executor never retries a command.
type Executor struct {
	defaults    CallConfig
	configs     map[string]CallConfig
	hooks       Hooks
	clock       Clock
	propagators []ContextPropagator

	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	groups map[string]*callGroup
	closed bool
}

// callGroup is everything that is shared by the commands of one call type.
type callGroup struct {
	callType string
	config   CallConfig
	window   *RollingWindow
	breaker  *CircuitBreaker
	bulkhead *Bulkhead
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCallConfig configures one call type.
func WithCallConfig(callType string, cfg CallConfig) ExecutorOption {
	return func(e *Executor) {
		e.configs[callType] = cfg
	}
}

// WithCallConfigs configures several call types at once.
func WithCallConfigs(cfgs map[string]CallConfig) ExecutorOption {
	return func(e *Executor) {
		for name, cfg := range cfgs {
			e.configs[name] = cfg
		}
	}
}

// WithDefaultCallConfig sets the configuration for call types that were not
// configured explicitly.
func WithDefaultCallConfig(cfg CallConfig) ExecutorOption {
	return func(e *Executor) {
		e.defaults = cfg
	}
}

// WithHooks installs observability hooks.
func WithHooks(h Hooks) ExecutorOption {
	return func(e *Executor) {
		if h != nil {
			e.hooks = h
		}
	}
}

// WithContextPropagator adds a propagator run when an operation is handed to
// a worker. The execution context is always propagated.
func WithContextPropagator(p ContextPropagator) ExecutorOption {
	return func(e *Executor) {
		if p != nil {
			e.propagators = append(e.propagators, p)
		}
	}
}

// WithClock replaces time.Now for statistics and breaker timing.
func WithClock(c Clock) ExecutorOption {
	return func(e *Executor) {
		if c != nil {
			e.clock = c
		}
	}
}

// NewExecutor creates an executor. Every configured call type is validated
// and its bulkhead started eagerly; unknown call types are created on first
// use with the default configuration.
func NewExecutor(opts ...ExecutorOption) (*Executor, error) {
	e := &Executor{
		defaults: DefaultCallConfig(),
		configs:  make(map[string]CallConfig),
		hooks:    NopHooks{},
		clock:    time.Now,
		groups:   make(map[string]*callGroup),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default call config: %w", err)
	}
	e.defaults = e.defaults.withDefaults()

	for name, cfg := range e.configs {
		if name == "" {
			return nil, ErrMissingCallType
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("call type %q: %w", name, err)
		}
	}

	e.base, e.cancel = context.WithCancel(context.Background())
	for name, cfg := range e.configs {
		e.groups[name] = e.newGroup(name, cfg.withDefaults())
	}
	return e, nil
}

func (e *Executor) newGroup(callType string, cfg CallConfig) *callGroup {
	window := NewRollingWindow(cfg.RollingWindow, cfg.NumBuckets, e.clock)
	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		RequestVolumeThreshold:   cfg.RequestVolumeThreshold,
		ErrorThresholdPercentage: cfg.ErrorThresholdPercentage,
		SleepWindow:              cfg.SleepWindow,
		Clock:                    e.clock,
		OnStateChange: func(from, to State) {
			e.hooks.OnStateChange(callType, from, to)
		},
	}, window)

	return &callGroup{
		callType: callType,
		config:   cfg,
		window:   window,
		breaker:  breaker,
		bulkhead: NewBulkhead(BulkheadConfig{
			CoreSize:     cfg.CoreSize,
			MaxQueueSize: cfg.MaxQueueSize,
		}),
	}
}

func (e *Executor) group(callType string) (*callGroup, error) {
	e.mu.RLock()
	g, ok := e.groups[callType]
	closed := e.closed
	e.mu.RUnlock()

	if closed {
		return nil, ErrExecutorClosed
	}
	if ok {
		return g, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrExecutorClosed
	}
	if g, ok := e.groups[callType]; ok {
		return g, nil
	}
	g = e.newGroup(callType, e.defaults)
	e.groups[callType] = g
	return g, nil
}

// Execute runs cmd:
//
//  1. The call type's breaker is asked for permission; a refusal is recorded
//     as short-circuited and the bulkhead is not touched.
//  2. The operation is submitted to the call type's bulkhead with a copy of
//     the caller's execution context and a deadline of CallConfig.Timeout.
//  3. The result, error, timeout or rejection is recorded into the rolling
//     window, which may change the breaker state.
//  4. On any failure the fallback runs if present; otherwise the
//     *CommandError is returned.
//
// If ctx ends first, Execute returns ctx.Err() without running the fallback.
// The operation keeps its own deadline and its outcome is still recorded.
func (e *Executor) Execute(ctx context.Context, cmd Command) (any, error) {
	if cmd.CallType == "" {
		return nil, ErrMissingCallType
	}
	if cmd.Run == nil {
		return nil, ErrNilOperation
	}
	g, err := e.group(cmd.CallType)
	if err != nil {
		return nil, err
	}

	ctx = e.hooks.BeforeExecute(ctx, cmd.CallType)
	start := e.clock()

	value, outcome, canceled, runErr := e.run(ctx, g, cmd.Run)

	exec := Execution{
		CallType: cmd.CallType,
		Outcome:  outcome,
		Duration: e.clock().Sub(start),
		Err:      runErr,
		Canceled: canceled,
	}

	if runErr == nil {
		e.hooks.AfterExecute(ctx, exec)
		return value, nil
	}
	if canceled || errors.Is(runErr, ErrExecutorClosed) {
		e.hooks.AfterExecute(ctx, exec)
		return nil, runErr
	}
	if cmd.Fallback == nil {
		e.hooks.AfterExecute(ctx, exec)
		return nil, runErr
	}

	value, err = cmd.Fallback(ctx, runErr)
	exec.FallbackUsed = true
	exec.FallbackErr = err
	e.hooks.AfterExecute(ctx, exec)
	return value, err
}

type result struct {
	value any
	err   error
}

// run is the primary path: breaker, bulkhead, timeout, recording. canceled
// reports that the caller's context ended first.
func (e *Executor) run(ctx context.Context, g *callGroup, op Operation) (_ any, _ Outcome, canceled bool, _ error) {
	permit, ok := g.breaker.Allow()
	if !ok {
		g.breaker.Record(Permit{}, OutcomeShortCircuited)
		return nil, OutcomeShortCircuited, false, newCommandError(g.callType, OutcomeShortCircuited, nil)
	}

	// The worker context descends from the executor, not the caller: it is
	// bounded by the command timeout and carries only what is copied in.
	wctx, cancel := context.WithTimeout(e.base, g.config.Timeout)
	wctx = execctx.Propagate(ctx, wctx)
	for _, p := range e.propagators {
		wctx = p(ctx, wctx)
	}

	done := make(chan result, 1)
	task := func() {
		if err := wctx.Err(); err != nil {
			// Expired while queued.
			done <- result{err: err}
			return
		}
		v, err := call(wctx, op)
		done <- result{value: v, err: err}
	}

	if err := g.bulkhead.Submit(task); err != nil {
		cancel()
		if errors.Is(err, ErrBulkheadClosed) {
			return nil, OutcomeRejected, false, ErrExecutorClosed
		}
		g.breaker.Record(permit, OutcomeRejected)
		return nil, OutcomeRejected, false, newCommandError(g.callType, OutcomeRejected, nil)
	}

	select {
	case r := <-done:
		outcome, err := e.settle(g, permit, wctx, r)
		cancel()
		if err != nil {
			return nil, outcome, false, err
		}
		return r.value, outcome, false, nil

	case <-wctx.Done():
		cancel()
		if !errors.Is(wctx.Err(), context.DeadlineExceeded) {
			// Close canceled the executor's base context.
			return nil, OutcomeRejected, false, ErrExecutorClosed
		}
		g.breaker.Record(permit, OutcomeTimeout)
		return nil, OutcomeTimeout, false, newCommandError(g.callType, OutcomeTimeout, wctx.Err())

	case <-ctx.Done():
		go func() {
			defer cancel()
			select {
			case r := <-done:
				_, _ = e.settle(g, permit, wctx, r)
			case <-wctx.Done():
				if errors.Is(wctx.Err(), context.DeadlineExceeded) {
					g.breaker.Record(permit, OutcomeTimeout)
				}
			}
		}()
		return nil, OutcomeSuccess, true, ctx.Err()
	}
}

// settle classifies a finished operation and records it.
func (e *Executor) settle(g *callGroup, permit Permit, wctx context.Context, r result) (Outcome, error) {
	switch {
	case r.err == nil:
		g.breaker.Record(permit, OutcomeSuccess)
		return OutcomeSuccess, nil

	case errors.Is(wctx.Err(), context.DeadlineExceeded):
		// The operation gave up because of our deadline.
		g.breaker.Record(permit, OutcomeTimeout)
		return OutcomeTimeout, newCommandError(g.callType, OutcomeTimeout, r.err)

	case errors.Is(wctx.Err(), context.Canceled):
		// The executor closed under a running operation.
		return OutcomeRejected, ErrExecutorClosed

	default:
		g.breaker.Record(permit, OutcomeFailure)
		return OutcomeFailure, newCommandError(g.callType, OutcomeFailure, r.err)
	}
}

// State returns the breaker state of callType, reporting false for a call
// type that has never been configured or used.
func (e *Executor) State(callType string) (State, bool) {
	e.mu.RLock()
	g, ok := e.groups[callType]
	e.mu.RUnlock()
	if !ok {
		return StateClosed, false
	}
	return g.breaker.State(), true
}

// CommandMetrics is a point-in-time view of one call type.
type CommandMetrics struct {
	CallType string
	Config   CallConfig
	Breaker  CircuitBreakerMetrics
	Bulkhead BulkheadMetrics
}

// Metrics returns the metrics of callType.
func (e *Executor) Metrics(callType string) (CommandMetrics, bool) {
	e.mu.RLock()
	g, ok := e.groups[callType]
	e.mu.RUnlock()
	if !ok {
		return CommandMetrics{}, false
	}
	return g.metrics(), true
}

// AllMetrics returns the metrics of every known call type, sorted by name.
func (e *Executor) AllMetrics() []CommandMetrics {
	e.mu.RLock()
	groups := make([]*callGroup, 0, len(e.groups))
	for _, g := range e.groups {
		groups = append(groups, g)
	}
	e.mu.RUnlock()

	sort.Slice(groups, func(i, j int) bool { return groups[i].callType < groups[j].callType })

	out := make([]CommandMetrics, len(groups))
	for i, g := range groups {
		out[i] = g.metrics()
	}
	return out
}

func (g *callGroup) metrics() CommandMetrics {
	return CommandMetrics{
		CallType: g.callType,
		Config:   g.config,
		Breaker:  g.breaker.Metrics(),
		Bulkhead: g.bulkhead.Metrics(),
	}
}

// CallTypes returns the names of all known call types, sorted.
func (e *Executor) CallTypes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.groups))
	for name := range e.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset closes the breaker of callType and clears its statistics.
func (e *Executor) Reset(callType string) bool {
	e.mu.RLock()
	g, ok := e.groups[callType]
	e.mu.RUnlock()
	if ok {
		g.breaker.Reset()
	}
	return ok
}

// Close cancels every in-flight operation, stops accepting commands and
// waits for the bulkhead workers to exit.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	groups := make([]*callGroup, 0, len(e.groups))
	for _, g := range e.groups {
		groups = append(groups, g)
	}
	e.mu.Unlock()

	e.cancel()
	for _, g := range groups {
		g.bulkhead.Close()
	}
}
