package resilience

import (
	"sync"
	"sync/atomic"
	"time"
)

// State represents the circuit breaker state.
type State int32

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means a single trial request is testing the downstream.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// RequestVolumeThreshold is the minimum window volume before the error
	// rate is evaluated. Zero or less selects the default; use 1 to
	// evaluate from the first call.
	// Default: 20
	RequestVolumeThreshold int64

	// ErrorThresholdPercentage is the error percentage (0-100] that opens
	// the circuit. Zero or less selects the default.
	// Default: 50
	ErrorThresholdPercentage float64

	// SleepWindow is how long to stay open before allowing a trial call.
	// Default: 5 seconds
	SleepWindow time.Duration

	// OnStateChange is called after every state transition.
	OnStateChange func(from, to State)

	// Clock supplies the current time.
	// Default: time.Now
	Clock Clock
}

// CircuitBreaker decides from rolling window statistics whether calls are
// allowed through.
//
// Transitions happen only inside Allow and Record; there is no background
// timer. They are serialized by mu while the state word stays atomic, so
// reads on the hot path never lock and concurrent callers never both win
// the same transition.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	window *RollingWindow

	mu       sync.Mutex
	state    atomic.Int32
	openedAt atomic.Int64
}

// Permit is handed out by Allow for one admitted call and given back to
// Record with that call's outcome. Only the permit of the half-open trial
// may close or reopen the circuit; outcomes of calls admitted earlier are
// merely counted.
type Permit struct {
	trial bool
}

// Trial reports whether the permit belongs to the half-open trial call.
func (p Permit) Trial() bool { return p.trial }

// NewCircuitBreaker creates a circuit breaker evaluating window. A nil
// window gets a 10 second, 10 bucket window.
func NewCircuitBreaker(config CircuitBreakerConfig, window *RollingWindow) *CircuitBreaker {
	if config.RequestVolumeThreshold <= 0 {
		config.RequestVolumeThreshold = 20
	}
	if config.ErrorThresholdPercentage <= 0 {
		config.ErrorThresholdPercentage = 50
	}
	if config.SleepWindow <= 0 {
		config.SleepWindow = 5 * time.Second
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if window == nil {
		window = NewRollingWindow(10*time.Second, 10, config.Clock)
	}

	cb := &CircuitBreaker{
		config: config,
		window: window,
	}
	cb.state.Store(int32(StateClosed))
	return cb
}

// Allow reports whether a call may proceed. While closed it re-evaluates the
// window and may trip the circuit. While open it lets exactly one caller
// through once the sleep window has elapsed, moving to half-open and
// returning a trial permit; every other caller is refused until the trial's
// outcome is recorded.
func (cb *CircuitBreaker) Allow() (Permit, bool) {
	switch cb.State() {
	case StateClosed:
		return Permit{}, !cb.tripIfUnhealthy()

	case StateOpen:
		openedAt := time.Unix(0, cb.openedAt.Load())
		if cb.config.Clock().Sub(openedAt) < cb.config.SleepWindow {
			return Permit{}, false
		}
		if !cb.transition(StateOpen, StateHalfOpen) {
			return Permit{}, false
		}
		return Permit{trial: true}, true

	default:
		// The half-open trial slot is taken.
		return Permit{}, false
	}
}

// Record adds an outcome to the window and applies the resulting transition.
// p is the permit Allow returned for the call, or the zero Permit for calls
// that were never admitted.
func (cb *CircuitBreaker) Record(p Permit, o Outcome) {
	cb.window.Record(o)

	switch cb.State() {
	case StateClosed:
		if o != OutcomeShortCircuited {
			cb.tripIfUnhealthy()
		}

	case StateHalfOpen:
		if !p.trial {
			return
		}
		switch {
		case o == OutcomeSuccess:
			if cb.transition(StateHalfOpen, StateClosed) {
				cb.window.Reset()
			}
		case o.IsError():
			cb.transition(StateHalfOpen, StateOpen)
		}
	}
}

// tripIfUnhealthy opens the circuit when the window crosses the volume and
// error thresholds. It reports whether the circuit is open afterwards.
func (cb *CircuitBreaker) tripIfUnhealthy() bool {
	snap := cb.window.Snapshot()
	if snap.TotalVolume() < cb.config.RequestVolumeThreshold {
		return false
	}
	if snap.ErrorPercentage() < cb.config.ErrorThresholdPercentage {
		return false
	}
	cb.transition(StateClosed, StateOpen)
	return true
}

// transition moves from one state to another if the circuit is still in
// from. Entering open restarts the sleep window; openedAt is written only by
// the winner and before the state is published.
func (cb *CircuitBreaker) transition(from, to State) bool {
	cb.mu.Lock()
	if State(cb.state.Load()) != from {
		cb.mu.Unlock()
		return false
	}
	if to == StateOpen {
		cb.openedAt.Store(cb.config.Clock().UnixNano())
	}
	cb.state.Store(int32(to))
	cb.mu.Unlock()

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
	return true
}

// State returns the current circuit state. An open circuit whose sleep
// window has elapsed still reports open until the next Allow.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

// Reset forces the circuit closed and clears the window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	old := State(cb.state.Swap(int32(StateClosed)))
	cb.mu.Unlock()
	cb.window.Reset()

	if old != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(old, StateClosed)
	}
}

// Window returns the statistics the breaker evaluates.
func (cb *CircuitBreaker) Window() *RollingWindow {
	return cb.window
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	m := CircuitBreakerMetrics{
		State:    cb.State(),
		Snapshot: cb.window.Snapshot(),
	}
	if m.State != StateClosed {
		m.OpenedAt = time.Unix(0, cb.openedAt.Load())
	}
	return m
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State    State
	Snapshot Snapshot
	OpenedAt time.Time
}
