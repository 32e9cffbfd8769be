package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/callguard/resilience"
)

// CommandMetricsSource exposes per call type metrics. *resilience.Executor
// implements it.
type CommandMetricsSource interface {
	Metrics(callType string) (resilience.CommandMetrics, bool)
	AllMetrics() []resilience.CommandMetrics
}

var _ CommandMetricsSource = (*resilience.Executor)(nil)

// CommandChecker reports the health of protected commands from their
// breaker and bulkhead state:
//
//   - Unhealthy when a breaker is open.
//   - Degraded when a breaker is half-open or a bulkhead rejected work
//     within the current rolling window.
//   - Healthy otherwise.
type CommandChecker struct {
	name      string
	source    CommandMetricsSource
	callTypes []string
}

// NewCommandChecker checks the given call types, or every known call type
// when none are given.
func NewCommandChecker(name string, source CommandMetricsSource, callTypes ...string) *CommandChecker {
	return &CommandChecker{name: name, source: source, callTypes: callTypes}
}

// Name returns the name of this checker.
func (c *CommandChecker) Name() string {
	return c.name
}

// Check evaluates every selected call type and reports the worst status.
func (c *CommandChecker) Check(ctx context.Context) Result {
	metrics := c.metrics()
	if len(metrics) == 0 {
		return Healthy("no commands executed")
	}

	status := StatusHealthy
	details := make(map[string]any, len(metrics))
	var problems []string

	for _, m := range metrics {
		s, reason := commandStatus(m)
		status = Worst(status, s)
		if reason != "" {
			problems = append(problems, m.CallType+": "+reason)
		}
		details[m.CallType] = commandDetails(m, s)
	}

	var r Result
	switch status {
	case StatusUnhealthy:
		r = Unhealthy(strings.Join(problems, "; "), ErrCheckFailed)
	case StatusDegraded:
		r = Degraded(strings.Join(problems, "; "))
	default:
		r = Healthy(fmt.Sprintf("%d commands healthy", len(metrics)))
	}
	return r.WithDetails(details)
}

func (c *CommandChecker) metrics() []resilience.CommandMetrics {
	if len(c.callTypes) == 0 {
		return c.source.AllMetrics()
	}

	out := make([]resilience.CommandMetrics, 0, len(c.callTypes))
	for _, ct := range c.callTypes {
		if m, ok := c.source.Metrics(ct); ok {
			out = append(out, m)
		}
	}
	return out
}

func commandStatus(m resilience.CommandMetrics) (Status, string) {
	switch m.Breaker.State {
	case resilience.StateOpen:
		return StatusUnhealthy, "circuit open"
	case resilience.StateHalfOpen:
		return StatusDegraded, "circuit half-open"
	}
	if n := m.Breaker.Snapshot.Rejected; n > 0 {
		return StatusDegraded, fmt.Sprintf("%d rejected", n)
	}
	return StatusHealthy, ""
}

func commandDetails(m resilience.CommandMetrics, s Status) map[string]any {
	snap := m.Breaker.Snapshot
	return map[string]any{
		"status":        s.String(),
		"circuit":       m.Breaker.State.String(),
		"error_pct":     snap.ErrorPercentage(),
		"volume":        snap.TotalVolume(),
		"short_circuit": snap.ShortCircuited,
		"active":        m.Bulkhead.Active,
		"queued":        m.Bulkhead.Queued,
		"core_size":     m.Bulkhead.CoreSize,
	}
}
