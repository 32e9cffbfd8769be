// Package observe provides tracing, metrics and logging for protected
// commands.
//
// NewCommandHooks turns an Observer into resilience.Hooks: every command
// gets a span, execution and fallback counters, a latency histogram and a
// log line carrying the caller's correlation id. RegisterExecutorGauges
// exports breaker state and bulkhead occupancy per call type.
package observe
