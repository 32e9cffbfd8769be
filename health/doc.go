// Package health reports whether a service and its protected dependencies
// are fit to take traffic.
//
// A Checker reports a Status: Healthy, Degraded or Unhealthy. Two checkers
// are provided besides CheckerFunc:
//
//   - CommandChecker reads breaker and bulkhead metrics from a
//     resilience.Executor. An open circuit is Unhealthy. A half-open
//     circuit or bulkhead rejections in the rolling window are Degraded.
//   - PingChecker wraps any backend with a Ping method, such as the
//     Redis fallback cache.
//
// # Aggregating
//
//	agg := health.NewAggregator()
//	agg.Register("commands", health.NewCommandChecker("commands", exec))
//	agg.Register("fallback-cache", health.NewPingChecker("redis", redisCache))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// Checks run in parallel under one deadline. A check that misses it is
// reported Unhealthy with ErrCheckTimeout.
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg, exec)
//
// registers /healthz (liveness), /readyz (readiness), /health (JSON detail)
// and /health/commands (per call type breaker and bulkhead state).
// Degraded responds 200, Unhealthy responds 503.
package health
