package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// Check timeouts used by the handlers.
const (
	readinessTimeout = 5 * time.Second
	detailedTimeout  = 10 * time.Second
)

// HTTPStatus maps a health status to a response code: degraded services
// still accept traffic.
func (s Status) HTTPStatus() int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// LivenessHandler returns an HTTP handler for liveness checks. It only
// reports that the process is serving requests.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "OK")
	}
}

// ReadinessHandler returns an HTTP handler for readiness checks that runs
// every check in agg.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := agg.OverallStatus(agg.CheckAll(ctx))

		body := "OK"
		switch status {
		case StatusDegraded:
			body = "DEGRADED"
		case StatusUnhealthy:
			body = "UNHEALTHY"
		}
		writeText(w, status.HTTPStatus(), body)
	}
}

// HealthResponse is the JSON response for the detailed health endpoint.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Checks    map[string]CheckResponse `json:"checks,omitempty"`
}

// CheckResponse is the JSON response for a single health check.
type CheckResponse struct {
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func newCheckResponse(r Result) CheckResponse {
	resp := CheckResponse{
		Status:   r.Status.String(),
		Message:  r.Message,
		Duration: r.Duration.String(),
		Details:  r.Details,
	}
	if r.Error != nil {
		resp.Error = r.Error.Error()
	}
	return resp
}

// DetailedHandler returns an HTTP handler reporting every check as JSON.
func DetailedHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), detailedTimeout)
		defer cancel()

		results := agg.CheckAll(ctx)
		status := agg.OverallStatus(results)

		response := HealthResponse{
			Status:    status.String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    make(map[string]CheckResponse, len(results)),
		}
		for name, result := range results {
			response.Checks[name] = newCheckResponse(result)
		}

		writeJSON(w, status.HTTPStatus(), response)
	}
}

// SingleCheckHandler returns an HTTP handler for checking a single component.
func SingleCheckHandler(agg *Aggregator, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		result, err := agg.Check(ctx, name)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, result.Status.HTTPStatus(), newCheckResponse(result))
	}
}

// CommandResponse describes one call type in the commands endpoint.
type CommandResponse struct {
	CallType       string  `json:"call_type"`
	Status         string  `json:"status"`
	Circuit        string  `json:"circuit"`
	ErrorPct       float64 `json:"error_pct"`
	Volume         int64   `json:"volume"`
	Success        int64   `json:"success"`
	Failure        int64   `json:"failure"`
	Timeout        int64   `json:"timeout"`
	Rejected       int64   `json:"rejected"`
	ShortCircuited int64   `json:"short_circuited"`
	Active         int     `json:"active"`
	Queued         int     `json:"queued"`
	CoreSize       int     `json:"core_size"`
	MaxQueueSize   int     `json:"max_queue_size"`
}

// CommandsHandler returns an HTTP handler listing the breaker and bulkhead
// state of every call type known to source, sorted by call type. The
// response code follows the worst command status.
func CommandsHandler(source CommandMetricsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		metrics := source.AllMetrics()
		sort.Slice(metrics, func(i, j int) bool { return metrics[i].CallType < metrics[j].CallType })

		worst := StatusHealthy
		out := make([]CommandResponse, 0, len(metrics))
		for _, m := range metrics {
			s, _ := commandStatus(m)
			worst = Worst(worst, s)

			snap := m.Breaker.Snapshot
			out = append(out, CommandResponse{
				CallType:       m.CallType,
				Status:         s.String(),
				Circuit:        m.Breaker.State.String(),
				ErrorPct:       snap.ErrorPercentage(),
				Volume:         snap.TotalVolume(),
				Success:        snap.Success,
				Failure:        snap.Failure,
				Timeout:        snap.Timeout,
				Rejected:       snap.Rejected,
				ShortCircuited: snap.ShortCircuited,
				Active:         m.Bulkhead.Active,
				Queued:         m.Bulkhead.Queued,
				CoreSize:       m.Bulkhead.CoreSize,
				MaxQueueSize:   m.Bulkhead.MaxQueueSize,
			})
		}
		writeJSON(w, worst.HTTPStatus(), out)
	}
}

// RegisterHandlers registers the health handlers on mux. When source is
// non-nil, /health/commands lists every call type.
func RegisterHandlers(mux *http.ServeMux, agg *Aggregator, source CommandMetricsSource) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/readyz", ReadinessHandler(agg))
	mux.HandleFunc("/health", DetailedHandler(agg))
	if source != nil {
		mux.HandleFunc("/health/commands", CommandsHandler(source))
	}
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
