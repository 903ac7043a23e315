package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// CheckResult is the outcome of a single named health check, e.g. "nats"
// or "cache".
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheckResult aggregates every registered check.
type HealthCheckResult struct {
	Status       string                 `json:"status"`
	Timestamp    time.Time              `json:"timestamp"`
	UptimeSecond int64                  `json:"uptime_seconds"`
	Checks       map[string]CheckResult `json:"checks"`
}

// HealthChecker runs a set of registered dependency checks on demand.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]func(context.Context) CheckResult
	startTime time.Time
}

// NewHealthChecker creates an empty health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:    make(map[string]func(context.Context) CheckResult),
		startTime: time.Now(),
	}
}

// RegisterCheck adds a named check, e.g. a NATS connection ping or a Redis
// round trip. cmd/mpsim-worker registers one check per optional dependency
// it was configured with.
func (hc *HealthChecker) RegisterCheck(name string, check func(context.Context) CheckResult) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// Run executes every registered check and aggregates the result. Overall
// status is "healthy" only if every check reports "healthy".
func (hc *HealthChecker) Run(ctx context.Context) HealthCheckResult {
	hc.mu.RLock()
	checks := make(map[string]func(context.Context) CheckResult, len(hc.checks))
	for name, check := range hc.checks {
		checks[name] = check
	}
	hc.mu.RUnlock()

	result := HealthCheckResult{
		Status:       "healthy",
		Timestamp:    time.Now(),
		UptimeSecond: int64(time.Since(hc.startTime).Seconds()),
		Checks:       make(map[string]CheckResult, len(checks)),
	}

	for name, check := range checks {
		r := check(ctx)
		result.Checks[name] = r
		if r.Status != "healthy" {
			result.Status = r.Status
		}
	}
	return result
}

// Handler serves the checker's results over HTTP.
type Handler struct {
	checker *HealthChecker
	logger  *slog.Logger
}

// NewHandler creates an HTTP handler for a HealthChecker.
func NewHandler(checker *HealthChecker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{checker: checker, logger: logger}
}

func (h *Handler) writeResult(w http.ResponseWriter, result HealthCheckResult) {
	status := http.StatusOK
	if result.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("failed to encode health check result", slog.String("error", err.Error()))
	}
}

// HandleHealth reports the result of every registered dependency check.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	h.writeResult(w, h.checker.Run(ctx))
}

// HandleLiveness reports only that the process is up, without touching
// any dependency.
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "alive"})
}

// HandleReadiness is identical to HandleHealth today; kept distinct
// because a worker mid-drain during shutdown may later want to report
// live-but-not-ready.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	h.writeResult(w, h.checker.Run(ctx))
}

// RegisterRoutes mounts the health endpoints on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /health/live", h.HandleLiveness)
	mux.HandleFunc("GET /health/ready", h.HandleReadiness)
}
