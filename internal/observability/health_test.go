package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckerAggregatesStatus(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("nats", func(ctx context.Context) CheckResult {
		return CheckResult{Name: "nats", Status: "healthy"}
	})
	hc.RegisterCheck("cache", func(ctx context.Context) CheckResult {
		return CheckResult{Name: "cache", Status: "degraded", Message: "redis unreachable"}
	})

	result := hc.Run(context.Background())
	if result.Status != "degraded" {
		t.Fatalf("expected overall status degraded, got %s", result.Status)
	}
	if len(result.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(result.Checks))
	}
}

func TestHandlerHandleHealthReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("nats", func(ctx context.Context) CheckResult {
		return CheckResult{Name: "nats", Status: "unhealthy", Message: "connection refused"}
	})
	h := NewHandler(hc, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.HandleHealth(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	var result HealthCheckResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("expected valid JSON body: %v", err)
	}
	if result.Status != "unhealthy" {
		t.Fatalf("expected unhealthy status in body, got %s", result.Status)
	}
}

func TestHandlerHandleLivenessIgnoresChecks(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("nats", func(ctx context.Context) CheckResult {
		return CheckResult{Name: "nats", Status: "unhealthy"}
	})
	h := NewHandler(hc, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rr := httptest.NewRecorder()
	h.HandleLiveness(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected liveness to always return 200, got %d", rr.Code)
	}
}
