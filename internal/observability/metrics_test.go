package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesDecisionCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.Decision("denied", "session_invalid")
	metrics.Decision("granted", "")

	body := scrape(t, metrics)
	if !strings.Contains(body, `atlas_access_decisions_total{outcome="denied",reason="session_invalid"} 1`) {
		t.Fatalf("expected denied counter, got: %s", body)
	}
	if !strings.Contains(body, `atlas_access_decisions_total{outcome="granted",reason=""} 1`) {
		t.Fatalf("expected granted counter, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/guarded")

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `atlas_http_requests_total{code="418",route="/guarded"} 1`) {
		t.Fatalf("expected request counter, got: %s", body)
	}
	if !strings.Contains(body, `atlas_http_request_duration_seconds_bucket{route="/guarded"`) {
		t.Fatalf("expected duration histogram, got: %s", body)
	}
}

func TestAuditCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.AuditDropped()
	metrics.AuditRetried()
	metrics.AuditRetried()

	body := scrape(t, metrics)
	if !strings.Contains(body, "atlas_audit_entries_dropped_total 1") {
		t.Fatalf("expected drop counter, got: %s", body)
	}
	if !strings.Contains(body, "atlas_audit_entries_retried_total 2") {
		t.Fatalf("expected retry counter, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.Decision("granted", "")
	m.AuditDropped()
	m.AuditRetried()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics handler, got %d", rr.Code)
	}

	passthrough := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr = httptest.NewRecorder()
	passthrough.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("nil metrics middleware must pass through, got %d", rr.Code)
	}
}
