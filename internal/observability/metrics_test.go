package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/temple-erp/temple-pos/internal/accounting"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/pos/sales/{id}")

	req := httptest.NewRequest(http.MethodGet, "/api/pos/sales/1", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `templepos_http_requests_total{code="418",route="/api/pos/sales/{id}"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `templepos_http_request_duration_seconds_bucket{route="/api/pos/sales/{id}"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestPipelineMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePipeline("create", "success", 20*time.Millisecond)
	metrics.ObservePipeline("create", "inventory_error", 5*time.Millisecond)
	metrics.ObservePipeline("create", "success", 30*time.Millisecond)
	metrics.ObserveEntry(accounting.Entry{DrTotal: decimal.RequireFromString("150.50")})

	body := scrape(t, metrics)
	for _, want := range []string{
		`templepos_sales_pipeline_total{operation="create",outcome="success"} 2`,
		`templepos_sales_pipeline_total{operation="create",outcome="inventory_error"} 1`,
		`templepos_sales_pipeline_duration_seconds_count{operation="create"} 3`,
		`templepos_ledger_entries_total 1`,
		`templepos_ledger_entry_amount_total 150.5`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in: %s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObservePipeline("cancel", "success", time.Millisecond)
	metrics.ObserveEntry(accounting.Entry{})

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
