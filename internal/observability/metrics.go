package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/temple-erp/temple-pos/internal/accounting"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	pipelineTotal    *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	entriesTotal     prometheus.Counter
	entryAmount      prometheus.Counter
}

// NewMetrics initialises the registry and the service metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "templepos_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "templepos_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	pipeline := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "templepos_sales_pipeline_total",
		Help: "Sales pipeline runs by operation and outcome.",
	}, []string{"operation", "outcome"})
	pipelineDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "templepos_sales_pipeline_duration_seconds",
		Help:    "Sales pipeline duration per operation.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation"})
	entries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "templepos_ledger_entries_total",
		Help: "Receipt journal entries posted.",
	})
	amount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "templepos_ledger_entry_amount_total",
		Help: "Sum of debit totals of posted receipt entries.",
	})
	registry.MustRegister(requests, duration, pipeline, pipelineDuration, entries, amount)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		pipelineTotal:    pipeline,
		pipelineDuration: pipelineDuration,
		entriesTotal:     entries,
		entryAmount:      amount,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObservePipeline records one create or cancel run.
func (m *Metrics) ObservePipeline(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pipelineTotal.WithLabelValues(operation, outcome).Inc()
	m.pipelineDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveEntry records a posted journal entry.
func (m *Metrics) ObserveEntry(entry accounting.Entry) {
	if m == nil {
		return
	}
	m.entriesTotal.Inc()
	m.entryAmount.Add(entry.DrTotal.InexactFloat64())
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
