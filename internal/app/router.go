package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/temple-erp/temple-pos/internal/observability"
	"github.com/temple-erp/temple-pos/internal/platform/httpx"
	"github.com/temple-erp/temple-pos/internal/sales"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SalesHandler   *sales.Handler
	AuthMiddleware func(http.Handler) http.Handler
	Metrics        *observability.Metrics
	Health         map[string]HealthCheck
	Now            func() time.Time
}

// NewRouter constructs the chi.Router with POS defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		checks := make(map[string]string, len(params.Health))
		for name, check := range params.Health {
			if err := check(r.Context()); err != nil {
				params.Logger.Warn("health check failed", slog.String("dependency", name), slog.Any("error", err))
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "up"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httpx.JSON(w, status, map[string]any{"status": state, "checks": checks})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.SalesHandler != nil {
		r.Route("/api/pos/sales", func(r chi.Router) {
			if params.AuthMiddleware != nil {
				r.Use(params.AuthMiddleware)
			}
			r.Use(RequestContext(params.Now))
			params.SalesHandler.MountRoutes(r)
		})
	}

	return r
}
