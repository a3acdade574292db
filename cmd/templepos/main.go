package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/temple-erp/temple-pos/internal/accounting"
	"github.com/temple-erp/temple-pos/internal/app"
	"github.com/temple-erp/temple-pos/internal/auth"
	"github.com/temple-erp/temple-pos/internal/inventory"
	"github.com/temple-erp/temple-pos/internal/observability"
	"github.com/temple-erp/temple-pos/internal/platform/cache"
	"github.com/temple-erp/temple-pos/internal/platform/db"
	"github.com/temple-erp/temple-pos/internal/sales"
	"github.com/temple-erp/temple-pos/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: 20, MaxConnLifetime: time.Hour})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Redis only backs the read cache and the cancel lock, so the service
	// keeps running without it.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, cache and locks disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	salesCache := cache.NewVersioned(redisClient, "sales", cfg.SalesCacheTTL)
	if err := salesCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("sales cache invalidation", slog.Any("error", err))
	}

	poster := accounting.NewPoster(accounting.NewResolver(), logger, metrics)
	coordinator := inventory.NewCoordinator(inventory.Config{AllowNegativeStock: cfg.InventoryAllowNegative}, logger)
	salesService := sales.NewService(
		sales.NewRepository(dbpool),
		coordinator,
		poster,
		sales.ServiceConfig{Live: cfg.IsProduction(), Debug: cfg.AppDebug},
		logger,
	).
		WithCache(salesCache).
		WithLocker(cache.NewLocker(redisClient, cfg.SalesCancelLockTTL)).
		WithIdempotency(idempotencyStore).
		WithAudit(shared.NewAuditLogger(dbpool)).
		WithMetrics(metrics)
	salesHandler := sales.NewHandler(logger, salesService, cfg.AppDebug, cfg.RateLimitPerMinute)

	authService := auth.NewService(auth.NewRepository(dbpool), cfg.JWTSecret, cfg.JWTIssuer)

	health := map[string]app.HealthCheck{
		"postgres": dbpool.Ping,
	}
	if redisClient != nil {
		health["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SalesHandler:   salesHandler,
		AuthMiddleware: auth.Middleware(authService, logger),
		Metrics:        metrics,
		Health:         health,
		Now:            time.Now,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
