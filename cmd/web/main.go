package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"wuuf-analytics/internal/config"
	"wuuf-analytics/internal/errors"
	"wuuf-analytics/internal/handlers"
	"wuuf-analytics/internal/middleware"
	"wuuf-analytics/internal/observability"
	"wuuf-analytics/internal/server"
	"wuuf-analytics/internal/services"
	"wuuf-analytics/internal/source"
	"wuuf-analytics/internal/ui/templates"
)

const (
	version       = "1.0.0"
	renderTimeout = 10 * time.Second
	warmTimeout   = 60 * time.Second
	sweepInterval = time.Minute
	cacheMaxAge   = "public, max-age=300"
)

// dashboardHandler renders the landing page for the filters in the query.
func dashboardHandler(analytics *services.Analytics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		f, err := handlers.ParseFilter(r)
		if err != nil {
			errors.WriteError(w, logger, err, observability.GetRequestID(r.Context()))
			return
		}

		summary, err := analytics.Dashboard(ctx, f)
		if err != nil {
			errors.WriteError(w, logger, err, observability.GetRequestID(r.Context()))
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", cacheMaxAge)
		if err := templates.Dashboard(summary).Render(ctx, w); err != nil {
			logger.Error("render dashboard", "error", err)
		}
	}
}

// newHandler builds the routed server behind the middleware chain.
func newHandler(cfg *config.Config, analytics *services.Analytics, loader source.Loader, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardHandler(analytics, logger),
	}
	srv := server.NewServer(analytics, loader, logger, cfg, templateHandlers)

	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
	)
	return chain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"source", cfg.Source.Kind,
		"cache_ttl", cfg.Cache.TTL,
	)

	// The token source outlives startup, so it gets a background context.
	loader, err := source.New(context.Background(), cfg.Source, logger)
	if err != nil {
		logger.Error("failed to configure data source", "error", err)
		os.Exit(1)
	}

	cache := services.NewTransactionCache(
		services.SourceLoadFunc(loader),
		services.WithTTL(cfg.Cache.TTL),
		services.WithCacheLogger(logger),
	)
	analytics := services.NewAnalytics(cache, logger)

	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	// A failed warm-up is not fatal; requests retry the load.
	start := time.Now()
	if err := analytics.Warm(ctx); err != nil {
		logger.Warn("initial data load failed", "error", err)
	} else {
		logger.Info("initial data load completed",
			"duration", time.Since(start),
			"records", analytics.CacheInfo().RecordCount,
		)
	}

	limiter := middleware.NewRateLimiter(cfg.Security)
	stopSweep := make(chan struct{})
	go limiter.Run(sweepInterval, stopSweep)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, loader, limiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server.ShutdownTimeout)
	gracefulServer.RegisterShutdownHook("rate-limiter", func(ctx context.Context) error {
		close(stopSweep)
		return nil
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
