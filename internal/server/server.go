package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wuuf-analytics/internal/config"
	"wuuf-analytics/internal/handlers"
	"wuuf-analytics/internal/middleware"
	"wuuf-analytics/internal/services"
	"wuuf-analytics/internal/source"
)

type Server struct {
	router      chi.Router
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

// NewServer wires the REST, SSE and dashboard routes. loader backs the
// source diagnostics endpoint and may be nil.
func NewServer(analytics *services.Analytics, loader source.Loader, logger *slog.Logger, cfg *config.Config, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, loader, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.setupRoutes(cfg, templateHandlers)
	return s
}

func (s *Server) setupRoutes(cfg *config.Config, templateHandlers *TemplateHandlers) {
	r := s.router
	r.Use(middleware.Metrics())

	r.Get("/", s.apiHandlers.HandleRoot)
	r.Get("/health", s.apiHandlers.HandleHealth)
	r.Get("/diagnostics/source", s.apiHandlers.HandleSourceDiagnostics)
	if templateHandlers != nil && templateHandlers.Dashboard != nil {
		r.Get("/dashboard", templateHandlers.Dashboard)
	}
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	r.Route("/sales", func(r chi.Router) {
		r.Get("/overview", s.apiHandlers.HandleOverview)
		r.Get("/daily", s.apiHandlers.HandleDaily)
		r.Get("/by-collection", s.apiHandlers.HandleByCollection)
		r.Get("/by-breed", s.apiHandlers.HandleByBreed)
		r.Get("/by-size", s.apiHandlers.HandleBySize)
		r.Get("/filter-options", s.apiHandlers.HandleFilterOptions)
		r.Get("/customer-repeat-rate", s.apiHandlers.HandleRepeatRate)
		r.Get("/customer-lifetime-value", s.apiHandlers.HandleLifetimeValue)
		r.Get("/top-customers", s.apiHandlers.HandleTopCustomers)
		r.Get("/customer-acquisition", s.apiHandlers.HandleAcquisition)
		r.Get("/size-distribution", s.apiHandlers.HandleSizeDistribution)
		r.Get("/color-preferences", s.apiHandlers.HandleColorPreferences)
		r.Get("/monthly-trends", s.apiHandlers.HandleMonthlyTrends)

		r.With(middleware.RefreshLimit(cfg.Security.RefreshLimitPerMinute, s.logger)).
			Post("/refresh", s.apiHandlers.HandleRefresh)
	})

	r.Route("/sse", func(r chi.Router) {
		r.Get("/overview", s.sseHandlers.HandleOverview)
		r.Get("/collections", s.sseHandlers.HandleCollections)
		r.Get("/monthly-trends", s.sseHandlers.HandleMonthlyTrends)
		r.Get("/top-customers", s.sseHandlers.HandleTopCustomers)
		r.Get("/refresh-all", s.sseHandlers.HandleRefreshAll)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
