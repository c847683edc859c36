package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"wuuf-analytics/internal/errors"
	"wuuf-analytics/internal/models"
	"wuuf-analytics/internal/observability"
	"wuuf-analytics/internal/services"
	"wuuf-analytics/internal/source"
)

const (
	apiVersion  = "1.0.0"
	cacheMaxAge = "public, max-age=300"
)

var validate = validator.New()

var reportHeaders = map[string]string{"Cache-Control": cacheMaxAge}

type APIHandlers struct {
	analytics *services.Analytics
	loader    source.Loader
	logger    *slog.Logger
}

// NewAPIHandlers builds the REST handlers. loader backs the source
// diagnostics endpoint and may be nil.
func NewAPIHandlers(analytics *services.Analytics, loader source.Loader, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		loader:    loader,
		logger:    logger,
	}
}

// ParseFilter reads and validates the report filter parameters. Every
// surface that accepts a filter goes through it.
func ParseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	f := models.Filter{
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
		Size:       q.Get("size"),
		Collection: q.Get("collection"),
		Breed:      q.Get("breed"),
		Channel:    q.Get("channel"),
	}
	if err := validate.Struct(f); err != nil {
		return f, errors.ValidationWrap(err, "invalid filter parameters")
	}
	return f, nil
}

// serveReport runs one filtered report and writes it with the filter echo
// and cache status.
func serveReport[T any](h *APIHandlers, w http.ResponseWriter, r *http.Request, fetch func(context.Context, models.Filter) (T, error)) {
	requestID := observability.GetRequestID(r.Context())

	f, err := ParseFilter(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	data, err := fetch(r.Context(), f)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteReport(w, errors.ReportResponse{
		Data:           data,
		FiltersApplied: f.Applied(),
		CacheInfo:      h.analytics.CacheInfo(),
	}, reportHeaders)
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.Overview)
}

func (h *APIHandlers) HandleDaily(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.Daily)
}

func (h *APIHandlers) HandleByCollection(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.ByCollection)
}

func (h *APIHandlers) HandleByBreed(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.ByBreed)
}

func (h *APIHandlers) HandleBySize(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.BySize)
}

func (h *APIHandlers) HandleRepeatRate(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.RepeatRate)
}

func (h *APIHandlers) HandleLifetimeValue(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.LifetimeValue)
}

func (h *APIHandlers) HandleAcquisition(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.Acquisition)
}

func (h *APIHandlers) HandleSizeDistribution(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.SizeDistribution)
}

func (h *APIHandlers) HandleColorPreferences(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.ColorPreferences)
}

func (h *APIHandlers) HandleMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.analytics.MonthlyTrends)
}

type topCustomersQuery struct {
	Limit int `validate:"min=1,max=100"`
}

type topCustomersFilters struct {
	*models.FiltersApplied
	Limit int `json:"limit"`
}

func (h *APIHandlers) HandleTopCustomers(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	query := topCustomersQuery{Limit: services.DefaultTopCustomers}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errors.WriteError(w, h.logger, errors.Validation("limit must be an integer"), requestID)
			return
		}
		query.Limit = n
	}
	if err := validate.Struct(query); err != nil {
		errors.WriteError(w, h.logger, errors.ValidationWrap(err, "limit must be between 1 and 100"), requestID)
		return
	}

	f, err := ParseFilter(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	data, err := h.analytics.TopCustomers(r.Context(), f, query.Limit)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteReport(w, errors.ReportResponse{
		Data:           data,
		FiltersApplied: topCustomersFilters{FiltersApplied: f.Applied(), Limit: query.Limit},
		CacheInfo:      h.analytics.CacheInfo(),
	}, reportHeaders)
}

// HandleFilterOptions lists filter values over the whole dataset; it takes
// no filters and echoes none.
func (h *APIHandlers) HandleFilterOptions(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	data, err := h.analytics.FilterOptions(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteReport(w, errors.ReportResponse{
		Data:      data,
		CacheInfo: h.analytics.CacheInfo(),
	}, reportHeaders)
}

// HandleRefresh forces a reload. A failed reload with a cached snapshot
// still succeeds and reports the stale snapshot's age.
func (h *APIHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	info, err := h.analytics.Refresh(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccess(w, map[string]any{
		"message":    "Data refresh requested",
		"cache_info": info,
	})
}

func (h *APIHandlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]any{
		"status":  "online",
		"message": "WUUF Analytics API is running",
		"version": apiVersion,
		"endpoints": map[string]string{
			"dashboard":               "/dashboard",
			"health":                  "/health",
			"metrics":                 "/metrics",
			"sales_overview":          "/sales/overview",
			"daily_sales":             "/sales/daily",
			"sales_by_collection":     "/sales/by-collection",
			"sales_by_breed":          "/sales/by-breed",
			"sales_by_size":           "/sales/by-size",
			"filter_options":          "/sales/filter-options",
			"customer_repeat_rate":    "/sales/customer-repeat-rate",
			"customer_lifetime_value": "/sales/customer-lifetime-value",
			"top_customers":           "/sales/top-customers",
			"customer_acquisition":    "/sales/customer-acquisition",
			"size_distribution":       "/sales/size-distribution",
			"color_preferences":       "/sales/color-preferences",
			"monthly_trends":          "/sales/monthly-trends",
			"refresh":                 "/sales/refresh",
			"source_diagnostics":      "/diagnostics/source",
		},
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   apiVersion,
		"cache":     h.analytics.CacheInfo(),
	})
}

// HandleSourceDiagnostics checks that the source is reachable and carries
// every required table.
func (h *APIHandlers) HandleSourceDiagnostics(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		errors.WriteError(w, h.logger, errors.ServiceUnavailable("no source configured"),
			observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccess(w, source.Diagnose(r.Context(), h.loader))
}
