package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wuuf-analytics/internal/source"
)

type envelope struct {
	Success        bool            `json:"success"`
	Data           json.RawMessage `json:"data"`
	FiltersApplied map[string]any  `json:"filters_applied"`
	CacheInfo      map[string]any  `json:"cache_info"`
	Error          *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func serve(t *testing.T, handler http.HandlerFunc, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	handler(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return w, env
}

func TestNewAPIHandlers(t *testing.T) {
	loader := source.NewCSVLoader(t.TempDir())
	analytics := createTestAnalytics(t, loader)
	h := NewAPIHandlers(analytics, loader, testLogger)

	if h.analytics != analytics || h.loader != loader || h.logger != testLogger {
		t.Error("NewAPIHandlers() should set every field")
	}
}

func TestAPIHandlers_HandleOverview(t *testing.T) {
	h := newTestAPI(t)

	w, env := serve(t, h.HandleOverview, http.MethodGet, "/sales/overview")
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("Cache-Control = %q", cc)
	}

	var overview struct {
		TotalRevenue  float64 `json:"total_revenue"`
		TotalOrders   int     `json:"total_orders"`
		TotalQuantity int     `json:"total_quantity"`
	}
	if err := json.Unmarshal(env.Data, &overview); err != nil {
		t.Fatal(err)
	}
	if overview.TotalRevenue != 1050 || overview.TotalOrders != 3 || overview.TotalQuantity != 4 {
		t.Errorf("overview = %+v", overview)
	}

	for _, key := range []string{"start_date", "end_date", "size", "collection", "breed", "channel"} {
		v, ok := env.FiltersApplied[key]
		if !ok || v != nil {
			t.Errorf("filters_applied[%q] = %v, want null", key, v)
		}
	}
	if env.CacheInfo["cached"] != true || env.CacheInfo["records_count"] != float64(3) {
		t.Errorf("cache_info = %v", env.CacheInfo)
	}
}

func TestAPIHandlers_FiltersEchoed(t *testing.T) {
	h := newTestAPI(t)

	_, env := serve(t, h.HandleOverview, http.MethodGet, "/sales/overview?size=M&channel=Instagram")
	if env.FiltersApplied["size"] != "M" || env.FiltersApplied["channel"] != "Instagram" {
		t.Errorf("filters_applied = %v", env.FiltersApplied)
	}

	var overview struct {
		TotalRevenue float64 `json:"total_revenue"`
		TotalOrders  int     `json:"total_orders"`
	}
	if err := json.Unmarshal(env.Data, &overview); err != nil {
		t.Fatal(err)
	}
	if overview.TotalRevenue != 500 || overview.TotalOrders != 1 {
		t.Errorf("filtered overview = %+v", overview)
	}
}

func TestAPIHandlers_InvalidFilter(t *testing.T) {
	h := newTestAPI(t)

	w, env := serve(t, h.HandleBySize, http.MethodGet, "/sales/by-size?size="+strings.Repeat("X", 65))
	if w.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestAPIHandlers_Reports(t *testing.T) {
	h := newTestAPI(t)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  string
		rows    int
	}{
		{"daily", h.HandleDaily, "/sales/daily", 3},
		{"by collection", h.HandleByCollection, "/sales/by-collection", 2},
		{"by breed", h.HandleByBreed, "/sales/by-breed", 2},
		{"by size", h.HandleBySize, "/sales/by-size", 3},
		{"lifetime value", h.HandleLifetimeValue, "/sales/customer-lifetime-value", 2},
		{"acquisition", h.HandleAcquisition, "/sales/customer-acquisition", 2},
		{"size distribution", h.HandleSizeDistribution, "/sales/size-distribution", 3},
		{"color preferences", h.HandleColorPreferences, "/sales/color-preferences", 2},
		{"monthly trends", h.HandleMonthlyTrends, "/sales/monthly-trends", 2},
		{"filtered by breed", h.HandleDaily, "/sales/daily?breed=Pug", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := serve(t, tt.handler, http.MethodGet, tt.target)
			if w.Code != http.StatusOK || !env.Success {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			var rows []map[string]any
			if err := json.Unmarshal(env.Data, &rows); err != nil {
				t.Fatal(err)
			}
			if len(rows) != tt.rows {
				t.Errorf("got %d rows, want %d: %s", len(rows), tt.rows, env.Data)
			}
		})
	}
}

func TestAPIHandlers_HandleRepeatRate(t *testing.T) {
	h := newTestAPI(t)

	_, env := serve(t, h.HandleRepeatRate, http.MethodGet, "/sales/customer-repeat-rate")
	var rate struct {
		TotalCustomers  int     `json:"total_customers"`
		RepeatCustomers int     `json:"repeat_customers"`
		RepeatRate      float64 `json:"repeat_rate"`
	}
	if err := json.Unmarshal(env.Data, &rate); err != nil {
		t.Fatal(err)
	}
	if rate.TotalCustomers != 2 || rate.RepeatCustomers != 1 || rate.RepeatRate != 50 {
		t.Errorf("repeat rate = %+v", rate)
	}
}

func TestAPIHandlers_LifetimeValueOptionalColumns(t *testing.T) {
	h := newTestAPI(t)

	_, env := serve(t, h.HandleLifetimeValue, http.MethodGet, "/sales/customer-lifetime-value")
	var rows []map[string]any
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		if _, ok := row["instagram"]; !ok {
			t.Errorf("row %v should carry instagram", row)
		}
		if _, ok := row["phone"]; ok {
			t.Errorf("row %v should not carry phone", row)
		}
	}
}

func TestAPIHandlers_HandleTopCustomers(t *testing.T) {
	h := newTestAPI(t)

	tests := []struct {
		name   string
		target string
		status int
		rows   int
	}{
		{"default limit", "/sales/top-customers", http.StatusOK, 2},
		{"limit one", "/sales/top-customers?limit=1", http.StatusOK, 1},
		{"limit zero", "/sales/top-customers?limit=0", http.StatusBadRequest, 0},
		{"limit too large", "/sales/top-customers?limit=101", http.StatusBadRequest, 0},
		{"limit not a number", "/sales/top-customers?limit=ten", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := serve(t, h.HandleTopCustomers, http.MethodGet, tt.target)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}

			var rows []struct {
				Rank     int    `json:"rank"`
				Customer string `json:"customer"`
			}
			if err := json.Unmarshal(env.Data, &rows); err != nil {
				t.Fatal(err)
			}
			if len(rows) != tt.rows {
				t.Fatalf("got %d rows, want %d", len(rows), tt.rows)
			}
			if rows[0].Rank != 1 || rows[0].Customer != "Alice" {
				t.Errorf("first row = %+v", rows[0])
			}
			if _, ok := env.FiltersApplied["limit"]; !ok {
				t.Errorf("filters_applied should echo the limit: %v", env.FiltersApplied)
			}
		})
	}
}

func TestAPIHandlers_HandleFilterOptions(t *testing.T) {
	h := newTestAPI(t)

	_, env := serve(t, h.HandleFilterOptions, http.MethodGet, "/sales/filter-options?size=M")
	if env.FiltersApplied != nil {
		t.Errorf("filter options should not echo filters, got %v", env.FiltersApplied)
	}

	var opts struct {
		Sizes     []string `json:"sizes"`
		Channels  []string `json:"channels"`
		DateRange struct {
			MinDate *string `json:"min_date"`
		} `json:"date_range"`
	}
	if err := json.Unmarshal(env.Data, &opts); err != nil {
		t.Fatal(err)
	}
	if strings.Join(opts.Sizes, ",") != "L,M,S" || strings.Join(opts.Channels, ",") != "Facebook,Instagram" {
		t.Errorf("options = %+v", opts)
	}
	if opts.DateRange.MinDate == nil || !strings.HasPrefix(*opts.DateRange.MinDate, "2024-01-05") {
		t.Errorf("min date = %v", opts.DateRange.MinDate)
	}
}

func TestAPIHandlers_SourceErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		loader := source.NewCSVLoader(filepath.Join(t.TempDir(), "absent"))
		h := NewAPIHandlers(createTestAnalytics(t, loader), loader, testLogger)

		w, env := serve(t, h.HandleOverview, http.MethodGet, "/sales/overview")
		if w.Code != http.StatusServiceUnavailable || env.Error == nil || env.Error.Code != "SOURCE_UNAVAILABLE" {
			t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
		}
	})

	t.Run("missing table", func(t *testing.T) {
		dir := fixtureDir(t)
		if err := os.Remove(filepath.Join(dir, "Products.csv")); err != nil {
			t.Fatal(err)
		}
		loader := source.NewCSVLoader(dir)
		h := NewAPIHandlers(createTestAnalytics(t, loader), loader, testLogger)

		w, env := serve(t, h.HandleDaily, http.MethodGet, "/sales/daily")
		if w.Code != http.StatusBadGateway || env.Error == nil || env.Error.Code != "TABLE_NOT_FOUND" {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		if !strings.Contains(env.Error.Message, "Available sheets: Order_Items, Orders") {
			t.Errorf("message = %q", env.Error.Message)
		}
	})
}

func TestAPIHandlers_HandleRefresh(t *testing.T) {
	h := newTestAPI(t)

	w, env := serve(t, h.HandleRefresh, http.MethodPost, "/sales/refresh")
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var data struct {
		Message   string         `json:"message"`
		CacheInfo map[string]any `json:"cache_info"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.CacheInfo["cached"] != true || data.CacheInfo["records_count"] != float64(3) {
		t.Errorf("cache_info = %v", data.CacheInfo)
	}
}

func TestAPIHandlers_HandleRootAndHealth(t *testing.T) {
	h := newTestAPI(t)

	_, env := serve(t, h.HandleRoot, http.MethodGet, "/")
	if !strings.Contains(string(env.Data), "/sales/customer-lifetime-value") {
		t.Errorf("root should list endpoints: %s", env.Data)
	}

	w, env := serve(t, h.HandleHealth, http.MethodGet, "/health")
	if w.Header().Get("Cache-Control") != "" {
		t.Error("health should not be cached")
	}
	var health struct {
		Status string         `json:"status"`
		Cache  map[string]any `json:"cache"`
	}
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.Cache["cached"] != false {
		t.Errorf("health = %+v", health)
	}
}

func TestAPIHandlers_HandleSourceDiagnostics(t *testing.T) {
	h := newTestAPI(t)

	_, env := serve(t, h.HandleSourceDiagnostics, http.MethodGet, "/diagnostics/source")
	var d struct {
		Success   bool     `json:"success"`
		Available []string `json:"available_sheets"`
	}
	if err := json.Unmarshal(env.Data, &d); err != nil {
		t.Fatal(err)
	}
	if !d.Success || len(d.Available) != 3 {
		t.Errorf("diagnosis = %+v", d)
	}

	noSource := NewAPIHandlers(h.analytics, nil, testLogger)
	w, _ := serve(t, noSource.HandleSourceDiagnostics, http.MethodGet, "/diagnostics/source")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status without a source = %d", w.Code)
	}
}
