package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wuuf-analytics/internal/config"
	"wuuf-analytics/internal/middleware"
	"wuuf-analytics/internal/services"
	"wuuf-analytics/internal/source"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			EnableRateLimit:       true,
			RateLimitRPS:          100,
			RateLimitBurst:        50,
			RefreshLimitPerMinute: 6,
			AllowedOrigins:        []string{"https://wuuf.example"},
			TrustedProxies:        []string{"127.0.0.1"},
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func writeTables(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tables := map[string]string{
		"Orders.csv": "Order_ID,Order_Date,Channel,Customer_Name\n" +
			"O1,2024-01-05,Instagram,Alice\n" +
			"O2,2024-02-10,Facebook,Bob\n",
		"Order_Items.csv": "Order_ID,SKU,Shirt_Color,Size,Qty,Line_Subtotal,Line_Profit\n" +
			"O1,WUUF-001-WH-M,White,M,2,500,300\n" +
			"O2,WUUF-002-BK-L,Black,L,1,300,180\n",
		"Products.csv": "SKU,Product_Name,Dog_Breed\n" +
			"WUUF-001-WH-M,Corgi Tee,Corgi\n" +
			"WUUF-002-BK-L,Pug Tee,Pug\n",
	}
	for name, content := range tables {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestHandler(t *testing.T, cfg *config.Config, dir string) http.Handler {
	t.Helper()
	loader := source.NewCSVLoader(dir)
	cache := services.NewTransactionCache(services.SourceLoadFunc(loader), services.WithCacheLogger(testLogger))
	analytics := services.NewAnalytics(cache, testLogger)
	return newHandler(cfg, analytics, loader, middleware.NewRateLimiter(cfg.Security), testLogger)
}

func TestHandler_Dashboard(t *testing.T) {
	h := newTestHandler(t, testConfig(), writeTables(t))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard?breed=Corgi", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != cacheMaxAge {
		t.Errorf("Cache-Control = %q", cc)
	}
	body := w.Body.String()
	if !strings.Contains(body, "$500.00") || !strings.Contains(body, "1 records in view") {
		t.Errorf("dashboard should reflect the breed filter:\n%s", body)
	}
}

func TestHandler_DashboardRejectsInvalidFilter(t *testing.T) {
	h := newTestHandler(t, testConfig(), writeTables(t))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard?breed="+strings.Repeat("x", 129), nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandler_DashboardSourceFailure(t *testing.T) {
	h := newTestHandler(t, testConfig(), filepath.Join(t.TempDir(), "absent"))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandler_Middleware(t *testing.T) {
	h := newTestHandler(t, testConfig(), writeTables(t))

	t.Run("request id minted", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Header().Get("X-Request-ID") == "" {
			t.Error("response should carry a request id")
		}
	})

	t.Run("request id propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "req-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if got := w.Header().Get("X-Request-ID"); got != "req-123" {
			t.Errorf("X-Request-ID = %q", got)
		}
	})

	t.Run("security headers", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("missing security headers: %v", w.Header())
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/sales/overview", nil)
		req.Header.Set("Origin", "https://wuuf.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://wuuf.example" {
			t.Errorf("Access-Control-Allow-Origin = %q", got)
		}
	})

	t.Run("error carries request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/sales/top-customers?limit=0", nil)
		req.Header.Set("X-Request-ID", "req-456")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		var resp struct {
			Success bool `json:"success"`
			Error   struct {
				RequestID string `json:"request_id"`
			} `json:"error"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if w.Code != http.StatusBadRequest || resp.Success || resp.Error.RequestID != "req-456" {
			t.Errorf("status = %d, response = %+v", w.Code, resp)
		}
	})
}

func TestHandler_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimitRPS = 1
	cfg.Security.RateLimitBurst = 2
	h := newTestHandler(t, cfg, writeTables(t))

	var limited int
	for range 5 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Error("expected some requests to be rate limited")
	}
}

func TestHandler_SSEThroughMiddleware(t *testing.T) {
	h := newTestHandler(t, testConfig(), writeTables(t))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse/monthly-trends", nil))

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "monthlyData") {
		t.Error("stream should carry the monthly signal")
	}
}
