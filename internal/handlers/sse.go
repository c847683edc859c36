package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/starfederation/datastar-go/datastar"

	"wuuf-analytics/internal/models"
	"wuuf-analytics/internal/services"
)

const (
	maxTableRows    = 50
	maxTopCustomers = 10
)

var overviewTemplate = template.Must(template.New("overview").Parse(`
<div id="overview-content">
<div class="metric"><span>Revenue</span><strong>${{printf "%.2f" .TotalRevenue}}</strong></div>
<div class="metric"><span>Profit</span><strong>${{printf "%.2f" .TotalProfit}}</strong></div>
<div class="metric"><span>Orders</span><strong>{{.TotalOrders}}</strong></div>
<div class="metric"><span>Units</span><strong>{{.TotalQuantity}}</strong></div>
<div class="metric"><span>Avg order</span><strong>${{printf "%.2f" .AverageOrderValue}}</strong></div>
</div>`))

var collectionTableTemplate = template.Must(template.New("collectionTable").Parse(`
<div id="collection-content">
<table class="modern-table">
<thead><tr><th>Collection</th><th>Revenue</th><th>Profit</th><th>Units</th><th>Orders</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.Collection}}</td>
<td><strong>${{printf "%.2f" .Revenue}}</strong></td>
<td>${{printf "%.2f" .Profit}}</td>
<td>{{.Quantity}}</td>
<td>{{.Orders}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var errorTemplate = template.Must(template.New("error").Parse(
	`<div id="{{.ID}}" class="error-banner">{{.Message}}</div>`))

// SSEHandlers push dashboard fragments and chart signals over datastar.
type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := t.Execute(&buf, data)
	return buf.String(), err
}

func limitRows[T any](rows []T, n int) []T {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

// patchError replaces the target fragment with an error banner.
func (h *SSEHandlers) patchError(sse *datastar.ServerSentEventGenerator, id string, err error) {
	h.logger.Error("sse report failed", "target", id, "error", err)
	html, rerr := render(errorTemplate, map[string]string{"ID": id, "Message": err.Error()})
	if rerr != nil {
		h.logger.Error("render error banner", "error", rerr)
		return
	}
	sse.PatchElements(html)
}

func (h *SSEHandlers) patchSignals(sse *datastar.ServerSentEventGenerator, signals map[string]any) bool {
	data, err := json.Marshal(signals)
	if err != nil {
		h.logger.Error("marshal signals", "error", err)
		return false
	}
	sse.PatchSignals(data)
	return true
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	f, err := ParseFilter(r)
	if err != nil {
		h.patchError(sse, "overview-content", err)
		return
	}

	data, err := h.analytics.Overview(r.Context(), f)
	if err != nil {
		h.patchError(sse, "overview-content", err)
		return
	}

	html, err := render(overviewTemplate, data)
	if err != nil {
		h.logger.Error("render overview", "error", err)
		return
	}
	sse.PatchElements(html)
	flush(w)
}

func (h *SSEHandlers) HandleCollections(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	f, err := ParseFilter(r)
	if err != nil {
		h.patchError(sse, "collection-content", err)
		return
	}

	data, err := h.analytics.ByCollection(r.Context(), f)
	if err != nil {
		h.patchError(sse, "collection-content", err)
		return
	}

	html, err := render(collectionTableTemplate, limitRows(data, maxTableRows))
	if err != nil {
		h.logger.Error("render collection table", "error", err)
		return
	}
	sse.PatchElements(html)
	flush(w)
}

func (h *SSEHandlers) HandleMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	f, err := ParseFilter(r)
	if err != nil {
		h.patchError(sse, "monthly-content", err)
		return
	}

	data, err := h.analytics.MonthlyTrends(r.Context(), f)
	if err != nil {
		h.patchError(sse, "monthly-content", err)
		return
	}

	if !h.patchSignals(sse, map[string]any{"monthlyData": data}) {
		return
	}
	sse.PatchElements(`<div id="monthly-content">Monthly trends loaded</div>`)
	flush(w)
}

func (h *SSEHandlers) HandleTopCustomers(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	f, err := ParseFilter(r)
	if err != nil {
		h.patchError(sse, "customers-content", err)
		return
	}

	data, err := h.analytics.TopCustomers(r.Context(), f, maxTopCustomers)
	if err != nil {
		h.patchError(sse, "customers-content", err)
		return
	}

	if !h.patchSignals(sse, map[string]any{"customersData": data}) {
		return
	}
	sse.PatchElements(`<div id="customers-content">Top customers loaded</div>`)
	flush(w)
}

// HandleRefreshAll forces a reload and then pushes every dashboard panel
// from one summary.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	f, err := ParseFilter(r)
	if err != nil {
		h.patchError(sse, "refresh-status", err)
		return
	}

	if _, err := h.analytics.Refresh(r.Context()); err != nil {
		h.patchError(sse, "refresh-status", err)
		return
	}

	summary, err := h.analytics.Dashboard(r.Context(), f)
	if err != nil {
		h.patchError(sse, "refresh-status", err)
		return
	}

	overview, err := render(overviewTemplate, summary.Overview)
	if err != nil {
		h.logger.Error("render overview", "error", err)
		return
	}
	sse.PatchElements(overview)

	collections, err := render(collectionTableTemplate, limitRows(summary.Collections, maxTableRows))
	if err != nil {
		h.logger.Error("render collection table", "error", err)
		return
	}
	sse.PatchElements(collections)

	if !h.patchSignals(sse, summarySignals(summary)) {
		return
	}
	flush(w)
}

func summarySignals(s models.DashboardSummary) map[string]any {
	return map[string]any{
		"monthlyData":   s.Monthly,
		"customersData": s.TopCustomers,
		"sizeData":      s.SizeShares,
		"recordsInView": s.RecordsInView,
		"cacheInfo":     s.CacheInfo,
	}
}
