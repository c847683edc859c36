// Package metrics holds the Prometheus collectors of the analytics service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Snapshot cache
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wuuf_cache_requests_total",
			Help: "Snapshot lookups by outcome (hit, miss, stale)",
		},
		[]string{"result"},
	)

	CacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wuuf_cache_refreshes_total",
			Help: "Snapshot reload attempts by status",
		},
		[]string{"status"},
	)

	SnapshotRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wuuf_snapshot_records",
			Help: "Transactions in the current snapshot",
		},
	)

	// Source tables
	TableLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wuuf_table_load_duration_seconds",
			Help:    "Duration of source table loads",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"table"},
	)

	TableLoadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wuuf_table_load_errors_total",
			Help: "Failed source table loads",
		},
		[]string{"table"},
	)

	TableRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wuuf_table_rows",
			Help: "Rows kept from the last load of each source table",
		},
		[]string{"table"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wuuf_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wuuf_api_requests_total",
			Help: "API requests by route and status",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wuuf_api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)
