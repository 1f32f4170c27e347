package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderlens_cache_hits_total",
			Help: "Total number of result cache hits.",
		},
		[]string{"query"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderlens_cache_misses_total",
			Help: "Total number of result cache misses.",
		},
		[]string{"query"},
	)
	cacheSharedFlightsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderlens_cache_shared_flights_total",
			Help: "Total number of callers that joined an in-flight computation instead of starting one.",
		},
	)
	warehouseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderlens_warehouse_queries_total",
			Help: "Total number of warehouse round-trips.",
		},
		[]string{"query"},
	)
	warehouseQueryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orderlens_warehouse_query_duration_seconds",
			Help:    "Warehouse round-trip latency by catalog query.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"query"},
	)
	warehouseReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderlens_warehouse_reconnects_total",
			Help: "Total number of warehouse session resets.",
		},
	)
	adhocRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderlens_adhoc_rejected_total",
			Help: "Total number of rejected ad-hoc queries.",
		},
		[]string{"reason"},
	)
	exportBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderlens_export_bytes_total",
			Help: "Total bytes uploaded by result exports.",
		},
		[]string{"format"},
	)
)

func init() {
	prometheus.MustRegister(
		cacheHitsTotal,
		cacheMissesTotal,
		cacheSharedFlightsTotal,
		warehouseQueriesTotal,
		warehouseQueryDurationSeconds,
		warehouseReconnectsTotal,
		adhocRejectedTotal,
		exportBytesTotal,
	)
}

func IncrementCacheHit(query string) {
	cacheHitsTotal.WithLabelValues(query).Inc()
}

func IncrementCacheMiss(query string) {
	cacheMissesTotal.WithLabelValues(query).Inc()
}

func IncrementSharedFlight() {
	cacheSharedFlightsTotal.Inc()
}

func ObserveWarehouseQuery(query string, elapsed time.Duration) {
	warehouseQueriesTotal.WithLabelValues(query).Inc()
	warehouseQueryDurationSeconds.WithLabelValues(query).Observe(elapsed.Seconds())
}

func IncrementWarehouseReconnects() {
	warehouseReconnectsTotal.Inc()
}

func IncrementAdHocRejected(reason string) {
	adhocRejectedTotal.WithLabelValues(reason).Inc()
}

func ObserveExportBytes(format string, size int64) {
	if size > 0 {
		exportBytesTotal.WithLabelValues(format).Add(float64(size))
	}
}
