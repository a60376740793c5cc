package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nes_dashboard"

type Metrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryFailures *prometheus.CounterVec
	RowsLoaded    *prometheus.CounterVec
	LoadDuration  *prometheus.HistogramVec
	CacheRequests *prometheus.CounterVec
	Fallbacks     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		QueryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_query_duration_seconds",
			Help:      "Time spent running queries against the analytical store.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"table", "kind"}),
		QueryFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_query_failures_total",
			Help:      "Queries that failed and were answered with an empty result.",
		}, []string{"table"}),
		RowsLoaded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_rows_loaded_total",
			Help:      "Rows bulk loaded into the analytical store.",
		}, []string{"table"}),
		LoadDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Wall time of a dataset load, from fetch to indexed table.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"dataset", "source"}),
		CacheRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Local dataset cache lookups by result.",
		}, []string{"key", "result"}),
		Fallbacks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_fallbacks_total",
			Help:      "Loads that fell back to cached or demo data.",
		}, []string{"dataset", "fallback"}),
	}
}

// Nop returns metrics registered against a throwaway registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
