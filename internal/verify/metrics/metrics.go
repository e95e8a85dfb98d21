package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the public verification gateway.
type Metrics struct {
	QueriesTotal  *prometheus.CounterVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	QueryDuration prometheus.Histogram
}

// New creates a Metrics instance with all gateway metrics registered.
func New() *Metrics {
	return &Metrics{
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "careledger_verify_queries_total",
			Help: "Public verification queries, by query type and outcome",
		}, []string{"query_type", "outcome"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careledger_verify_cache_hits_total",
			Help: "Verification lookups served from the cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careledger_verify_cache_misses_total",
			Help: "Verification lookups that fell through to the store",
		}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "careledger_verify_query_duration_seconds",
			Help:    "End to end verification query latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// RecordQuery counts one verification query.
func (m *Metrics) RecordQuery(queryType, outcome string) {
	m.QueriesTotal.WithLabelValues(queryType, outcome).Inc()
}

// RecordCacheHit counts a cache hit.
func (m *Metrics) RecordCacheHit() { m.CacheHits.Inc() }

// RecordCacheMiss counts a cache miss.
func (m *Metrics) RecordCacheMiss() { m.CacheMisses.Inc() }

// ObserveQueryDuration records query latency in seconds.
func (m *Metrics) ObserveQueryDuration(seconds float64) {
	m.QueryDuration.Observe(seconds)
}
