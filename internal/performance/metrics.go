package performance

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus series fed by the analyzer. Labels carry
// normalized patterns, never raw keys, and series are dropped when the
// analyzer stops tracking a pattern.
type Metrics struct {
	Hits          *prometheus.CounterVec
	Misses        *prometheus.CounterVec
	Invalidations *prometheus.CounterVec
	Retrieval     *prometheus.HistogramVec
	Fallback      *prometheus.HistogramVec
}

// NewMetrics creates and registers all analyzer metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_cache_hits_total",
		Help: "Cache hits by key pattern",
	}, []string{"pattern"})

	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_cache_misses_total",
		Help: "Cache misses by key pattern",
	}, []string{"pattern"})

	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_cache_invalidated_entries_total",
		Help: "Entries removed by invalidations, by key or pattern",
	}, []string{"pattern"})

	retrieval := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "identity_cache_retrieval_seconds",
		Help:    "Time spent serving cache hits",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"pattern"})

	fallback := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "identity_cache_fallback_seconds",
		Help:    "Time spent loading from the source of truth after a miss",
		Buckets: prometheus.DefBuckets,
	}, []string{"pattern"})

	reg.MustRegister(hits, misses, invalidations, retrieval, fallback)

	return &Metrics{
		Hits:          hits,
		Misses:        misses,
		Invalidations: invalidations,
		Retrieval:     retrieval,
		Fallback:      fallback,
	}
}

// Forget deletes every series labelled with pattern
func (m *Metrics) Forget(pattern string) {
	m.Hits.DeleteLabelValues(pattern)
	m.Misses.DeleteLabelValues(pattern)
	m.Invalidations.DeleteLabelValues(pattern)
	m.Retrieval.DeleteLabelValues(pattern)
	m.Fallback.DeleteLabelValues(pattern)
}
