package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheMetrics tracks the API response cache's hit/miss/reject behavior.
// Unlike a conventional LRU, this cache refuses inserts once full instead
// of evicting, so there is no eviction counter here.
type CacheMetrics struct {
	HitsTotal            prometheus.Counter
	MissesTotal          prometheus.Counter
	InsertsRejectedTotal prometheus.Counter
	Size                 prometheus.Gauge
}

// NewCacheMetrics creates a new CacheMetrics aggregator under the given namespace.
func NewCacheMetrics(namespace string) *CacheMetrics {
	return &CacheMetrics{
		HitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of response cache hits.",
		}),
		MissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of response cache misses.",
		}),
		InsertsRejectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "inserts_rejected_total",
			Help:      "Total number of cache inserts refused because the cache was full.",
		}),
		Size: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "size",
			Help:      "Current number of entries held in the response cache.",
		}),
	}
}
