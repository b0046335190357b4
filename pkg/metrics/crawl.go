package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CrawlMetrics aggregates counters emitted by the traversal orchestrator,
// the adaptive fetcher and the path/name validator.
type CrawlMetrics struct {
	NodesFetchedTotal     prometheus.Counter
	TimeoutRetriesTotal   prometheus.Counter
	DepthReductionsTotal  prometheus.Counter
	FailedNodesTotal      prometheus.Counter
	BranchesPrunedTotal   prometheus.Counter
	ArtifactsEmittedTotal *prometheus.CounterVec
	ValidationErrorsTotal *prometheus.CounterVec
	RunDuration           prometheus.Histogram
}

// NewCrawlMetrics creates a new CrawlMetrics aggregator under the given namespace.
func NewCrawlMetrics(namespace string) *CrawlMetrics {
	return &CrawlMetrics{
		NodesFetchedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "nodes_fetched_total",
			Help:      "Total number of catalog tree nodes fetched.",
		}),
		TimeoutRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "timeout_retries_total",
			Help:      "Total number of fetch attempts that timed out and were retried at a reduced depth.",
		}),
		DepthReductionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "depth_reductions_total",
			Help:      "Total number of times a node's stored fetch-depth override was lowered, after timeouts or a slow response.",
		}),
		FailedNodesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "failed_nodes_total",
			Help:      "Total number of nodes abandoned after exhausting the retry schedule.",
		}),
		BranchesPrunedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "branches_pruned_total",
			Help:      "Total number of subtrees skipped by an exclude pattern.",
		}),
		ArtifactsEmittedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "artifacts_emitted_total",
			Help:      "Total number of artifact records emitted, by component name.",
		}, []string{"component"}),
		ValidationErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "validation_errors_total",
			Help:      "Total number of path/naming deviations found, by deviation type.",
		}, []string{"deviation_type"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a full crawl run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}
