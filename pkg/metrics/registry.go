// Package metrics provides centralized Prometheus metrics for the crawler.
//
// All metrics follow the naming convention:
// tiscrawler_<category>_<metric_name>_<unit>
//
// Example:
//
//	registry := metrics.DefaultRegistry()
//	registry.Crawl().NodesFetchedTotal.Inc()
//	registry.Cache().HitsTotal.Inc()
package metrics

import (
	"sync"
)

// MetricCategory represents the category of a metric.
type MetricCategory string

const (
	// CategoryCrawl covers traversal, fetch and validation counters.
	CategoryCrawl MetricCategory = "crawl"

	// CategoryCache covers the API response cache.
	CategoryCache MetricCategory = "cache"
)

// MetricsRegistry is the central registry for all Prometheus metrics.
// Provides organized access to metrics by category (Crawl, Cache).
//
// Thread-safe: All Prometheus metrics are thread-safe by design.
// Singleton: Use DefaultRegistry() to get the global instance.
type MetricsRegistry struct {
	namespace string

	crawl     *CrawlMetrics
	cache     *CacheMetrics
	crawlOnce sync.Once
	cacheOnce sync.Once
}

var (
	defaultRegistry     *MetricsRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the global singleton MetricsRegistry.
// Safe for concurrent use. Initialized once on first call.
func DefaultRegistry() *MetricsRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewMetricsRegistry("tiscrawler")
	})
	return defaultRegistry
}

// NewMetricsRegistry creates a new MetricsRegistry with the specified namespace.
// Most callers should use DefaultRegistry() instead.
func NewMetricsRegistry(namespace string) *MetricsRegistry {
	if namespace == "" {
		namespace = "tiscrawler"
	}
	return &MetricsRegistry{namespace: namespace}
}

// Crawl returns the Crawl metrics manager, lazy-initialized on first access.
func (r *MetricsRegistry) Crawl() *CrawlMetrics {
	r.crawlOnce.Do(func() {
		r.crawl = NewCrawlMetrics(r.namespace)
	})
	return r.crawl
}

// Cache returns the Cache metrics manager, lazy-initialized on first access.
func (r *MetricsRegistry) Cache() *CacheMetrics {
	r.cacheOnce.Do(func() {
		r.cache = NewCacheMetrics(r.namespace)
	})
	return r.cache
}

// Namespace returns the configured namespace for this registry.
func (r *MetricsRegistry) Namespace() string {
	return r.namespace
}
