// Package fetch wraps the catalog HTTP client with the depth-adaptive
// retry policy: an unlimited-depth attempt that falls back to iterative
// depth reduction, a minimum-depth retry-backoff phase, and a final
// long-timeout attempt, all bypassing the response cache once the
// iterative phase gives up. Depth overrides learned for a node id are
// remembered for the remainder of the run and never increase.
package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tisops/tis-crawler/internal/catalog"
	"github.com/tisops/tis-crawler/internal/resilience"
	"github.com/tisops/tis-crawler/internal/tisapi"
	"github.com/tisops/tis-crawler/pkg/metrics"

	"log/slog"
)

// Config parameterizes the adaptive fetch policy per the crawler's
// optimization configuration section.
type Config struct {
	DefaultDepth             int // -1 means unlimited
	MinDepth                 int
	DepthReductionStep       int
	AdaptiveTimeoutThreshold time.Duration // T*
	DepthTimeoutConstant     time.Duration // k: per-depth-unit read timeout increment
	UnlimitedFetchTimeout    time.Duration
	RetryBackoffSchedule     []time.Duration
	FinalTimeout             time.Duration
}

// Fetcher owns the per-node depth-override table and drives the
// catalog client through the multi-phase retry policy.
type Fetcher struct {
	client  *tisapi.Client
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.CrawlMetrics

	mu        sync.Mutex
	overrides map[string]int
	failed    []string

	timeoutRetries  atomic.Int64
	depthReductions atomic.Int64
}

// New builds a Fetcher bound to client.
func New(client *tisapi.Client, cfg Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    client,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics.DefaultRegistry().Crawl(),
		overrides: make(map[string]int),
	}
}

// GetNode fetches the subtree rooted at id, returning the decoded node
// and the depth actually used (-1 for an unlimited fetch). A nil node
// means every phase failed; the id has also been recorded in
// FailedNodes.
func (f *Fetcher) GetNode(ctx context.Context, id string) (*catalog.Node, int) {
	override, hasOverride := f.override(id)

	if f.cfg.DefaultDepth == -1 && !hasOverride {
		if node, ok := f.tryUnlimited(ctx, id); ok {
			return node, -1
		}
		f.setOverride(id, 1)
		override, hasOverride = 1, true
	}

	startDepth := f.cfg.DefaultDepth
	if hasOverride {
		startDepth = override
	}
	if startDepth < f.cfg.MinDepth {
		startDepth = f.cfg.MinDepth
	}

	if node, depthUsed, ok := f.iterativePhase(ctx, id, startDepth); ok {
		return node, depthUsed
	}

	if node, ok := f.retryPhase(ctx, id); ok {
		return node, f.cfg.MinDepth
	}

	if node, ok := f.finalPhase(ctx, id); ok {
		return node, f.cfg.MinDepth
	}

	f.recordFailed(id)
	return nil, f.cfg.MinDepth
}

func (f *Fetcher) tryUnlimited(ctx context.Context, id string) (*catalog.Node, bool) {
	data, timedOut, _ := f.client.Get(ctx, f.client.NodeURL(id, -1), f.cfg.UnlimitedFetchTimeout, false)
	if timedOut || data == nil {
		return nil, false
	}
	node, err := catalog.Decode(data)
	if err != nil {
		return nil, false
	}
	return node, true
}

func (f *Fetcher) iterativePhase(ctx context.Context, id string, startDepth int) (*catalog.Node, int, bool) {
	currentDepth := startDepth

	for currentDepth >= f.cfg.MinDepth {
		readTimeout := f.readTimeoutForDepth(currentDepth)
		data, timedOut, elapsed := f.client.Get(ctx, f.client.NodeURL(id, currentDepth), readTimeout, false)

		if !timedOut && data != nil {
			node, err := catalog.Decode(data)
			if err != nil {
				return nil, 0, false
			}
			switch {
			case elapsed > f.cfg.AdaptiveTimeoutThreshold && currentDepth > f.cfg.MinDepth:
				f.reduceOverride(id, currentDepth-f.cfg.DepthReductionStep)
			case currentDepth < startDepth:
				// timeouts forced the depth down; remember the depth that
				// actually worked for this node
				f.reduceOverride(id, currentDepth)
			}
			return node, currentDepth, true
		}

		if !timedOut {
			// non-timeout error: stop the iterative phase immediately
			return nil, 0, false
		}

		f.metrics.TimeoutRetriesTotal.Inc()
		f.timeoutRetries.Add(1)
		currentDepth -= f.cfg.DepthReductionStep
	}

	return nil, 0, false
}

func (f *Fetcher) readTimeoutForDepth(depth int) time.Duration {
	return f.cfg.AdaptiveTimeoutThreshold + time.Duration(depth)*f.cfg.DepthTimeoutConstant
}

// retryPhase iterates the configured backoff schedule at minimum depth,
// bypassing the cache, with a read timeout that grows one step per
// attempt.
func (f *Fetcher) retryPhase(ctx context.Context, id string) (*catalog.Node, bool) {
	readTimeout := f.readTimeoutForDepth(f.cfg.MinDepth)

	for _, wait := range f.cfg.RetryBackoffSchedule {
		if !resilience.WaitWithContext(ctx, wait) {
			return nil, false
		}

		data, timedOut, _ := f.client.Get(ctx, f.client.NodeURL(id, f.cfg.MinDepth), readTimeout, true)
		if !timedOut && data != nil {
			if node, err := catalog.Decode(data); err == nil {
				return node, true
			}
		}
		readTimeout += f.cfg.DepthTimeoutConstant
	}

	return nil, false
}

// finalPhase makes one last attempt at MinDepth with the configured
// long timeout, bypassing the cache.
func (f *Fetcher) finalPhase(ctx context.Context, id string) (*catalog.Node, bool) {
	data, timedOut, _ := f.client.Get(ctx, f.client.NodeURL(id, f.cfg.MinDepth), f.cfg.FinalTimeout, true)
	if timedOut || data == nil {
		return nil, false
	}
	node, err := catalog.Decode(data)
	if err != nil {
		return nil, false
	}
	return node, true
}

// FetchShallow issues a single non-adaptive fetch at the given depth,
// used for the root and project discovery steps that only need one
// level of children rather than the full adaptive retry policy.
func (f *Fetcher) FetchShallow(ctx context.Context, id string, depth int) (*catalog.Node, bool) {
	data, timedOut, _ := f.client.Get(ctx, f.client.NodeURL(id, depth), f.readTimeoutForDepth(depth), false)
	if timedOut || data == nil {
		return nil, false
	}
	node, err := catalog.Decode(data)
	if err != nil {
		return nil, false
	}
	return node, true
}

func (f *Fetcher) override(id string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.overrides[id]
	return v, ok
}

// setOverride enforces monotonic non-increase: a new value only takes
// effect if it is lower than (or there is no) existing override. Reports
// whether the override changed.
func (f *Fetcher) setOverride(id string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.overrides[id]; ok && depth >= existing {
		return false
	}
	f.overrides[id] = depth
	return true
}

// reduceOverride clamps depth to MinDepth, stores it as id's override,
// and counts one depth reduction per override actually lowered.
func (f *Fetcher) reduceOverride(id string, depth int) {
	if depth < f.cfg.MinDepth {
		depth = f.cfg.MinDepth
	}
	if f.setOverride(id, depth) {
		f.metrics.DepthReductionsTotal.Inc()
		f.depthReductions.Add(1)
	}
}

func (f *Fetcher) recordFailed(id string) {
	f.mu.Lock()
	f.failed = append(f.failed, id)
	f.mu.Unlock()
	f.metrics.FailedNodesTotal.Inc()
	f.logger.Warn("fetch: node exhausted all retry phases", "nodeID", id)
}

// FailedNodes returns every node id that exhausted all retry phases
// during this run.
func (f *Fetcher) FailedNodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.failed))
	copy(out, f.failed)
	return out
}

// Stats is a point-in-time snapshot of the adaptive retry counters,
// folded into the Orchestrator's end-of-run statistics summary.
type Stats struct {
	TimeoutRetries  int64
	DepthReductions int64
}

// Stats returns the current timeout-retry / depth-reduction counters.
func (f *Fetcher) Stats() Stats {
	return Stats{
		TimeoutRetries:  f.timeoutRetries.Load(),
		DepthReductions: f.depthReductions.Load(),
	}
}
