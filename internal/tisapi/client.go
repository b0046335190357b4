// Package tisapi is the HTTP client for the remote TIS catalog: GET-only,
// connection-pooled, status-retried, response-cached. The transport is
// tuned the way an outbound webhook delivery client would be (pooled
// transport, exponential backoff, Retry-After handling), but adapted
// from POST delivery to catalog-tree GET traversal, and read timeouts
// are surfaced to the caller instead of being retried here (the
// Adaptive Fetcher owns depth reduction on timeout).
package tisapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tisops/tis-crawler/pkg/metrics"
)

// Config parameterizes the HTTP client per the crawler's api/optimization
// configuration sections.
type Config struct {
	BaseURL            string
	ConnectTimeout     time.Duration
	MaxRetries         int
	BackoffFactor      float64
	RetryStatusCodes   map[int]struct{}
	CacheMaxSize       int
	ConcurrentRequests int
	SlowMode           bool
	SlowModeDelay      time.Duration
}

// Client issues read-only GETs against the TIS catalog.
type Client struct {
	httpClient *http.Client
	cfg        Config
	cache      *responseCache
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.CrawlMetrics

	apiCalls  int64
	cacheHits int64
}

// New builds a Client whose transport is sized for cfg.ConcurrentRequests;
// the pool grows to 2x the configured concurrency to absorb transient
// bursts.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	poolSize := cfg.ConcurrentRequests * 2
	if poolSize < 2 {
		poolSize = 2
	}

	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: 0, // read timeout is applied per-call via context
		ExpectContinueTimeout: 1 * time.Second,
	}

	var limiter *rate.Limiter
	if cfg.SlowMode {
		limiter = rate.NewLimiter(rate.Every(cfg.SlowModeDelay), 1)
	}

	reg := metrics.DefaultRegistry()
	return &Client{
		httpClient: &http.Client{Transport: transport},
		cfg:        cfg,
		cache:      newResponseCache(cfg.CacheMaxSize, reg.Cache()),
		limiter:    limiter,
		logger:     logger,
		metrics:    reg.Crawl(),
	}
}

// NodeURL builds the catalog URL for a node id at the given children
// depth (-1 means unbounded).
func (c *Client) NodeURL(nodeID string, childrenLevel int) string {
	return fmt.Sprintf("%s%s?mappingType=TCI&childrenlevel=%d&attributes=true",
		c.cfg.BaseURL, url.PathEscape(nodeID), childrenLevel)
}

// Get fetches rawURL with readTimeout as the read deadline of each attempt, honoring
// cache unless bypassCache is set. Returns the decoded JSON payload,
// whether the call timed out, and elapsed wall time. Get never surfaces
// an error for a plain transport failure; it reports (nil, false,
// elapsed) so the adaptive fetcher's state machine stays a simple
// branch on (data, timedOut).
func (c *Client) Get(ctx context.Context, rawURL string, readTimeout time.Duration, bypassCache bool) (json.RawMessage, bool, time.Duration) {
	if c.limiter != nil {
		_ = c.limiter.Wait(ctx)
	}

	if !bypassCache {
		if cached, ok := c.cache.get(rawURL); ok {
			atomic.AddInt64(&c.cacheHits, 1)
			return json.RawMessage(cached), false, 0
		}
	}

	start := time.Now()
	data, timedOut, err := c.doWithRetry(ctx, rawURL, readTimeout)
	elapsed := time.Since(start)

	atomic.AddInt64(&c.apiCalls, 1)
	c.metrics.NodesFetchedTotal.Inc()

	if err != nil {
		if timedOut {
			return nil, true, elapsed
		}
		c.logger.Warn("tisapi: request failed", "url", maskURL(rawURL), "error", err)
		return nil, false, elapsed
	}

	if !bypassCache {
		c.cache.set(rawURL, data)
	}
	return json.RawMessage(data), false, elapsed
}

// doWithRetry retries status-based transient failures (5xx in
// RetryStatusCodes) with exponential backoff. A context deadline
// exceeded or a network timeout error is surfaced as timedOut=true and
// is never retried here; that policy belongs to the adaptive fetcher.
func (c *Client) doWithRetry(ctx context.Context, rawURL string, readTimeout time.Duration) ([]byte, bool, error) {
	backoff := time.Second
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		// each attempt gets its own read deadline; backoff sleeps between
		// attempts do not consume it
		reqCtx, cancel := context.WithTimeout(ctx, readTimeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			cancel()
			return nil, false, err
		}
		req.Header.Set("Accept-Encoding", "gzip, deflate")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			cancel()
			if isTimeoutErr(err) {
				return nil, true, err
			}
			lastErr = err
			if attempt >= c.cfg.MaxRetries {
				return nil, false, lastErr
			}
			if !sleepBackoff(ctx, &backoff, c.cfg.BackoffFactor) {
				return nil, true, ctx.Err()
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		if readErr != nil {
			if isTimeoutErr(readErr) {
				return nil, true, readErr
			}
			lastErr = readErr
			if attempt >= c.cfg.MaxRetries {
				return nil, false, lastErr
			}
			if !sleepBackoff(ctx, &backoff, c.cfg.BackoffFactor) {
				return nil, true, ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, false, nil
		}

		_, retryable := c.cfg.RetryStatusCodes[resp.StatusCode]
		lastErr = fmt.Errorf("tisapi: http %d", resp.StatusCode)
		if !retryable || attempt >= c.cfg.MaxRetries {
			return nil, false, lastErr
		}

		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				backoff = time.Duration(secs) * time.Second
			}
		}
		if !sleepBackoff(ctx, &backoff, c.cfg.BackoffFactor) {
			return nil, true, ctx.Err()
		}
	}

	return nil, false, lastErr
}

func sleepBackoff(ctx context.Context, backoff *time.Duration, factor float64) bool {
	select {
	case <-time.After(*backoff):
		*backoff = time.Duration(float64(*backoff) * factor)
		return true
	case <-ctx.Done():
		return false
	}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func maskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "(unparseable)"
	}
	u.RawQuery = ""
	return u.String()
}

// Stats is a point-in-time snapshot of the client's run-scoped counters,
// printed in the orchestrator's end-of-run statistics summary.
type Stats struct {
	APICalls  int64
	CacheHits int64
}

// Stats returns the current api-call / cache-hit counters.
func (c *Client) Stats() Stats {
	return Stats{
		APICalls:  atomic.LoadInt64(&c.apiCalls),
		CacheHits: atomic.LoadInt64(&c.cacheHits),
	}
}

// ClearCache discards all cached responses. The cache is run-scoped and
// is never expected to outlive a single crawl.
func (c *Client) ClearCache() {
	c.cache.clear()
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
