package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tisops/tis-crawler/internal/tisapi"
)

func testFetcher(t *testing.T, handler http.HandlerFunc, cfg Config) (*Fetcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := tisapi.New(tisapi.Config{
		BaseURL:            srv.URL + "/",
		ConnectTimeout:     time.Second,
		MaxRetries:         0,
		BackoffFactor:      1.0,
		RetryStatusCodes:   map[int]struct{}{},
		CacheMaxSize:       100,
		ConcurrentRequests: 4,
	}, nil)
	t.Cleanup(client.Close)
	return New(client, cfg, nil), srv
}

func defaultCfg() Config {
	return Config{
		DefaultDepth:             2,
		MinDepth:                 1,
		DepthReductionStep:       1,
		AdaptiveTimeoutThreshold: 50 * time.Millisecond,
		DepthTimeoutConstant:     10 * time.Millisecond,
		UnlimitedFetchTimeout:    200 * time.Millisecond,
		RetryBackoffSchedule:     []time.Duration{time.Millisecond, time.Millisecond},
		FinalTimeout:             200 * time.Millisecond,
	}
}

func TestGetNode_SucceedsAtDefaultDepth(t *testing.T) {
	f, srv := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"1","name":"root"}`))
	}, defaultCfg())
	defer srv.Close()

	node, depthUsed := f.GetNode(context.Background(), "1")

	require.NotNil(t, node)
	assert.Equal(t, "root", node.Name)
	assert.Equal(t, 2, depthUsed)
	assert.Empty(t, f.FailedNodes())
}

func TestGetNode_UnlimitedFetchSucceeds(t *testing.T) {
	cfg := defaultCfg()
	cfg.DefaultDepth = -1
	f, srv := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"1","name":"root"}`))
	}, cfg)
	defer srv.Close()

	node, depthUsed := f.GetNode(context.Background(), "1")

	require.NotNil(t, node)
	assert.Equal(t, -1, depthUsed)
}

func TestGetNode_UnlimitedFetchTimesOutThenFallsBackToIterative(t *testing.T) {
	cfg := defaultCfg()
	cfg.DefaultDepth = -1
	cfg.UnlimitedFetchTimeout = 20 * time.Millisecond

	var calls int64
	f, srv := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		if n == 1 {
			time.Sleep(50 * time.Millisecond)
			return
		}
		w.Write([]byte(`{"id":"1","name":"root"}`))
	}, cfg)
	defer srv.Close()

	node, depthUsed := f.GetNode(context.Background(), "1")

	require.NotNil(t, node)
	assert.Equal(t, 1, depthUsed)

	ov, ok := f.override("1")
	assert.True(t, ok)
	assert.Equal(t, 1, ov)
}

func TestGetNode_TimeoutReducesDepthThenSucceeds(t *testing.T) {
	cfg := defaultCfg()
	cfg.DefaultDepth = 3
	cfg.MinDepth = 1
	cfg.AdaptiveTimeoutThreshold = 10 * time.Millisecond
	cfg.DepthTimeoutConstant = 5 * time.Millisecond

	f, srv := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		level := r.URL.Query().Get("childrenlevel")
		if level == "3" || level == "2" {
			time.Sleep(100 * time.Millisecond)
			return
		}
		w.Write([]byte(`{"id":"1","name":"root"}`))
	}, cfg)
	defer srv.Close()

	node, depthUsed := f.GetNode(context.Background(), "1")

	require.NotNil(t, node)
	assert.Equal(t, 1, depthUsed)
	assert.Empty(t, f.FailedNodes())

	ov, ok := f.override("1")
	require.True(t, ok)
	assert.Equal(t, 1, ov)
}

func TestGetNode_AllPhasesFailRecordsFailedNode(t *testing.T) {
	cfg := defaultCfg()
	cfg.DefaultDepth = 1
	cfg.MinDepth = 1
	cfg.RetryBackoffSchedule = []time.Duration{time.Millisecond}
	cfg.UnlimitedFetchTimeout = 5 * time.Millisecond
	cfg.AdaptiveTimeoutThreshold = 5 * time.Millisecond
	cfg.FinalTimeout = 5 * time.Millisecond

	f, srv := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}, cfg)
	defer srv.Close()

	node, depthUsed := f.GetNode(context.Background(), "1")

	assert.Nil(t, node)
	assert.Equal(t, cfg.MinDepth, depthUsed)
	assert.Contains(t, f.FailedNodes(), "1")
}

func TestStats_ReflectsTimeoutRetriesAndDepthReductions(t *testing.T) {
	cfg := defaultCfg()
	cfg.DefaultDepth = 3
	cfg.MinDepth = 1
	cfg.AdaptiveTimeoutThreshold = 10 * time.Millisecond
	cfg.DepthTimeoutConstant = 5 * time.Millisecond

	f, srv := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		level := r.URL.Query().Get("childrenlevel")
		if level == "3" || level == "2" {
			time.Sleep(100 * time.Millisecond)
			return
		}
		w.Write([]byte(`{"id":"1","name":"root"}`))
	}, cfg)
	defer srv.Close()

	_, _ = f.GetNode(context.Background(), "1")

	stats := f.Stats()
	assert.Equal(t, int64(2), stats.TimeoutRetries)
	assert.Equal(t, int64(1), stats.DepthReductions)
}

func TestSetOverride_MonotonicNonIncreasing(t *testing.T) {
	f, srv := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {}, defaultCfg())
	defer srv.Close()

	f.setOverride("1", 3)
	f.setOverride("1", 5) // higher value must be ignored
	ov, ok := f.override("1")
	require.True(t, ok)
	assert.Equal(t, 3, ov)

	f.setOverride("1", 1) // lower value takes effect
	ov, ok = f.override("1")
	require.True(t, ok)
	assert.Equal(t, 1, ov)
}
