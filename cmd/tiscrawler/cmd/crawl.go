package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tisops/tis-crawler/internal/aggregate"
	"github.com/tisops/tis-crawler/internal/artifact"
	"github.com/tisops/tis-crawler/internal/classify"
	"github.com/tisops/tis-crawler/internal/config"
	"github.com/tisops/tis-crawler/internal/extract"
	"github.com/tisops/tis-crawler/internal/fetch"
	"github.com/tisops/tis-crawler/internal/orchestrate"
	"github.com/tisops/tis-crawler/internal/runctx"
	"github.com/tisops/tis-crawler/internal/tisapi"
	"github.com/tisops/tis-crawler/internal/validate"
	"github.com/tisops/tis-crawler/pkg/logger"
	"github.com/tisops/tis-crawler/pkg/metrics"
)

// runCrawl is the root command's default action: load config, wire the
// pipeline, run one full traversal, and emit the per-component payloads.
// Only configuration problems and a failed root fetch are fatal; every
// other failure degrades quality but doesn't stop the run.
func runCrawl(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	rc := runctx.New(cfg.Output.Directory)

	logFilename := cfg.Log.Filename
	if strings.EqualFold(cfg.Log.Output, "file") && logFilename == "" {
		// the run log lands next to the emitted payloads, carrying the
		// same timestamp
		logFilename = filepath.Join(rc.OutputDir, "tiscrawler_"+rc.Timestamp()+".log")
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   logFilename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	log = log.With("runID", rc.RunID)
	artifact.SetDateLayout(cfg.Display.DateFormat)

	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.Addr, cfg.Metrics.Path, log)
	}

	client := tisapi.New(tisapi.Config{
		BaseURL:            cfg.API.BaseURL,
		ConnectTimeout:     secondsToDuration(cfg.API.ConnectTimeout),
		MaxRetries:         cfg.API.MaxRetries,
		BackoffFactor:      cfg.API.BackoffFactor,
		RetryStatusCodes:   toIntSet(cfg.API.RetryStatusCodes),
		CacheMaxSize:       cfg.Optimization.CacheMaxSize,
		ConcurrentRequests: cfg.Optimization.ConcurrentRequests,
		SlowMode:           cfg.Debug.SlowMode,
		SlowModeDelay:      secondsToDuration(cfg.Debug.APIWaitTime),
	}, log)
	defer client.Close()

	fetcher := fetch.New(client, fetch.Config{
		DefaultDepth:             cfg.Optimization.ChildrenLevel,
		MinDepth:                 cfg.Optimization.MinChildrenLevel,
		DepthReductionStep:       cfg.Optimization.DepthReductionStep,
		AdaptiveTimeoutThreshold: secondsToDuration(cfg.Optimization.AdaptiveTimeoutThreshold),
		DepthTimeoutConstant:     5 * time.Second,
		UnlimitedFetchTimeout:    secondsToDuration(cfg.API.ReadTimeout),
		RetryBackoffSchedule:     toSecondsDurations(cfg.Optimization.RetryBackoffSeconds),
		FinalTimeout:             secondsToDuration(cfg.Optimization.FinalTimeoutSeconds),
	}, log)

	pruneMatcher, err := classify.NewPruneMatcher(cfg.BranchPruning.SkipFolders, cfg.BranchPruning.SkipPatterns)
	if err != nil {
		return fmt.Errorf("configuration error: compiling skip patterns: %w", err)
	}

	filters := classify.Filters{
		AllowedTypeTags:          toStringSet(cfg.ArtifactFilters.ComponentType),
		AllowedNameTags:          toStringSet(cfg.ArtifactFilters.ComponentName),
		RequiredGroupTag:         cfg.ArtifactFilters.ComponentGrp,
		AllowedLifecycleStatuses: toStringSet(cfg.ArtifactFilters.LifeCycleStatus),
		SkipDeleted:              cfg.ArtifactFilters.SkipDeleted,
	}

	extractOpts := extract.Options{
		LCOComponentNames:  toStringSet(cfg.PathConvention.LCOComponentNames),
		TestComponentNames: toStringSet(cfg.PathConvention.TestComponentNames),
		LabcarPlatforms:    cfg.PathConvention.LabcarPlatforms,
		CSPSWBSubstrings:   cfg.PathConvention.CSPSWBSubstrings,
		VemoxSearchPath:    cfg.PathConvention.VemoxSearchPath,
		LinkTemplate:       cfg.API.LinkTemplate,
	}

	validator, err := buildValidator(cfg)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	orch := orchestrate.New(fetcher, filters, pruneMatcher, extractOpts, validator, orchestrate.Config{
		RootNodeID:           cfg.API.RootNodeID,
		ConcurrentRequests:   cfg.Optimization.ConcurrentRequests,
		RateLimitDelay:       secondsToDuration(cfg.Optimization.RateLimitDelay),
		IncludeProjects:      toStringSet(cfg.BranchPruning.IncludeProjects),
		SkipProjects:         toStringSet(cfg.BranchPruning.SkipProjects),
		IncludeSoftwareLines: toStringSet(cfg.BranchPruning.IncludeSoftwareLines),
		DebugMode:            cfg.Debug.DebugMode,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Warn("tiscrawler: cancellation requested, finishing in-flight work")
		orch.Cancel()
	}()

	started := time.Now()
	result, err := orch.Run(ctx)
	duration := time.Since(started)
	metrics.DefaultRegistry().Crawl().RunDuration.Observe(duration.Seconds())

	if err != nil {
		if errors.Is(err, orchestrate.ErrRootFetchFailed) {
			return fmt.Errorf("fatal: %w", err)
		}
		return err
	}

	partitions := aggregate.Partition(result)
	emitter := aggregate.Emitter{OutputDir: rc.OutputDir, Timestamp: rc.Timestamp(), Prefixes: cfg.Output.Prefixes}
	written, err := emitter.Emit(partitions)
	if err != nil {
		return fmt.Errorf("emitting artifacts: %w", err)
	}

	apiStats := client.Stats()
	fetchStats := fetcher.Stats()
	stats := orchestrate.Summarize(result, apiStats.APICalls, apiStats.CacheHits, fetchStats.TimeoutRetries, fetchStats.DepthReductions)

	log.Info("tiscrawler: run complete",
		"duration", duration,
		"artifactsFound", stats.ArtifactsFound,
		"apiCalls", stats.APICalls,
		"cacheHits", stats.CacheHits,
		"cacheEfficiency", stats.CacheEfficiency(),
		"timeoutRetries", stats.TimeoutRetries,
		"depthReductions", stats.DepthReductions,
		"branchesPruned", stats.BranchesPruned,
		"failedNodes", stats.FailedNodes,
		"filesWritten", len(written),
	)

	return nil
}

func buildValidator(cfg *config.Config) (*validate.Validator, error) {
	if !cfg.PathConvention.Enabled && !cfg.NamingConvention.Enabled {
		return validate.New(nil, nil, cfg.PathConvention.CSPSWBSubstrings), nil
	}

	conventions := make(map[string]validate.PathConvention, len(cfg.PathConvention.Conventions))
	for name, c := range cfg.PathConvention.Conventions {
		conventions[name] = validate.PathConvention{
			ExpectedStructure: c.ExpectedStructure,
			Variables:         c.Enums,
			VariablesContains: c.ContainsEnums,
		}
	}

	var patterns []validate.NamingPattern
	for _, p := range cfg.NamingConvention.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling naming pattern %q: %w", p, err)
		}
		patterns = append(patterns, validate.NamingPattern{Name: p, Regex: re})
	}

	return validate.New(conventions, patterns, cfg.PathConvention.CSPSWBSubstrings), nil
}

func startMetricsServer(addr, path string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("tiscrawler: metrics server listening", "addr", addr, "path", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("tiscrawler: metrics server failed", "error", err)
		}
	}()
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func toSecondsDurations(seconds []float64) []time.Duration {
	out := make([]time.Duration, len(seconds))
	for i, s := range seconds {
		out[i] = secondsToDuration(s)
	}
	return out
}

func toStringSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func toIntSet(values []int) map[int]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
