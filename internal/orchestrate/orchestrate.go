// Package orchestrate drives the BFS traversal of the catalog: root to
// projects to software lines, then a recursive walk of each software
// line's subtree via the Adaptive Fetcher, with depth-limited leaves
// re-explored iteratively in batches. Concurrency is bounded by a
// semaphore-guarded worker pool, grounded on the same
// semaphore-plus-WaitGroup shape used elsewhere in this codebase for
// fan-out health/status checks.
package orchestrate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tisops/tis-crawler/internal/artifact"
	"github.com/tisops/tis-crawler/internal/catalog"
	"github.com/tisops/tis-crawler/internal/classify"
	"github.com/tisops/tis-crawler/internal/extract"
	"github.com/tisops/tis-crawler/internal/fetch"
	"github.com/tisops/tis-crawler/internal/resilience"
	"github.com/tisops/tis-crawler/internal/validate"
	"github.com/tisops/tis-crawler/pkg/metrics"
)

// ErrRootFetchFailed is the single fatal condition: the configured root
// node could not be fetched at all.
var ErrRootFetchFailed = errors.New("orchestrate: root node fetch failed")

// Config parameterizes one traversal run.
type Config struct {
	RootNodeID           string
	ConcurrentRequests   int
	RateLimitDelay       time.Duration
	IncludeProjects      map[string]struct{}
	SkipProjects         map[string]struct{}
	IncludeSoftwareLines map[string]struct{}

	// DebugMode restricts the run to the first qualifying project, for
	// fast iteration against a large catalog during development.
	DebugMode bool
}

// SoftwareLine is the traversal skeleton entry for one software line: its
// id only. Artifacts are kept in Result.Artifacts and grouped per
// software line by the Aggregator.
type SoftwareLine struct {
	ID string
}

// Project is the traversal skeleton entry for one project.
type Project struct {
	ID            string
	SoftwareLines map[string]SoftwareLine
}

// Result is everything a single run produced: the project/software-line
// skeleton (populated even for software lines that yielded no
// artifacts), the flat artifact list, and run bookkeeping.
type Result struct {
	Projects       map[string]Project
	Artifacts      []*artifact.Record
	FailedNodes    []string
	PrunedBranches int
}

// Orchestrator owns one traversal run's worker pool, cancellation flag,
// and results lock.
type Orchestrator struct {
	fetcher      *fetch.Fetcher
	filters      classify.Filters
	pruneMatcher *classify.PruneMatcher
	extractOpts  extract.Options
	validator    *validate.Validator
	cfg          Config
	logger       *slog.Logger
	metrics      *metrics.CrawlMetrics

	cancelled   atomic.Bool
	prunedCount atomic.Int64
}

// New builds an Orchestrator. pruneMatcher may be classify.NoopPruneMatcher().
func New(
	fetcher *fetch.Fetcher,
	filters classify.Filters,
	pruneMatcher *classify.PruneMatcher,
	extractOpts extract.Options,
	validator *validate.Validator,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:      fetcher,
		filters:      filters,
		pruneMatcher: pruneMatcher,
		extractOpts:  extractOpts,
		validator:    validator,
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics.DefaultRegistry().Crawl(),
	}
}

// Cancel sets the shared cancellation flag. In-flight tasks complete;
// no new ones are submitted; Run returns whatever has been accumulated.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// Run executes one full traversal starting at cfg.RootNodeID.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	root, ok := o.fetcher.FetchShallow(ctx, o.cfg.RootNodeID, 1)
	if !ok || root == nil {
		return nil, ErrRootFetchFailed
	}

	result := &Result{Projects: make(map[string]Project)}
	var mu sync.Mutex
	concurrency := o.cfg.ConcurrentRequests
	if concurrency < 1 {
		concurrency = 1
	}
	// Two independent pools: one bounds concurrent _processSoftwareLine
	// tasks, the other bounds concurrent leaf re-fetches started *from
	// within* those tasks. Sharing one channel between the two levels
	// would deadlock once every software-line slot is taken by a task
	// itself blocked waiting for a leaf slot.
	swSem := make(chan struct{}, concurrency)
	leafSem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	debugProjectsDone := 0
	for _, projectNode := range root.Children {
		if o.cancelled.Load() {
			break
		}
		if o.skipProject(projectNode.Name) {
			continue
		}
		if o.cfg.DebugMode && debugProjectsDone >= 1 {
			o.logger.Debug("orchestrate: debug mode, stopping after first project")
			break
		}

		projSubtree, ok := o.fetcher.FetchShallow(ctx, projectNode.ID, 1)
		if !ok || projSubtree == nil {
			o.logger.Warn("orchestrate: project fetch failed, skipping", "project", projectNode.Name)
			continue
		}
		debugProjectsDone++

		proj := Project{ID: projectNode.ID, SoftwareLines: make(map[string]SoftwareLine)}
		for _, swNode := range projSubtree.Children {
			if !o.includeSoftwareLine(swNode.Name) {
				continue
			}
			proj.SoftwareLines[swNode.Name] = SoftwareLine{ID: swNode.ID}

			if o.cancelled.Load() {
				continue
			}

			wg.Add(1)
			swSem <- struct{}{}
			go func(swID, swName, projName string) {
				defer wg.Done()
				defer func() { <-swSem }()
				defer o.recoverTask("software line", swName)

				artifacts := o.processSoftwareLine(ctx, swID, swName, projName, leafSem)

				mu.Lock()
				result.Artifacts = append(result.Artifacts, artifacts...)
				mu.Unlock()
			}(swNode.ID, swNode.Name, projectNode.Name)
		}

		mu.Lock()
		result.Projects[projectNode.Name] = proj
		mu.Unlock()

		if !resilience.WaitWithContext(ctx, o.cfg.RateLimitDelay) {
			break
		}
	}

	wg.Wait()

	result.FailedNodes = o.fetcher.FailedNodes()
	result.PrunedBranches = int(o.prunedCount.Load())
	return result, nil
}

// Stats is the end-of-run statistics summary: API-call/cache-hit counts
// from the HTTP client, plus the traversal-level counters this
// Orchestrator owns.
type Stats struct {
	APICalls        int64
	CacheHits       int64
	TimeoutRetries  int64
	DepthReductions int64
	BranchesPruned  int
	FailedNodes     int
	ArtifactsFound  int
}

// CacheEfficiency is the fraction of API calls served from cache, or 0
// when no calls were made.
func (s Stats) CacheEfficiency() float64 {
	total := s.APICalls + s.CacheHits
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// Summarize builds the Stats for result, combining client-reported and
// fetcher-reported counters with this Orchestrator's own bookkeeping.
// apiCalls/cacheHits come from tisapi.Client.Stats(); timeoutRetries/
// depthReductions come from fetch.Fetcher.Stats(). Neither tisapi nor
// fetch is imported here by name to keep this signature a plain
// value-in, value-out function the cmd layer can call without threading
// extra types through this package.
func Summarize(result *Result, apiCalls, cacheHits, timeoutRetries, depthReductions int64) Stats {
	return Stats{
		APICalls:        apiCalls,
		CacheHits:       cacheHits,
		TimeoutRetries:  timeoutRetries,
		DepthReductions: depthReductions,
		BranchesPruned:  result.PrunedBranches,
		FailedNodes:     len(result.FailedNodes),
		ArtifactsFound:  len(result.Artifacts),
	}
}

func (o *Orchestrator) skipProject(name string) bool {
	if len(o.cfg.SkipProjects) > 0 {
		if _, skip := o.cfg.SkipProjects[name]; skip {
			return true
		}
	}
	if len(o.cfg.IncludeProjects) > 0 {
		if _, ok := o.cfg.IncludeProjects[name]; !ok {
			return true
		}
	}
	return false
}

func (o *Orchestrator) includeSoftwareLine(name string) bool {
	if len(o.cfg.IncludeSoftwareLines) == 0 {
		return true
	}
	_, ok := o.cfg.IncludeSoftwareLines[name]
	return ok
}

// leafTask is an unexplored node discovered mid-walk: HasChildren was
// true but Children arrived empty because the fetch depth ran out.
type leafTask struct {
	id        string
	ancestors []string
}

// itemCandidate is a matched artifact candidate awaiting extraction.
type itemCandidate struct {
	node      catalog.Node
	ancestors []string
}

// processSoftwareLine fetches the software line's subtree adaptively,
// walks it for candidates and unexplored leaves, then iteratively
// drains leaf batches through the shared worker pool until none remain
// or the run is cancelled.
func (o *Orchestrator) processSoftwareLine(ctx context.Context, swID, swName, projectName string, leafSem chan struct{}) []*artifact.Record {
	root, _ := o.fetcher.GetNode(ctx, swID)
	if root == nil {
		return nil
	}

	// walk appends the software-line node's own name, so seed the
	// ancestor path with the project only.
	rootCandidates, rootLeaves := o.walk(*root, []string{projectName})
	candidates := rootCandidates
	leaves := toLeafTasks(rootLeaves)

	for len(leaves) > 0 && !o.cancelled.Load() {
		var mu sync.Mutex
		var wg sync.WaitGroup
		var nextLeaves []leafTask

		for _, leaf := range leaves {
			if o.cancelled.Load() {
				break
			}
			wg.Add(1)
			leafSem <- struct{}{}
			go func(lf leafTask) {
				defer wg.Done()
				defer func() { <-leafSem }()
				defer o.recoverTask("leaf", lf.id)

				node, _ := o.fetcher.GetNode(ctx, lf.id)
				if node == nil {
					return
				}
				childAncestors := lf.ancestors
				for _, child := range node.Children {
					if o.pruneMatcher.ShouldPrune(child.Name) {
						o.metrics.BranchesPrunedTotal.Inc()
						o.prunedCount.Add(1)
						continue
					}
					c, l := o.walk(child, childAncestors)
					mu.Lock()
					candidates = append(candidates, c...)
					nextLeaves = append(nextLeaves, toLeafTasks(l)...)
					mu.Unlock()
				}
			}(leaf)
		}
		wg.Wait()

		leaves = nextLeaves
		if !resilience.WaitWithContext(ctx, o.cfg.RateLimitDelay) {
			break
		}
	}

	artifacts := make([]*artifact.Record, 0, len(candidates))
	for _, c := range candidates {
		componentName := c.node.NameTag
		rec := extract.Extract(c.node, c.ancestors, componentName, o.extractOpts)
		if o.validator != nil {
			v := o.validator.ValidatePath(rec.UploadPath, componentName)
			if v.Deviation == artifact.DeviationValid {
				if ok, hint := o.validator.ValidateName(rec.Name); !ok {
					v = artifact.ValidationResult{
						Deviation: artifact.DeviationInvalidNameFormat,
						Detail:    "name '" + rec.Name + "' matches no configured naming pattern",
						Hint:      hint,
					}
				}
			}
			if v.Deviation == artifact.DeviationValid {
				if rec.Test != nil {
					if tv := o.validator.ValidateTestType(componentName, rec.Test.TestType, rec.UploadPath); tv.Deviation != artifact.DeviationValid {
						v = tv
					} else if cv := o.validator.ValidateTestConfigSoftwareLine(componentName, rec.Test.TestConfiguration, rec.Test.TestbenchConfiguration, swName); cv.Deviation != artifact.DeviationValid {
						v = cv
					}
					rec.Test.TestTypeMismatch = v.Deviation == artifact.DeviationTestTypeMismatch
				}
			}
			rec.Validation = &v
			if v.Deviation != artifact.DeviationValid {
				o.metrics.ValidationErrorsTotal.WithLabelValues(string(v.Deviation)).Inc()
			}
		}
		o.metrics.ArtifactsEmittedTotal.WithLabelValues(componentName).Inc()
		artifacts = append(artifacts, rec)
	}

	return artifacts
}

// recoverTask absorbs a panic raised inside a worker task: the task's
// contribution is dropped and the run continues.
func (o *Orchestrator) recoverTask(kind, id string) {
	if r := recover(); r != nil {
		o.logger.Error("orchestrate: worker task panicked", "kind", kind, "id", id, "panic", r)
	}
}

func toLeafTasks(items []itemCandidate) []leafTask {
	// walk() returns leaves as itemCandidate carrying only an id-bearing
	// node and its ancestors; convert to the lighter leafTask shape.
	out := make([]leafTask, 0, len(items))
	for _, it := range items {
		out = append(out, leafTask{id: it.node.ID, ancestors: it.ancestors})
	}
	return out
}

// walk recursively classifies node and its descendants. ancestorsBeforeNode
// is the path of names from the project root up to (not including) node.
// A node with HasChildren true but no loaded Children is reported as a
// leaf (its own ancestors path, which callers use once they refetch it).
func (o *Orchestrator) walk(node catalog.Node, ancestorsBeforeNode []string) (candidates []itemCandidate, leaves []itemCandidate) {
	if classify.IsCandidate(node, o.filters) {
		candidates = append(candidates, itemCandidate{node: node, ancestors: ancestorsBeforeNode})
	}

	childAncestors := append(append([]string{}, ancestorsBeforeNode...), node.Name)

	if node.HasChildren && len(node.Children) == 0 {
		leaves = append(leaves, itemCandidate{node: node, ancestors: childAncestors})
		return candidates, leaves
	}

	for _, child := range node.Children {
		if o.pruneMatcher.ShouldPrune(child.Name) {
			o.metrics.BranchesPrunedTotal.Inc()
			o.prunedCount.Add(1)
			continue
		}
		c, l := o.walk(child, childAncestors)
		candidates = append(candidates, c...)
		leaves = append(leaves, l...)
	}

	return candidates, leaves
}
