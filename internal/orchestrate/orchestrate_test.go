package orchestrate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tisops/tis-crawler/internal/artifact"
	"github.com/tisops/tis-crawler/internal/classify"
	"github.com/tisops/tis-crawler/internal/extract"
	"github.com/tisops/tis-crawler/internal/fetch"
	"github.com/tisops/tis-crawler/internal/tisapi"
	"github.com/tisops/tis-crawler/internal/validate"
)

type fakeAttr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type fakeNode struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	TypeTag    string     `json:"typeTag"`
	NameTag    string     `json:"nameTag"`
	GroupTag   string     `json:"groupTag"`
	Attributes []fakeAttr `json:"attributes"`
	Children   []fakeNode `json:"children"`
}

func newOrchestratorAgainst(t *testing.T, nodesByID map[string]fakeNode) (*Orchestrator, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[1:]
		node, ok := nodesByID[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(node)
	}))

	client := tisapi.New(tisapi.Config{
		BaseURL:            srv.URL + "/",
		ConnectTimeout:     time.Second,
		MaxRetries:         0,
		BackoffFactor:      1.0,
		RetryStatusCodes:   map[int]struct{}{},
		CacheMaxSize:       1000,
		ConcurrentRequests: 4,
	}, nil)
	t.Cleanup(client.Close)

	f := fetch.New(client, fetch.Config{
		DefaultDepth:             5,
		MinDepth:                 1,
		DepthReductionStep:       1,
		AdaptiveTimeoutThreshold: 200 * time.Millisecond,
		DepthTimeoutConstant:     50 * time.Millisecond,
		UnlimitedFetchTimeout:    time.Second,
		RetryBackoffSchedule:     []time.Duration{10 * time.Millisecond},
		FinalTimeout:             time.Second,
	}, nil)

	o := New(f, classify.Filters{}, classify.NoopPruneMatcher(), extract.Options{
		LCOComponentNames:  map[string]struct{}{},
		TestComponentNames: map[string]struct{}{},
	}, nil, Config{
		RootNodeID:         "root",
		ConcurrentRequests: 4,
		RateLimitDelay:     time.Millisecond,
	}, nil)

	return o, srv
}

func TestRun_FatalWhenRootFetchFails(t *testing.T) {
	o, srv := newOrchestratorAgainst(t, map[string]fakeNode{})
	defer srv.Close()

	_, err := o.Run(context.Background())

	assert.ErrorIs(t, err, ErrRootFetchFailed)
}

func TestRun_CollectsArtifactsAcrossProjectsAndSoftwareLines(t *testing.T) {
	nodes := map[string]fakeNode{
		"root": {
			ID: "root", Name: "root",
			Children: []fakeNode{{ID: "p1", Name: "ProjectA"}},
		},
		"p1": {
			ID: "p1", Name: "ProjectA",
			Children: []fakeNode{{ID: "sw1", Name: "SWLine1"}},
		},
		"sw1": {
			ID: "sw1", Name: "SWLine1",
			Children: []fakeNode{
				{
					ID: "art1", Name: "artifact.zip", TypeTag: "file",
					Attributes: []fakeAttr{{Name: "artifact", Value: "true"}},
				},
			},
		},
	}
	o, srv := newOrchestratorAgainst(t, nodes)
	defer srv.Close()

	result, err := o.Run(context.Background())

	require.NoError(t, err)
	require.Contains(t, result.Projects, "ProjectA")
	require.Contains(t, result.Projects["ProjectA"].SoftwareLines, "SWLine1")
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "ProjectA/SWLine1/artifact.zip", result.Artifacts[0].UploadPath)
}

func TestRun_ValidatesNameAgainstNamingConvention(t *testing.T) {
	nodes := map[string]fakeNode{
		"root": {
			ID: "root", Name: "root",
			Children: []fakeNode{{ID: "p1", Name: "ProjectA"}},
		},
		"p1": {
			ID: "p1", Name: "ProjectA",
			Children: []fakeNode{{ID: "sw1", Name: "SWLine1"}},
		},
		"sw1": {
			ID: "sw1", Name: "SWLine1",
			Children: []fakeNode{
				{
					ID: "art1", Name: "not_a_release.zip", TypeTag: "file", NameTag: "anyComponent",
					Attributes: []fakeAttr{{Name: "artifact", Value: "true"}},
				},
			},
		},
	}
	o, srv := newOrchestratorAgainst(t, nodes)
	defer srv.Close()
	o.validator = validate.New(map[string]validate.PathConvention{
		"anyComponent": {ExpectedStructure: "{Project}/{SoftwareLine}/{artifact}"},
	}, []validate.NamingPattern{
		{Name: "release", Regex: regexp.MustCompile(`^Release_\d+\.zip$`)},
	}, nil)

	result, err := o.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, result.Artifacts, 1)
	require.NotNil(t, result.Artifacts[0].Validation)
	assert.Equal(t, artifact.DeviationInvalidNameFormat, result.Artifacts[0].Validation.Deviation)
}

func TestRun_SkipsConfiguredProjects(t *testing.T) {
	nodes := map[string]fakeNode{
		"root": {
			ID: "root", Name: "root",
			Children: []fakeNode{{ID: "p1", Name: "ProjectA"}, {ID: "p2", Name: "ProjectB"}},
		},
		"p1": {ID: "p1", Name: "ProjectA"},
		"p2": {ID: "p2", Name: "ProjectB"},
	}
	o, srv := newOrchestratorAgainst(t, nodes)
	defer srv.Close()
	o.cfg.SkipProjects = map[string]struct{}{"ProjectA": {}}

	result, err := o.Run(context.Background())

	require.NoError(t, err)
	assert.NotContains(t, result.Projects, "ProjectA")
	assert.Contains(t, result.Projects, "ProjectB")
}

func TestCancel_StopsNewSubmissions(t *testing.T) {
	nodes := map[string]fakeNode{
		"root": {ID: "root", Name: "root", Children: []fakeNode{{ID: "p1", Name: "ProjectA"}}},
		"p1":   {ID: "p1", Name: "ProjectA", Children: []fakeNode{{ID: "sw1", Name: "SWLine1"}}},
	}
	o, srv := newOrchestratorAgainst(t, nodes)
	defer srv.Close()

	o.Cancel()
	result, err := o.Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, result.Artifacts)
}

func TestRun_DebugModeStopsAfterFirstProject(t *testing.T) {
	nodes := map[string]fakeNode{
		"root": {
			ID: "root", Name: "root",
			Children: []fakeNode{{ID: "p1", Name: "ProjectA"}, {ID: "p2", Name: "ProjectB"}},
		},
		"p1": {ID: "p1", Name: "ProjectA"},
		"p2": {ID: "p2", Name: "ProjectB"},
	}
	o, srv := newOrchestratorAgainst(t, nodes)
	defer srv.Close()
	o.cfg.DebugMode = true

	result, err := o.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, result.Projects, 1)
	assert.Contains(t, result.Projects, "ProjectA")
}

func TestRun_PopulatesPrunedBranches(t *testing.T) {
	nodes := map[string]fakeNode{
		"root": {
			ID: "root", Name: "root",
			Children: []fakeNode{{ID: "p1", Name: "ProjectA"}},
		},
		"p1": {
			ID: "p1", Name: "ProjectA",
			Children: []fakeNode{{ID: "sw1", Name: "SWLine1"}},
		},
		"sw1": {
			ID: "sw1", Name: "SWLine1",
			Children: []fakeNode{{ID: "skip1", Name: ".svn"}},
		},
	}
	o, srv := newOrchestratorAgainst(t, nodes)
	defer srv.Close()

	matcher, err := classify.NewPruneMatcher([]string{".svn"}, nil)
	require.NoError(t, err)
	o.pruneMatcher = matcher

	result, runErr := o.Run(context.Background())

	require.NoError(t, runErr)
	assert.Equal(t, 1, result.PrunedBranches)
}

func TestStats_CacheEfficiency(t *testing.T) {
	s := Stats{APICalls: 3, CacheHits: 1}
	assert.InDelta(t, 0.25, s.CacheEfficiency(), 0.0001)

	assert.Equal(t, float64(0), Stats{}.CacheEfficiency())
}

func TestSummarize_CombinesCountersFromResultAndCollaborators(t *testing.T) {
	result := &Result{FailedNodes: []string{"a", "b"}, PrunedBranches: 4}

	stats := Summarize(result, 10, 6, 2, 1)

	assert.Equal(t, int64(10), stats.APICalls)
	assert.Equal(t, int64(6), stats.CacheHits)
	assert.Equal(t, int64(2), stats.TimeoutRetries)
	assert.Equal(t, int64(1), stats.DepthReductions)
	assert.Equal(t, 4, stats.BranchesPruned)
	assert.Equal(t, 2, stats.FailedNodes)
	assert.Equal(t, 0, stats.ArtifactsFound)
}
