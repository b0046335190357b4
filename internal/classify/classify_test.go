package classify

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tisops/tis-crawler/internal/catalog"
)

func artifactNode(attrs map[string]string) catalog.Node {
	return catalog.Node{
		ID:      "1",
		Name:    "x.zip",
		TypeTag: "file",
		Attrs:   attrs,
	}
}

func TestIsCandidate_RequiresArtifactAttribute(t *testing.T) {
	n := artifactNode(map[string]string{"other": "1"})
	assert.False(t, IsCandidate(n, Filters{}))
}

func TestIsCandidate_NoAttributesNeverMatches(t *testing.T) {
	n := catalog.Node{ID: "1", Attrs: nil}
	assert.False(t, IsCandidate(n, Filters{}))
}

func TestIsCandidate_PassesWithArtifactAttribute(t *testing.T) {
	n := artifactNode(map[string]string{"artifact": "true"})
	assert.True(t, IsCandidate(n, Filters{}))
}

func TestIsCandidate_FiltersByTypeTag(t *testing.T) {
	n := artifactNode(map[string]string{"artifact": "true"})
	n.TypeTag = "folder"
	f := Filters{AllowedTypeTags: map[string]struct{}{"file": {}}}
	assert.False(t, IsCandidate(n, f))
}

func TestIsCandidate_FiltersByLifecycleStatus(t *testing.T) {
	n := artifactNode(map[string]string{"artifact": "true", "lifeCycleStatus": "Draft"})
	f := Filters{AllowedLifecycleStatuses: map[string]struct{}{"Released": {}}}
	assert.False(t, IsCandidate(n, f))
}

func TestIsCandidate_SkipsDeleted(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour).Unix()
	ticks := (past + 62_135_596_800) * 10_000_000
	n := artifactNode(map[string]string{
		"artifact":           "true",
		"tisFileDeletedDate": strconv.FormatInt(ticks, 10),
	})
	f := Filters{SkipDeleted: true}
	assert.False(t, IsCandidate(n, f))
}

func TestIsDeleted_FutureDeletionIsNotDeleted(t *testing.T) {
	future := time.Now().Add(365 * 24 * time.Hour).Unix()
	ticks := (future + 62_135_596_800) * 10_000_000
	n := artifactNode(map[string]string{"tisFileDeletedDate": strconv.FormatInt(ticks, 10)})
	assert.False(t, IsDeleted(n))
}

func TestIsDeleted_NoDateIsNotDeleted(t *testing.T) {
	n := artifactNode(map[string]string{})
	assert.False(t, IsDeleted(n))
}

func TestPruneMatcher_MatchesCaseInsensitiveAnchored(t *testing.T) {
	m, err := NewPruneMatcher([]string{"Archive"}, []string{"tmp.*"})
	require.NoError(t, err)

	assert.True(t, m.ShouldPrune("archive"))
	assert.True(t, m.ShouldPrune("TMPDIR"))
	assert.False(t, m.ShouldPrune("other"))
	assert.False(t, m.ShouldPrune("not_archive"))
}

func TestNoopPruneMatcher_NeverPrunes(t *testing.T) {
	m := NoopPruneMatcher()
	assert.False(t, m.ShouldPrune("anything"))
}
