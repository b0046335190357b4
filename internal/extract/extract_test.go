package extract

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tisops/tis-crawler/internal/artifact"
	"github.com/tisops/tis-crawler/internal/catalog"
)

func ticksFor(t time.Time) string {
	unix := t.UTC().Unix()
	return strconv.FormatInt((unix+62_135_596_800)*10_000_000, 10)
}

func baseOpts() Options {
	return Options{
		LCOComponentNames:  map[string]struct{}{"LCO-Model": {}},
		TestComponentNames: map[string]struct{}{"Test-Suite": {}},
		LabcarPlatforms:    []string{"VME", "PCIe"},
		CSPSWBSubstrings:   []string{"CSP", "SWB"},
		VemoxSearchPath:    "externals/vemox",
	}
}

func TestExtract_DeletionInFutureIsNotDeleted(t *testing.T) {
	future := time.Now().Add(365 * 24 * time.Hour)
	node := catalog.Node{
		ID:   "42",
		Name: "artifact.zip",
		Attrs: map[string]string{
			"tisFileDeletedDate": ticksFor(future),
		},
	}

	rec := Extract(node, []string{"Root", "ProjectA"}, "Other", baseOpts())

	assert.False(t, rec.IsDeleted)
	assert.NotNil(t, rec.DeletedTimestamp)
	assert.Equal(t, "Root/ProjectA/artifact.zip", rec.UploadPath)
}

func TestExtract_DeletionInPastIsDeleted(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	node := catalog.Node{
		ID:   "42",
		Name: "artifact.zip",
		Attrs: map[string]string{
			"tisFileDeletedDate": ticksFor(past),
		},
	}

	rec := Extract(node, nil, "Other", baseOpts())

	assert.True(t, rec.IsDeleted)
}

func TestExtract_LCOCategoryPopulatesExtension(t *testing.T) {
	node := catalog.Node{
		ID:   "7",
		Name: "model.zip",
		Attrs: map[string]string{
			"execution":      `[{"dependency":"LCO","version":["3.2.1"]},{"dependency":"ECU-TEST","version":["9.9.9"]}]`,
			"sources":        `[{"type":"svn","path":"trunk/externals/vemox","url":"https://svn/repo/vemox1.2.3.4.5"}]`,
			"isGenuineBuild": "true",
		},
	}

	rec := Extract(node, []string{"Root", "HiL", "CSP_Foo", "VME"}, "LCO-Model", baseOpts())

	assert.Equal(t, artifact.CategoryLCO, rec.Category)
	assert.NotNil(t, rec.LCO)
	assert.Equal(t, "HiL", rec.LCO.SimulationType)
	assert.Equal(t, "CSP_Foo", rec.LCO.SoftwareType)
	assert.Equal(t, "VME", rec.LCO.LabcarType)
	assert.Equal(t, "3.2.1", rec.LCO.LCOVersion)
	assert.True(t, rec.LCO.IsGenuineBuild)
}

func TestExtract_LCOVemoxVersionFromSVNExternal(t *testing.T) {
	node := catalog.Node{
		ID:   "7",
		Name: "model.zip",
		Attrs: map[string]string{
			"sources": `[{"type":"svn","path":"trunk/externals/vemox","url":"https://svn/repo/VEMOX1.2.3.4.5/tags"}]`,
		},
	}

	rec := Extract(node, nil, "LCO-Model", baseOpts())

	assert.Equal(t, "VeMox123R45", rec.LCO.VemoxVersion)
}

func TestExtract_LCOVemoxVersionFallsBackToConan(t *testing.T) {
	node := catalog.Node{
		ID:   "7",
		Name: "model.zip",
		Attrs: map[string]string{
			"sources": `[{"type":"conan","package":"VeMoX/1.2.3.4.5@VeMoX_classic/release#abcd1234"}]`,
		},
	}

	rec := Extract(node, nil, "LCO-Model", baseOpts())

	assert.Equal(t, "VeMox123R45", rec.LCO.VemoxVersion)
}

func TestExtract_TestCategoryPopulatesExtension(t *testing.T) {
	node := catalog.Node{
		ID:   "9",
		Name: "run.zip",
		Attrs: map[string]string{
			"testType":               "Regression",
			"testVersion":            "1.0",
			"execution":              `[{"dependency":"ECU-TEST","version":["8.1.2"]}]`,
			"testConfiguration":      "Config_A",
			"testbenchConfiguration": "Bench_A",
		},
	}

	rec := Extract(node, []string{"Root", "Test", "Regression"}, "Test-Suite", baseOpts())

	assert.Equal(t, artifact.CategoryTest, rec.Category)
	assert.Equal(t, "Regression", rec.Test.TestType)
	assert.Equal(t, "Regression", rec.Test.TestTypePath)
	assert.Equal(t, "8.1.2", rec.Test.EcuTestVersion)
	assert.Equal(t, "Config_A", rec.Test.TestConfiguration)
}

func TestExtract_MalformedExecutionAttributeYieldsEmptyVersion(t *testing.T) {
	node := catalog.Node{
		ID:   "9",
		Name: "run.zip",
		Attrs: map[string]string{
			"execution": `not-json`,
		},
	}

	rec := Extract(node, nil, "Test-Suite", baseOpts())

	assert.Equal(t, "", rec.Test.EcuTestVersion)
}

func TestExtract_CommonComponentHasNoExtension(t *testing.T) {
	node := catalog.Node{ID: "1", Name: "x.zip"}

	rec := Extract(node, nil, "Unrelated", baseOpts())

	assert.Equal(t, artifact.CategoryCommon, rec.Category)
	assert.Nil(t, rec.LCO)
	assert.Nil(t, rec.Test)
}

func TestExtract_LinkTemplateBuildsDeepLink(t *testing.T) {
	node := catalog.Node{ID: "42", Name: "artifact.zip"}
	opts := baseOpts()
	opts.LinkTemplate = "https://tis.example.com/nodes/%s"

	rec := Extract(node, nil, "Other", opts)

	assert.Equal(t, "https://tis.example.com/nodes/42", rec.DeepLink)
}

func TestExtract_NoLinkTemplateLeavesDeepLinkEmpty(t *testing.T) {
	node := catalog.Node{ID: "42", Name: "artifact.zip"}

	rec := Extract(node, nil, "Other", baseOpts())

	assert.Equal(t, "", rec.DeepLink)
}

func TestFindVemoxVersion_NoSourcesReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", FindVemoxVersion("", "externals/vemox"))
	assert.Equal(t, "", FindVemoxVersion(`not-json`, "externals/vemox"))
}

func TestFindVemoxVersion_PicksFirstSortedAmongMultipleHits(t *testing.T) {
	raw := `[
		{"type":"svn","path":"trunk/externals/vemox","url":"https://svn/vemox9.1.0.0.0"},
		{"type":"svn","path":"trunk/externals/vemox","url":"https://svn/vemox1.2.3.4.5"}
	]`
	// "VeMox123R45" < "VeMox910R00" lexicographically.
	assert.Equal(t, "VeMox123R45", FindVemoxVersion(raw, "externals/vemox"))
}
