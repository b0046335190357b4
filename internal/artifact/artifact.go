// Package artifact defines the typed artifact record produced by the
// extractor. Category-specific fields are modeled as a discriminated
// union (Category selects which extension, if any, is populated)
// rather than inheritance: "LCO model" and "Test" artifacts share a
// common head but have disjoint extensions.
package artifact

import (
	"encoding/json"
	"time"
)

// Category identifies which extension a Record carries, if any.
type Category string

const (
	CategoryCommon Category = "common"
	CategoryLCO    Category = "lco"
	CategoryTest   Category = "test"
)

// Record is the common head shared by every artifact, plus an optional
// category-specific extension selected by Category.
type Record struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ComponentName     string `json:"componentName"`
	ComponentCategory string `json:"componentCategory"`
	ComponentGroup    string `json:"componentGroup"`

	User             string     `json:"user"`
	LifecycleStatus  string     `json:"lifecycleStatus"`
	ReleaseTimestamp *time.Time `json:"releaseTimestamp"`
	CreatedTimestamp *time.Time `json:"createdTimestamp"`
	IsDeleted        bool       `json:"isDeleted"`
	DeletedTimestamp *time.Time `json:"deletedTimestamp"`

	UploadPath string `json:"uploadPath"`

	// DeepLink is the operator-facing catalog URL for this node, built
	// from the configured link template; empty when no template is
	// configured.
	DeepLink string `json:"deepLink,omitempty"`

	Category Category       `json:"category"`
	LCO      *LCOExtension  `json:"lco,omitempty"`
	Test     *TestExtension `json:"test,omitempty"`

	// Validation is populated by the path/name validator after
	// extraction; nil until validated.
	Validation *ValidationResult `json:"validation,omitempty"`
}

// dateLayout is the display format applied to every timestamp field at
// JSON-emission time, set once at startup from Config.Display.DateFormat.
// It is a rendering detail only (never consulted by any comparison or
// business rule), so a package-level default is safe where a RunContext
// field would not be.
var dateLayout = "02-01-2006 15:04:05"

// SetDateLayout overrides the display layout used when marshaling
// Records to JSON. Call once at startup; an empty layout is ignored.
func SetDateLayout(layout string) {
	if layout != "" {
		dateLayout = layout
	}
}

// recordAlias has Record's shape without its MarshalJSON method, so
// MarshalJSON can delegate back to the default struct encoder after
// substituting the timestamp fields.
type recordAlias Record

// MarshalJSON renders timestamp fields using the configured display
// layout instead of Go's default RFC3339, e.g. "DD-MM-YYYY HH:MM:SS".
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		recordAlias
		ReleaseTimestamp *string `json:"releaseTimestamp"`
		CreatedTimestamp *string `json:"createdTimestamp"`
		DeletedTimestamp *string `json:"deletedTimestamp"`
	}{
		recordAlias:      recordAlias(r),
		ReleaseTimestamp: formatTimestamp(r.ReleaseTimestamp),
		CreatedTimestamp: formatTimestamp(r.CreatedTimestamp),
		DeletedTimestamp: formatTimestamp(r.DeletedTimestamp),
	})
}

func formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateLayout)
	return &s
}

// LCOExtension carries the fields populated only for LCO-model artifacts.
type LCOExtension struct {
	SimulationType string `json:"simulationType,omitempty"` // "HiL", "SiL", or "" when absent
	SoftwareType   string `json:"softwareType,omitempty"`
	LabcarType     string `json:"labcarType,omitempty"`
	LCOVersion     string `json:"lcoVersion,omitempty"`
	VemoxVersion   string `json:"vemoxVersion,omitempty"`
	IsGenuineBuild bool   `json:"isGenuineBuild"`
}

// TestExtension carries the fields populated only for test artifacts.
type TestExtension struct {
	TestType               string `json:"testType,omitempty"`
	TestTypePath           string `json:"testTypePath,omitempty"`
	TestTypeMismatch       bool   `json:"testTypeMismatch"`
	TestVersion            string `json:"testVersion,omitempty"`
	EcuTestVersion         string `json:"ecuTestVersion,omitempty"`
	TestConfiguration      string `json:"testConfiguration,omitempty"`
	TestbenchConfiguration string `json:"testbenchConfiguration,omitempty"`
}

// DeviationType is the closed set of path/name validation outcomes.
type DeviationType string

const (
	DeviationValid                    DeviationType = "VALID"
	DeviationMissingModel             DeviationType = "MISSING_MODEL"
	DeviationMissingHiL               DeviationType = "MISSING_HIL"
	DeviationMissingSiL               DeviationType = "MISSING_SIL"
	DeviationMissingCSPSWB            DeviationType = "MISSING_CSP_SWB"
	DeviationCSPSWBUnderModel         DeviationType = "CSP_SWB_UNDER_MODEL"
	DeviationWrongLocation            DeviationType = "WRONG_LOCATION"
	DeviationInvalidSubfolder         DeviationType = "INVALID_SUBFOLDER"
	DeviationInvalidNameFormat        DeviationType = "INVALID_NAME_FORMAT"
	DeviationNameMismatch             DeviationType = "NAME_MISMATCH"
	DeviationTestTypeMismatch         DeviationType = "TEST_TYPE_MISMATCH"
	DeviationTestConfigSWLineMismatch DeviationType = "TEST_CONFIG_SW_LINE_MISMATCH"
)

// ValidationResult tags an artifact with a deviation outcome, a
// human-readable detail, and a hint describing the expected shape.
type ValidationResult struct {
	Deviation DeviationType `json:"deviation"`
	Detail    string        `json:"detail,omitempty"`
	Hint      string        `json:"hint,omitempty"`
}
