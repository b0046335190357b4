// Package validate checks an artifact's upload path and name against the
// path/naming conventions configured per component, and cross-checks
// test-specific attributes against the path they were found at. The
// convention model is declarative: callers supply an expected structure
// template plus per-variable allowed values, rather than one hardcoded
// validator per component.
package validate

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tisops/tis-crawler/internal/artifact"
)

// conventionCacheSize bounds the memoized component-name -> convention
// lookup. The convention table itself is small and static for a run, so
// this only saves the repeated exact/prefix-match walk, not memory.
const conventionCacheSize = 256

// PathConvention describes the expected folder structure for one
// component (or component prefix), e.g.
//
//	{Project}/{SoftwareLine}/Model/SiL/vVeh/{CSP_SWB}/{LabcarType}/.../{artifact}
//
// Variables is keyed by placeholder name for exact-match allowed values;
// VariablesContains is the "_contains" variant, matched case-insensitively
// as a substring.
type PathConvention struct {
	ExpectedStructure string
	Variables         map[string][]string
	VariablesContains map[string][]string
}

// NamingPattern is one compiled naming-convention entry.
type NamingPattern struct {
	Name  string
	Regex *regexp.Regexp
}

// Validator holds the compiled, config-driven validation rules.
type Validator struct {
	conventions      map[string]PathConvention
	namingPatterns   []NamingPattern
	cspSWBSubstrings []string

	testTypeComponents         map[string]struct{}
	testConfigSWLineComponents map[string]struct{}

	// conventionCache memoizes pathConvention's exact/prefix lookup by
	// component name; the convention table is read-only after New, so
	// entries never go stale within a run.
	conventionCache *lru.Cache[string, conventionLookup]
}

// conventionLookup is the cached result of a component-name -> convention
// resolution, including the "no convention configured" case so repeated
// misses don't re-walk the prefix table either.
type conventionLookup struct {
	convention PathConvention
	ok         bool
}

// New builds a Validator from path conventions and compiled naming
// patterns. cspSWBSubstrings is the fallback list used by the generic
// Model/HiL|SiL convention when a component has no explicit structure.
func New(conventions map[string]PathConvention, namingPatterns []NamingPattern, cspSWBSubstrings []string) *Validator {
	if len(cspSWBSubstrings) == 0 {
		cspSWBSubstrings = []string{"CSP", "SWB"}
	}
	cache, _ := lru.New[string, conventionLookup](conventionCacheSize)
	return &Validator{
		conventions:      conventions,
		namingPatterns:   namingPatterns,
		cspSWBSubstrings: cspSWBSubstrings,
		testTypeComponents: map[string]struct{}{
			"test_ECU-TEST": {},
		},
		testConfigSWLineComponents: map[string]struct{}{
			"test_ECU-TEST": {},
		},
		conventionCache: cache,
	}
}

// ValidatePath validates uploadPath against the convention for
// componentName, falling back to the generic Model/HiL|SiL rule when no
// component-specific structure is configured.
func (v *Validator) ValidatePath(uploadPath, componentName string) artifact.ValidationResult {
	parts := splitPath(uploadPath)
	if len(parts) < 2 {
		return result(artifact.DeviationWrongLocation, "path too short", "[Project]/[SoftwareLine]/...")
	}
	project, swLine := parts[0], parts[1]

	convention, ok := v.pathConvention(componentName)
	if ok && convention.ExpectedStructure != "" {
		return v.validateAgainstStructure(parts, convention)
	}

	return v.validateGenericModelConvention(parts, project, swLine)
}

func (v *Validator) pathConvention(componentName string) (PathConvention, bool) {
	if componentName == "" {
		return PathConvention{}, false
	}
	if v.conventionCache != nil {
		if cached, ok := v.conventionCache.Get(componentName); ok {
			return cached.convention, cached.ok
		}
	}

	convention, ok := v.resolveConvention(componentName)
	if v.conventionCache != nil {
		v.conventionCache.Add(componentName, conventionLookup{convention: convention, ok: ok})
	}
	return convention, ok
}

func (v *Validator) resolveConvention(componentName string) (PathConvention, bool) {
	if c, ok := v.conventions[componentName]; ok {
		return c, true
	}
	for prefix, c := range v.conventions {
		if strings.HasPrefix(componentName, prefix) {
			return c, true
		}
	}
	return PathConvention{}, false
}

// reservedPlaceholders never resolve to a convention variable lookup.
var reservedPlaceholders = map[string]struct{}{
	"Project":      {},
	"SoftwareLine": {},
	"artifact":     {},
	"...":          {},
}

func (v *Validator) validateAgainstStructure(pathParts []string, convention PathConvention) artifact.ValidationResult {
	structureParts := strings.Split(convention.ExpectedStructure, "/")

	var requiredFolders []string
	variablePositions := map[int]string{}

	for i, part := range structureParts {
		if isPlaceholder(part) {
			name := placeholderName(part)
			if _, reserved := reservedPlaceholders[name]; !reserved {
				variablePositions[i] = name
			}
			continue
		}
		if part != "..." {
			requiredFolders = append(requiredFolders, part)
		}
	}

	for _, folder := range requiredFolders {
		if !contains(pathParts, folder) {
			return result(artifact.DeviationWrongLocation,
				"missing required folder '"+folder+"' in path",
				convention.ExpectedStructure)
		}
	}

	for _, varName := range variablePositions {
		actual := findVariableValueInPath(pathParts, structureParts, varName)
		if actual == "" {
			continue
		}

		if allowed, ok := convention.VariablesContains[varName]; ok {
			if !containsAnyFold(actual, allowed) {
				return result(artifact.DeviationInvalidSubfolder,
					"invalid "+varName+" '"+actual+"' (must contain: "+strings.Join(allowed, " or ")+")",
					convention.ExpectedStructure)
			}
			continue
		}

		if allowed, ok := convention.Variables[varName]; ok && len(allowed) > 0 {
			if !containsExact(allowed, actual) {
				return result(artifact.DeviationInvalidSubfolder,
					"invalid "+varName+" '"+actual+"' (allowed: "+strings.Join(allowed, ", ")+")",
					convention.ExpectedStructure)
			}
		}
	}

	return result(artifact.DeviationValid, "", "")
}

// findVariableValueInPath locates the placeholder's position in the
// structure template, walks backward to the nearest literal anchor
// folder, counts how many variable placeholders sit between the anchor
// and the target, and reads that many steps forward from the anchor's
// position in the actual path.
func findVariableValueInPath(pathParts, structureParts []string, varName string) string {
	target := "{" + varName + "}"
	for i, part := range structureParts {
		if part != target {
			continue
		}

		var anchor string
		steps := 1
		for j := i - 1; j >= 0; j-- {
			sp := structureParts[j]
			if isPlaceholder(sp) {
				steps++
				continue
			}
			if sp != "..." {
				anchor = sp
				break
			}
		}

		if anchor == "" {
			continue
		}
		anchorIdx := indexOf(pathParts, anchor)
		if anchorIdx < 0 {
			continue
		}
		targetIdx := anchorIdx + steps
		if targetIdx < len(pathParts) {
			return pathParts[targetIdx]
		}
	}
	return ""
}

func (v *Validator) validateGenericModelConvention(pathParts []string, project, swLine string) artifact.ValidationResult {
	if !contains(pathParts, "Model") {
		return result(artifact.DeviationMissingModel,
			"artifact not under 'Model' folder",
			project+"/"+swLine+"/Model/...")
	}

	modelIdx := indexOf(pathParts, "Model")
	remaining := pathParts[modelIdx+1:]

	// the last path segment is the artifact's own name, not a subfolder
	var folders []string
	if len(remaining) > 0 {
		folders = remaining[:len(remaining)-1]
	}

	isHil := contains(folders, "HiL")
	isSil := contains(folders, "SiL")

	if !isHil && !isSil {
		if len(remaining) > 0 && containsAnyFold(remaining[0], v.cspSWBSubstrings) {
			return result(artifact.DeviationCSPSWBUnderModel,
				remaining[0]+" directly under Model (missing HiL)",
				project+"/"+swLine+"/Model/HiL/"+remaining[0]+"/...")
		}
		return result(artifact.DeviationMissingHiL,
			"missing 'HiL' or 'SiL' folder after Model",
			project+"/"+swLine+"/Model/HiL|SiL/[subfolder]/...")
	}

	if isHil {
		if r := v.validateHilPath(folders, project, swLine); r.Deviation != artifact.DeviationValid {
			return r
		}
	}
	if isSil {
		if r := v.validateSilPath(folders, project, swLine); r.Deviation != artifact.DeviationValid {
			return r
		}
	}
	return result(artifact.DeviationValid, "", "")
}

func (v *Validator) validateHilPath(remaining []string, project, swLine string) artifact.ValidationResult {
	hilIdx := indexOf(remaining, "HiL")
	afterHil := remaining[hilIdx+1:]

	if len(afterHil) == 0 {
		return result(artifact.DeviationMissingCSPSWB,
			"missing subfolder after HiL",
			project+"/"+swLine+"/Model/HiL/[CSP|SWB]/...")
	}
	if !containsAnyFold(afterHil[0], v.cspSWBSubstrings) {
		return result(artifact.DeviationInvalidSubfolder,
			"invalid subfolder '"+afterHil[0]+"' after HiL",
			project+"/"+swLine+"/Model/HiL/["+strings.Join(v.cspSWBSubstrings, "/")+"]/...")
	}
	return result(artifact.DeviationValid, "", "")
}

func (v *Validator) validateSilPath(remaining []string, project, swLine string) artifact.ValidationResult {
	silIdx := indexOf(remaining, "SiL")
	afterSil := remaining[silIdx+1:]

	if len(afterSil) == 0 {
		return result(artifact.DeviationMissingSiL,
			"missing subfolder after SiL",
			project+"/"+swLine+"/Model/SiL/[subfolder]/...")
	}
	return result(artifact.DeviationValid, "", "")
}

// ValidateName checks artifactName against every configured naming
// pattern, first-match-wins. An empty pattern set is treated as
// "anything goes". On success the second return value is the name of
// the matching pattern; on failure it is a hint listing every pattern
// that was tried.
func (v *Validator) ValidateName(artifactName string) (bool, string) {
	if len(v.namingPatterns) == 0 {
		return true, ""
	}
	for _, p := range v.namingPatterns {
		if p.Regex.MatchString(artifactName) {
			return true, p.Name
		}
	}
	names := make([]string, len(v.namingPatterns))
	for i, p := range v.namingPatterns {
		names[i] = p.Name
	}
	return false, "expected name matching one of: " + strings.Join(names, ", ")
}

func result(d artifact.DeviationType, detail, hint string) artifact.ValidationResult {
	return artifact.ValidationResult{Deviation: d, Detail: detail, Hint: hint}
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func isPlaceholder(part string) bool {
	return strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}")
}

func placeholderName(part string) string {
	return strings.TrimSuffix(strings.TrimPrefix(part, "{"), "}")
}

func contains(items []string, target string) bool {
	return indexOf(items, target) >= 0
}

func indexOf(items []string, target string) int {
	for i, s := range items {
		if s == target {
			return i
		}
	}
	return -1
}

func containsExact(allowed []string, actual string) bool {
	for _, a := range allowed {
		if a == actual {
			return true
		}
	}
	return false
}

func containsAnyFold(s string, substrings []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
