package validate

import (
	"regexp"
	"strings"

	"github.com/tisops/tis-crawler/internal/artifact"
)

var (
	pNumberWithSeparators = regexp.MustCompile(`[/\\]P(\d{4})[/\\]`)
	pNumberBare           = regexp.MustCompile(`P(\d{4})(?:[/\\]|$)`)
	nonAlphanumeric       = regexp.MustCompile(`[^a-zA-Z0-9]`)
	nonDigit              = regexp.MustCompile(`[^0-9]`)
	parenthesized         = regexp.MustCompile(`\([^)]*\)`)
)

// ValidateTestType checks that a test_ECU-TEST artifact's testType
// attribute agrees with the Test/{TestType} segment of its upload path.
// Components outside that set are always valid; this check only applies
// where both the path segment and the attribute are present.
func (v *Validator) ValidateTestType(componentName, testTypeAttr, uploadPath string) artifact.ValidationResult {
	if _, ok := v.testTypeComponents[componentName]; !ok {
		return result(artifact.DeviationValid, "", "")
	}

	fromPath := testTypeFromPath(uploadPath)
	if fromPath == "" || testTypeAttr == "" {
		return result(artifact.DeviationValid, "", "")
	}

	if fromPath != testTypeAttr {
		return result(artifact.DeviationTestTypeMismatch,
			"testType attribute '"+testTypeAttr+"' does not match path 'Test/"+fromPath+"'",
			"expected testType='"+fromPath+"' based on path, or move artifact to Test/"+testTypeAttr+"/")
	}
	return result(artifact.DeviationValid, "", "")
}

func testTypeFromPath(uploadPath string) string {
	parts := splitPath(uploadPath)
	for i, part := range parts {
		if part == "Test" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// ValidateTestConfigSoftwareLine checks that the P-number embedded in a
// test_ECU-TEST artifact's test/testbench configuration path matches the
// last four digits of its (cleaned) software line name.
func (v *Validator) ValidateTestConfigSoftwareLine(componentName, testConfiguration, testbenchConfiguration, softwareLine string) artifact.ValidationResult {
	if _, ok := v.testConfigSWLineComponents[componentName]; !ok {
		return result(artifact.DeviationValid, "", "")
	}

	configPath := testConfiguration
	if configPath == "" {
		configPath = testbenchConfiguration
	}
	if configPath == "" {
		return result(artifact.DeviationValid, "", "")
	}

	pNumber := extractPNumber(configPath)
	if pNumber == "" {
		return result(artifact.DeviationValid, "", "")
	}

	swLineDigits := extractSoftwareLineDigits(softwareLine)
	if swLineDigits == "" {
		return result(artifact.DeviationValid, "", "")
	}

	if pNumber != swLineDigits {
		return result(artifact.DeviationTestConfigSWLineMismatch,
			"test config P-number 'P"+pNumber+"' does not match software line '"+softwareLine+"' (expected P"+swLineDigits+")",
			"testConfiguration path should contain P"+swLineDigits+" for software line '"+softwareLine+"'")
	}
	return result(artifact.DeviationValid, "", "")
}

func extractPNumber(configPath string) string {
	if m := pNumberWithSeparators.FindStringSubmatch(configPath); m != nil {
		return m[1]
	}
	if m := pNumberBare.FindStringSubmatch(configPath); m != nil {
		return m[1]
	}
	return ""
}

// extractSoftwareLineDigits applies, in order: strip parenthesized
// content, keep only the segment before the first underscore, strip
// everything non-alphanumeric, then return the trailing four digits.
func extractSoftwareLineDigits(softwareLine string) string {
	if softwareLine == "" {
		return ""
	}

	cleaned := parenthesized.ReplaceAllString(softwareLine, "")
	if idx := strings.Index(cleaned, "_"); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	cleaned = nonAlphanumeric.ReplaceAllString(cleaned, "")

	digits := nonDigit.ReplaceAllString(cleaned, "")
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}
