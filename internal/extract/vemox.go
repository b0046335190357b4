package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// sourceEntry mirrors one element of the "sources" attribute: a mixed
// list of SVN-external and CONAN-package descriptors. Only the fields
// relevant to VeMoX version discovery are modeled; anything else is
// ignored rather than rejected, per the extractor's tolerant-parsing rule.
type sourceEntry struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	URL     string `json:"url"`
	Package string `json:"package"`
}

var (
	vemoxSVNPattern   = regexp.MustCompile(`(?i)vemox(\d+)\.(\d+)\.(\d+)\.(\d+)\.(\d+)`)
	vemoxConanPattern = regexp.MustCompile(`(?i)vemox/(\d+)\.(\d+)\.(\d+)\.(\d+)\.(\d+)@`)
)

// FindVemoxVersion scans raw (the JSON-encoded "sources" attribute) for a
// VeMoX version, preferring SVN externals whose normalized path ends
// with searchPath, falling back to CONAN package references. Among every
// match found, the lexicographically first ("first sorted" rather than
// "latest") is returned. Malformed input yields "".
func FindVemoxVersion(raw, searchPath string) string {
	entries, ok := parseSourceEntries(raw)
	if !ok {
		return ""
	}

	versions := map[string]struct{}{}
	normalizedSearch := normalizeSlashes(searchPath)

	for _, e := range entries {
		p := normalizeSlashes(e.Path)
		if normalizedSearch != "" && !strings.HasSuffix(p, normalizedSearch) {
			continue
		}
		if v := extractFromPattern(e.URL, vemoxSVNPattern); v != "" {
			versions[v] = struct{}{}
		}
	}

	// CONAN package references are only consulted when no SVN external
	// matched.
	if len(versions) == 0 {
		for _, e := range entries {
			if v := extractFromPattern(e.Package, vemoxConanPattern); v != "" {
				versions[v] = struct{}{}
			}
		}
	}

	if len(versions) == 0 {
		return ""
	}
	sorted := make([]string, 0, len(versions))
	for v := range versions {
		sorted = append(sorted, v)
	}
	sort.Strings(sorted)
	return sorted[0]
}

func parseSourceEntries(raw string) ([]sourceEntry, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	var entries []sourceEntry
	if err := json.Unmarshal([]byte(raw), &entries); err == nil {
		return entries, true
	}

	var single sourceEntry
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return []sourceEntry{single}, true
	}

	// The attribute may itself be a JSON-encoded string containing JSON
	// (double-encoded), as seen elsewhere in the catalog's attribute bag.
	var inner string
	if err := json.Unmarshal([]byte(raw), &inner); err == nil {
		return parseSourceEntries(inner)
	}

	return nil, false
}

func extractFromPattern(s string, re *regexp.Regexp) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return formatVemoxVersion(m[1], m[2], m[3], m[4], m[5])
}

func formatVemoxVersion(a, b, c, d, e string) string {
	return "VeMox" + a + b + c + "R" + d + e
}

func normalizeSlashes(s string) string {
	return strings.ReplaceAll(s, `\`, "/")
}
