// Package classify holds the pure predicates that decide whether a tree
// node is an artifact candidate, and which child subtrees to prune.
package classify

import (
	"regexp"
	"time"

	"github.com/tisops/tis-crawler/internal/catalog"
)

// Filters parameterizes IsCandidate. A nil/empty set for a given
// dimension means "unset" (that dimension is not filtered).
type Filters struct {
	AllowedTypeTags          map[string]struct{}
	AllowedNameTags          map[string]struct{}
	RequiredGroupTag         string
	AllowedLifecycleStatuses map[string]struct{}
	SkipDeleted              bool
}

// IsCandidate reports whether node qualifies as an artifact candidate.
// All configured dimensions must hold simultaneously.
func IsCandidate(node catalog.Node, f Filters) bool {
	if len(f.AllowedTypeTags) > 0 {
		if _, ok := f.AllowedTypeTags[node.TypeTag]; !ok {
			return false
		}
	}
	if len(f.AllowedNameTags) > 0 {
		if _, ok := f.AllowedNameTags[node.NameTag]; !ok {
			return false
		}
	}
	if f.RequiredGroupTag != "" && node.GroupTag != f.RequiredGroupTag {
		return false
	}
	if len(node.Attrs) == 0 {
		return false
	}
	if _, ok := node.Attr("artifact"); !ok {
		return false
	}
	if len(f.AllowedLifecycleStatuses) > 0 {
		status, _ := node.Attr("lifeCycleStatus")
		if _, ok := f.AllowedLifecycleStatuses[status]; !ok {
			return false
		}
	}
	if f.SkipDeleted && IsDeleted(node) {
		return false
	}
	return true
}

// IsDeleted reports whether a node is deleted: tisFileDeletedDate is
// present and denotes an instant at or before now. A deletion date in
// the future does not count as a deletion.
func IsDeleted(node catalog.Node) bool {
	raw, ok := node.Attr("tisFileDeletedDate")
	if !ok || raw == "" {
		return false
	}
	instant, ok := catalog.ParseInstant(raw)
	if !ok {
		return false
	}
	return !instant.After(time.Now().UTC())
}

// PruneMatcher compiles the configured skip-folder literals and regex
// patterns into a single predicate, anchored at the start of the segment
// and matched case-insensitively.
type PruneMatcher struct {
	patterns []*regexp.Regexp
}

// NewPruneMatcher compiles literal folder names (matched as exact,
// case-insensitive names) and free-form regex patterns (anchored at the
// segment start) into one matcher.
func NewPruneMatcher(literals, patterns []string) (*PruneMatcher, error) {
	compiled := make([]*regexp.Regexp, 0, len(literals)+len(patterns))
	for _, lit := range literals {
		re, err := regexp.Compile("(?i)^" + regexp.QuoteMeta(lit) + "$")
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	for _, pat := range patterns {
		re, err := regexp.Compile("(?i)^(?:" + pat + ")")
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return &PruneMatcher{patterns: compiled}, nil
}

// ShouldPrune reports whether childName matches any configured
// skip-folder pattern and should be discarded along with its subtree.
func (m *PruneMatcher) ShouldPrune(childName string) bool {
	for _, re := range m.patterns {
		if re.MatchString(childName) {
			return true
		}
	}
	return false
}

// NoopPruneMatcher returns a matcher that never prunes anything, used
// when no skip patterns are configured.
func NoopPruneMatcher() *PruneMatcher {
	return &PruneMatcher{}
}
