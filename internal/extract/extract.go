// Package extract turns a matched catalog node into a typed artifact
// record: tick/ISO timestamp conversion, JSON-in-string attribute
// parsing, and the category-specific field extraction described in the
// attribute extractor's rules. Parsing is tolerant throughout: a
// malformed JSON-in-string attribute yields an absent derived field,
// never an error.
package extract

import (
	"fmt"
	"strings"

	"github.com/tisops/tis-crawler/internal/artifact"
	"github.com/tisops/tis-crawler/internal/catalog"
)

// Options parameterizes category detection and the vemox/labcar/CSP-SWB
// lookups, mirroring the artifactFilters/pathConvention config sections.
type Options struct {
	LCOComponentNames  map[string]struct{}
	TestComponentNames map[string]struct{}
	LabcarPlatforms    []string // e.g. "VME", "PCIe"
	CSPSWBSubstrings   []string // e.g. "CSP", "SWB"
	VemoxSearchPath    string   // normalized (forward-slash) path suffix to match SVN externals against

	// LinkTemplate builds the deep-link emitted alongside each artifact,
	// e.g. "https://tis.example.com/nodes/%s". A "%s" placeholder is
	// substituted with the node id; an empty template leaves DeepLink
	// unset.
	LinkTemplate string
}

// Extract converts node (already known to be an artifact candidate) plus
// its ancestor path into a Record.
func Extract(node catalog.Node, ancestorNames []string, componentName string, opts Options) *artifact.Record {
	uploadPath := strings.Join(append(append([]string{}, ancestorNames...), node.Name), "/")

	rec := &artifact.Record{
		ID:                node.ID,
		Name:              node.Name,
		ComponentName:     componentName,
		ComponentCategory: node.TypeTag,
		ComponentGroup:    node.GroupTag,
		UploadPath:        uploadPath,
		Category:          artifact.CategoryCommon,
	}

	if opts.LinkTemplate != "" {
		rec.DeepLink = fmt.Sprintf(opts.LinkTemplate, node.ID)
	}

	if user, ok := node.Attr("user"); ok {
		rec.User = strings.ToLower(user)
	}
	if status, ok := node.Attr("lifeCycleStatus"); ok {
		rec.LifecycleStatus = status
	}
	if created := node.Created; created != "" {
		if t, ok := catalog.ParseInstant(created); ok {
			rec.CreatedTimestamp = &t
		}
	}
	if release, ok := node.Attr("releaseDateTime"); ok {
		if t, ok := catalog.ParseInstant(release); ok {
			rec.ReleaseTimestamp = &t
		}
	}
	if deleted, ok := node.Attr("tisFileDeletedDate"); ok && deleted != "" {
		if t, ok := catalog.ParseInstant(deleted); ok {
			rec.DeletedTimestamp = &t
			rec.IsDeleted = !t.After(nowUTC())
		}
	}

	switch {
	case isInSet(componentName, opts.LCOComponentNames):
		rec.Category = artifact.CategoryLCO
		rec.LCO = extractLCO(node, uploadPath, opts)
	case isInSet(componentName, opts.TestComponentNames):
		rec.Category = artifact.CategoryTest
		rec.Test = extractTest(node, uploadPath)
	}

	return rec
}

func isInSet(name string, set map[string]struct{}) bool {
	if len(set) == 0 {
		return false
	}
	_, ok := set[name]
	return ok
}

func pathSegments(uploadPath string) []string {
	return strings.Split(uploadPath, "/")
}

func extractLCO(node catalog.Node, uploadPath string, opts Options) *artifact.LCOExtension {
	ext := &artifact.LCOExtension{}
	segments := pathSegments(uploadPath)

	for _, seg := range segments {
		if seg == "HiL" || seg == "SiL" {
			ext.SimulationType = seg
			break
		}
	}

	for _, seg := range segments {
		if containsAny(seg, opts.CSPSWBSubstrings) {
			ext.SoftwareType = seg
			break
		}
	}

	for _, seg := range segments {
		if matchesAny(seg, opts.LabcarPlatforms) {
			ext.LabcarType = seg
			break
		}
	}
	if ext.LabcarType == "" {
		if lc, ok := node.Attr("lcType"); ok {
			ext.LabcarType = lc
		}
	}

	if execution, ok := node.Attr("execution"); ok {
		ext.LCOVersion = firstDependencyVersion(execution, "LCO")
	}

	if sources, ok := node.Attr("sources"); ok {
		ext.VemoxVersion = FindVemoxVersion(sources, opts.VemoxSearchPath)
	}

	if genuine, ok := node.AttrBool("isGenuineBuild"); ok {
		ext.IsGenuineBuild = genuine
	}

	return ext
}

func extractTest(node catalog.Node, uploadPath string) *artifact.TestExtension {
	ext := &artifact.TestExtension{}

	if v, ok := node.Attr("testType"); ok {
		ext.TestType = v
	}
	ext.TestTypePath = segmentAfter(uploadPath, "Test")

	if v, ok := node.Attr("testVersion"); ok {
		ext.TestVersion = v
	}
	if execution, ok := node.Attr("execution"); ok {
		ext.EcuTestVersion = firstDependencyVersion(execution, "ECU-TEST")
	}
	if v, ok := node.Attr("testConfiguration"); ok {
		ext.TestConfiguration = v
	}
	if v, ok := node.Attr("testbenchConfiguration"); ok {
		ext.TestbenchConfiguration = v
	}

	return ext
}

// segmentAfter returns the path segment immediately following the first
// occurrence of anchor, or "" if anchor is absent or is the last segment.
func segmentAfter(uploadPath, anchor string) string {
	segments := pathSegments(uploadPath)
	for i, seg := range segments {
		if seg == anchor && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func matchesAny(s string, candidates []string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
