package aggregate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Emitter writes one grouped payload and one latest-only payload per
// component partition to the run's output directory.
type Emitter struct {
	OutputDir string
	Timestamp string // YYYYMMDD_HHMMSS, fixed for the whole run

	// Prefixes optionally overrides the filename prefix for a component
	// name; components without an entry use the sanitized component name.
	Prefixes map[string]string
}

// Emit writes every partition in partitions to disk and returns the
// paths written, in no particular order.
func (e Emitter) Emit(partitions map[string]Payload) ([]string, error) {
	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("aggregate: create output dir: %w", err)
	}

	var written []string
	for componentName, payload := range partitions {
		name := sanitizeComponentName(componentName)
		if p, ok := e.Prefixes[componentName]; ok && p != "" {
			name = sanitizeComponentName(p)
		}

		groupedPath := filepath.Join(e.OutputDir, fmt.Sprintf("%s_artifacts_%s.json", name, e.Timestamp))
		if err := writeJSON(groupedPath, payload); err != nil {
			return written, err
		}
		written = append(written, groupedPath)

		latestPath := filepath.Join(e.OutputDir, fmt.Sprintf("latest_%s_artifacts_%s.json", name, e.Timestamp))
		if err := writeJSON(latestPath, latestOnly(payload)); err != nil {
			return written, err
		}
		written = append(written, latestPath)
	}

	return written, nil
}

// latestOnly strips per-line artifact lists, keeping only each software
// line's latest artifact, for the parallel "latest" emission.
func latestOnly(payload Payload) Payload {
	out := make(Payload, len(payload))
	for projectName, pp := range payload {
		outPP := &ProjectPayload{ProjectID: pp.ProjectID, SoftwareLines: make(map[string]*SoftwareLinePayload, len(pp.SoftwareLines))}
		for swName, sw := range pp.SoftwareLines {
			outPP.SoftwareLines[swName] = &SoftwareLinePayload{
				SoftwareLineID: sw.SoftwareLineID,
				LatestArtifact: sw.LatestArtifact,
			}
		}
		out[projectName] = outPP
	}
	return out
}

// sanitizeComponentName replaces whitespace with underscores; case is
// preserved.
func sanitizeComponentName(name string) string {
	return strings.Join(strings.Fields(name), "_")
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("aggregate: marshal %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
