// Package aggregate partitions the flat artifact list produced by a
// traversal run into per-component payloads, preserving project and
// software-line nesting, and computes the latest artifact per software
// line by integer-interpreted id.
package aggregate

import (
	"strconv"
	"strings"

	"github.com/tisops/tis-crawler/internal/artifact"
	"github.com/tisops/tis-crawler/internal/orchestrate"
)

// SoftwareLinePayload is one software line's artifacts for a single
// component partition, plus its computed latest artifact.
type SoftwareLinePayload struct {
	SoftwareLineID string             `json:"softwareLineId"`
	Artifacts      []*artifact.Record `json:"artifacts"`
	LatestArtifact *artifact.Record   `json:"latestArtifact"`
}

// ProjectPayload nests software lines under a project.
type ProjectPayload struct {
	ProjectID     string                          `json:"projectId"`
	SoftwareLines map[string]*SoftwareLinePayload `json:"softwareLines"`
}

// Payload is one component partition: project name -> ProjectPayload.
type Payload map[string]*ProjectPayload

// Partition groups result.Artifacts by componentName. Every software
// line present in result.Projects appears in every partition, even with
// an empty artifact list, so callers can distinguish "known but empty"
// from "unknown".
func Partition(result *orchestrate.Result) map[string]Payload {
	partitions := make(map[string]Payload)

	skeleton := func(componentName string) Payload {
		p, ok := partitions[componentName]
		if ok {
			return p
		}
		p = make(Payload)
		for projectName, proj := range result.Projects {
			pp := &ProjectPayload{ProjectID: proj.ID, SoftwareLines: make(map[string]*SoftwareLinePayload)}
			for swName, sw := range proj.SoftwareLines {
				pp.SoftwareLines[swName] = &SoftwareLinePayload{SoftwareLineID: sw.ID}
			}
			p[projectName] = pp
		}
		partitions[componentName] = p
		return p
	}

	for _, rec := range result.Artifacts {
		p := skeleton(rec.ComponentName)

		uploadParts := splitUploadPath(rec.UploadPath)
		if len(uploadParts) < 2 {
			continue
		}
		projectName, swName := uploadParts[0], uploadParts[1]

		pp, ok := p[projectName]
		if !ok {
			pp = &ProjectPayload{SoftwareLines: make(map[string]*SoftwareLinePayload)}
			p[projectName] = pp
		}
		sw, ok := pp.SoftwareLines[swName]
		if !ok {
			sw = &SoftwareLinePayload{}
			pp.SoftwareLines[swName] = sw
		}
		sw.Artifacts = append(sw.Artifacts, rec)
	}

	for _, p := range partitions {
		for _, pp := range p {
			for _, sw := range pp.SoftwareLines {
				sw.LatestArtifact = latest(sw.Artifacts)
			}
		}
	}

	return partitions
}

// latest returns the artifact with the maximum integer-interpreted id,
// or nil for an empty slice. An artifact whose id does not parse as an
// integer is never picked, so a slice with no numeric id also yields nil.
func latest(artifacts []*artifact.Record) *artifact.Record {
	var best *artifact.Record
	var bestID int64 = -1

	for _, a := range artifacts {
		id, err := strconv.ParseInt(a.ID, 10, 64)
		if err != nil {
			continue
		}
		if best == nil || id > bestID {
			best, bestID = a, id
		}
	}
	return best
}

func splitUploadPath(uploadPath string) []string {
	if uploadPath == "" {
		return nil
	}
	return strings.Split(uploadPath, "/")
}
