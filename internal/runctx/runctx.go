// Package runctx replaces a mutable "current run directory" process
// global with an explicit value threaded through the orchestrator and
// its collaborators.
package runctx

import (
	"time"

	"github.com/google/uuid"
)

// RunContext carries the identity and timing of a single crawl run. It is
// created once at startup and passed by value (or pointer, for the
// logger) to every component that needs to know "which run is this."
type RunContext struct {
	// RunID uniquely identifies this run for log correlation.
	RunID string

	// StartedAt is the wall-clock time the run began, used to compute
	// the timestamp embedded in emitted filenames.
	StartedAt time.Time

	// OutputDir is the directory emitted JSON payloads and the run log
	// are written to.
	OutputDir string
}

// New creates a RunContext starting now, with a fresh run id.
func New(outputDir string) RunContext {
	return RunContext{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		OutputDir: outputDir,
	}
}

// Timestamp formats StartedAt as the YYYYMMDD_HHMMSS suffix used in
// emitted filenames.
func (r RunContext) Timestamp() string {
	return r.StartedAt.UTC().Format("20060102_150405")
}
