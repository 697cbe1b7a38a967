// Package harness drives store engines through the write workload: it runs
// each instance on a worker goroutine, fans out instances per iteration and
// aggregates their timings.
package harness

import (
	"context"
	"time"
)

// Result holds the outcome of one Orchestrator.Run.
type Result struct {
	Engine     string          `json:"engine"`
	Root       string          `json:"root"`
	Items      int             `json:"items"`
	Iterations int             `json:"iterations"`
	Instances  int             `json:"instances"`
	Durations  []time.Duration `json:"durations_ns"`
	Elapsed    time.Duration   `json:"elapsed_ns"`
	// DBSizeBytes is the on-disk size of all instances after the last
	// iteration, measured before the root is removed.
	DBSizeBytes uint64 `json:"db_size_bytes"`
}

// Bench is an engine-agnostic view of an Orchestrator, used by drivers that
// pick the engine at runtime.
type Bench interface {
	Name() string
	Run(ctx context.Context) (*Result, error)
	// Work is the entry point a sampling driver times repeatedly.
	Work(ctx context.Context) error
}
