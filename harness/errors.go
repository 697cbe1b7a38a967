package harness

import (
	"errors"
	"fmt"
)

// Kind classifies harness failures.
type Kind string

const (
	// KindEngine covers failures reported by the store during open, begin,
	// insert, commit or finalize.
	KindEngine Kind = "engine"
	// KindFilesystem covers creating or removing benchmark directories.
	KindFilesystem Kind = "filesystem"
	// KindConcurrency covers failures to schedule or join a worker.
	KindConcurrency Kind = "concurrency"
)

// Operation names used in Error.Op.
const (
	OpOpen     = "open"
	OpCreate   = "create"
	OpWorkload = "workload"
	OpFinalize = "finalize"
	OpMkdir    = "mkdir"
	OpSchedule = "schedule"
	OpJoin     = "join"
)

// Error carries enough context to reproduce a failed run.
type Error struct {
	Kind   Kind
	Engine string
	Op     string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s error: %s %s: %v", e.Kind, e.Engine, e.Op, e.Err)
	}

	return fmt.Sprintf("%s error: %s %s %s: %v", e.Kind, e.Engine, e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err wraps a harness Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Kind == kind
	}

	return false
}
