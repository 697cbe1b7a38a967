package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/weiihann/kvbench/guard"
)

// Adapter normalizes one storage engine into the three steps the workload
// needs. Implementations must not retry and must return the engine's error
// as soon as any step fails.
type Adapter[H io.Closer] interface {
	Name() string
	// OpenOrCreate creates a new store at path when create is true and opens
	// an existing one otherwise. Engines where the two are the same may ignore
	// create.
	OpenOrCreate(ctx context.Context, path string, create bool) (*guard.Guard[H], error)
	// RunWriteWorkload inserts items keys in one write transaction and commits
	// it with the engine's strongest durability.
	RunWriteWorkload(ctx context.Context, handle H, items int) error
	// Finalize runs the engine's post-write persistence or compaction step.
	Finalize(ctx context.Context, handle H) error
}

// Instance is a successfully populated store. The caller owns Guard and must
// release it.
type Instance[H io.Closer] struct {
	Path    string
	Guard   *guard.Guard[H]
	Elapsed time.Duration
}

// Runner executes one adapter's full lifecycle against one path.
type Runner[H io.Closer] struct {
	Adapter Adapter[H]
	Logger  *slog.Logger
}

// NewRunner creates a Runner for adapter.
func NewRunner[H io.Closer](adapter Adapter[H], logger *slog.Logger) *Runner[H] {
	return &Runner[H]{
		Adapter: adapter,
		Logger:  logger.With(slog.String("engine", adapter.Name())),
	}
}

// Run opens or creates the store at path, inserts items keys and finalizes.
// Elapsed covers the time from handle acquisition to the end of finalize.
// On failure the handle is released here and partial timing is discarded.
func (r *Runner[H]) Run(
	ctx context.Context,
	path string,
	items int,
	create bool,
) (*Instance[H], error) {
	name := r.Adapter.Name()

	openOp := OpOpen
	if create {
		openOp = OpCreate
	}

	g, err := r.Adapter.OpenOrCreate(ctx, path, create)
	if err != nil {
		return nil, &Error{Kind: KindEngine, Engine: name, Op: openOp, Path: path, Err: err}
	}

	// Release unless the guard is handed to the caller, including when an
	// adapter panics.
	ok := false
	defer func() {
		if !ok {
			r.release(g, path)
		}
	}()

	start := time.Now()

	if err := r.Adapter.RunWriteWorkload(ctx, g.Handle(), items); err != nil {
		return nil, &Error{Kind: KindEngine, Engine: name, Op: OpWorkload, Path: path, Err: err}
	}

	if err := r.Adapter.Finalize(ctx, g.Handle()); err != nil {
		return nil, &Error{Kind: KindEngine, Engine: name, Op: OpFinalize, Path: path, Err: err}
	}

	elapsed := time.Since(start)

	r.Logger.Info("instance done",
		slog.String("path", path),
		slog.Duration("elapsed", elapsed),
	)

	ok = true

	return &Instance[H]{Path: path, Guard: g, Elapsed: elapsed}, nil
}

func (r *Runner[H]) release(g *guard.Guard[H], path string) {
	if err := g.Release(); err != nil {
		r.Logger.Warn("failed to close store",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func dirSize(path string) (uint64, error) {
	var size uint64

	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += uint64(info.Size())
		}

		return nil
	})
	if err != nil {
		return size, fmt.Errorf("walk %s: %w", path, err)
	}

	return size, nil
}
