package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/weiihann/kvbench/paths"
	"github.com/weiihann/kvbench/workload"
	"golang.org/x/sync/errgroup"
)

// DefaultPrefix namespaces benchmark roots under the temp directory.
const DefaultPrefix = "kvbench"

// Options tunes an Orchestrator.
type Options struct {
	// Prefix is the directory under os.TempDir() holding run roots.
	Prefix string
	// Workers caps how many instances run at once. Zero means NumCPU.
	Workers int
}

// Orchestrator fans out spec.Instances runners per iteration and repeats for
// spec.Iterations.
type Orchestrator[H io.Closer] struct {
	runner *Runner[H]
	spec   workload.Spec
	opts   Options
	logger *slog.Logger
}

// NewOrchestrator creates an Orchestrator. A nil logger falls back to
// slog.Default().
func NewOrchestrator[H io.Closer](
	adapter Adapter[H],
	spec workload.Spec,
	opts Options,
	logger *slog.Logger,
) *Orchestrator[H] {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	return &Orchestrator[H]{
		runner: NewRunner(adapter, logger),
		spec:   spec,
		opts:   opts,
		logger: logger.With(slog.String("engine", adapter.Name())),
	}
}

// Name returns the engine name.
func (o *Orchestrator[H]) Name() string {
	return o.runner.Adapter.Name()
}

// Spec returns the workload the orchestrator runs.
func (o *Orchestrator[H]) Spec() workload.Spec {
	return o.spec
}

// RunIteration runs one instance per path under root concurrently and waits
// for all of them. Iteration zero creates the stores; later iterations reopen
// them. Every handle is released before returning. The first failure is
// returned after all siblings in flight finished; they are never cancelled,
// but no further instance starts once one has failed.
func (o *Orchestrator[H]) RunIteration(
	ctx context.Context,
	root string,
	iteration int,
) ([]time.Duration, error) {
	instancePaths := paths.Instances(root, o.spec.Instances)
	create := iteration == 0

	instances := make([]*Instance[H], len(instancePaths))
	defer o.releaseAll(instances)

	var (
		g      errgroup.Group
		failed atomic.Bool
	)
	g.SetLimit(o.opts.Workers)

	for i, p := range instancePaths {
		// After a failure only instances already in flight may finish.
		if failed.Load() {
			break
		}

		if err := ctx.Err(); err != nil {
			// Already dispatched instances still run to completion, and
			// their first failure wins over the cancellation.
			if werr := g.Wait(); werr != nil {
				return nil, werr
			}

			return nil, &Error{
				Kind: KindConcurrency, Engine: o.Name(), Op: OpSchedule, Path: p, Err: err,
			}
		}

		g.Go(func() (err error) {
			// g.Go blocks for a free slot, so a sibling may have failed
			// meanwhile.
			if failed.Load() {
				return nil
			}

			defer func() {
				if rec := recover(); rec != nil {
					err = &Error{
						Kind:   KindConcurrency,
						Engine: o.Name(),
						Op:     OpJoin,
						Path:   p,
						Err:    fmt.Errorf("worker panicked: %v", rec),
					}
				}

				if err != nil {
					failed.Store(true)
				}
			}()

			inst, err := o.runner.Run(ctx, p, o.spec.Items, create)
			if err != nil {
				return err
			}

			instances[i] = inst

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	durations := make([]time.Duration, len(instances))
	for i, inst := range instances {
		durations[i] = inst.Elapsed
	}

	return durations, nil
}

// Run creates a fresh root, runs every iteration in sequence and removes the
// root once all of them succeeded. A failed run leaves the root on disk.
func (o *Orchestrator[H]) Run(ctx context.Context) (*Result, error) {
	if err := o.spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload: %w", err)
	}

	root := paths.Root(o.opts.Prefix)

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &Error{Kind: KindFilesystem, Engine: o.Name(), Op: OpMkdir, Path: root, Err: err}
	}

	result := &Result{
		Engine:     o.Name(),
		Root:       root,
		Items:      o.spec.Items,
		Iterations: o.spec.Iterations,
		Instances:  o.spec.Instances,
		Durations:  make([]time.Duration, 0, o.spec.Iterations*o.spec.Instances),
	}

	start := time.Now()

	for it := 0; it < o.spec.Iterations; it++ {
		durations, err := o.RunIteration(ctx, root, it)
		if err != nil {
			o.logger.Error("iteration failed, leaving root for inspection",
				slog.Int("iteration", it),
				slog.String("root", root),
				slog.String("error", err.Error()),
			)

			return nil, fmt.Errorf("iteration %d: %w", it, err)
		}

		result.Durations = append(result.Durations, durations...)
	}

	result.Elapsed = time.Since(start)

	o.logger.Info("all iterations done",
		slog.String("root", root),
		slog.Duration("elapsed", result.Elapsed),
	)

	size, err := dirSize(root)
	if err != nil {
		o.logger.Warn("failed to measure db size",
			slog.String("error", err.Error()),
		)
	}

	result.DBSizeBytes = size

	if err := os.RemoveAll(root); err != nil {
		o.logger.Warn("failed to remove benchmark root",
			slog.String("root", root),
			slog.String("error", err.Error()),
		)
	}

	return result, nil
}

// Work runs the full benchmark once and discards the timings, leaving the
// measurement to the caller.
func (o *Orchestrator[H]) Work(ctx context.Context) error {
	_, err := o.Run(ctx)

	return err
}

func (o *Orchestrator[H]) releaseAll(instances []*Instance[H]) {
	for _, inst := range instances {
		if inst == nil {
			continue
		}

		if err := inst.Guard.Release(); err != nil {
			o.logger.Warn("failed to close store",
				slog.String("path", inst.Path),
				slog.String("error", err.Error()),
			)
		}
	}
}
