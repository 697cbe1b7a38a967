package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weiihann/kvbench/config"
	"github.com/weiihann/kvbench/harness"
	"github.com/weiihann/kvbench/report"
)

type benchEntry struct {
	name  string
	bench harness.Bench
}

// sample times cfg.Samples full runs of one engine. Timing wraps the whole
// Run call, the way an external sampling driver would see it.
func sample(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.Config,
	b benchEntry,
) (report.Entry, error) {
	entry := report.Entry{
		Engine:  b.name,
		Samples: make([]time.Duration, 0, cfg.Samples),
		Results: make([]harness.Result, 0, cfg.Samples),
	}

	if cfg.Warmup > 0 {
		select {
		case <-ctx.Done():
			return entry, ctx.Err()
		case <-time.After(cfg.Warmup):
		}
	}

	for i := 0; i < cfg.Samples; i++ {
		start := time.Now()

		result, err := b.bench.Run(ctx)
		if err != nil {
			return entry, fmt.Errorf("run %s sample %d: %w", b.name, i, err)
		}

		elapsed := time.Since(start)

		logger.InfoContext(ctx, "sample done",
			slog.String("engine", b.name),
			slog.Int("sample", i),
			slog.Duration("elapsed", elapsed),
		)

		entry.Samples = append(entry.Samples, elapsed)
		entry.Results = append(entry.Results, *result)
	}

	return entry, nil
}
