// Package main provides the CLI entry point for kvbench, a write-throughput
// benchmark for embedded transactional key-value stores.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/weiihann/kvbench/config"
	"github.com/weiihann/kvbench/engine"
	"github.com/weiihann/kvbench/report"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(logger, level, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("kvbench failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "kvbench",
		Short: "Write-throughput benchmark for embedded key-value stores",
		Long: `Kvbench provisions fresh on-disk stores, drives each through the same
single-transaction sequential insert workload, and compares how long every
engine takes to commit and persist it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger, level, out))
	root.AddCommand(newEnginesCmd(out))

	return root
}

func newEnginesCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the supported storage engines",
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, name := range engine.Known() {
				fmt.Fprintf(out, "%-8s %s\n", name, engine.Describe(name))
			}

			return nil
		},
	}
}

type runFlags struct {
	configPath string
	verbose    bool
	cfg        config.Config
}

func newRunCmd(logger *slog.Logger, level *slog.LevelVar, out io.Writer) *cobra.Command {
	f := runFlags{cfg: config.Default()}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Benchmark one or more engines",
		Long: `Run the write workload against each selected engine. Every sample is a
full run: create a fresh root, run all iterations with their instances in
parallel, then remove the root.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.verbose {
				level.Set(slog.LevelDebug)
			}

			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}

			return runBenchmark(cmd.Context(), logger, out, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "",
		"Path to a YAML config file; explicit flags override it")
	flags.BoolVar(&f.verbose, "verbose", false,
		"Enable debug logging")
	flags.StringSliceVar(&f.cfg.Engines, "engines", f.cfg.Engines,
		"Engines to benchmark (bolt, leveldb, sqlite)")
	flags.IntVar(&f.cfg.Workload.Items, "items", f.cfg.Workload.Items,
		"Keys inserted per instance per iteration")
	flags.IntVar(&f.cfg.Workload.Iterations, "iterations", f.cfg.Workload.Iterations,
		"Sequential iterations per run")
	flags.IntVar(&f.cfg.Workload.Instances, "instances", f.cfg.Workload.Instances,
		"Concurrent store instances per iteration")
	flags.IntVar(&f.cfg.Samples, "samples", f.cfg.Samples,
		"Timed runs per engine")
	flags.IntVar(&f.cfg.Workers, "workers", f.cfg.Workers,
		"Maximum instances running at once (0 = number of CPUs)")
	flags.StringVar(&f.cfg.Prefix, "prefix", f.cfg.Prefix,
		"Directory under the temp dir that holds run roots")
	flags.DurationVar(&f.cfg.Warmup, "warmup", f.cfg.Warmup,
		"Pause before the first sample of each engine")
	flags.BoolVar(&f.cfg.JSON, "json", f.cfg.JSON,
		"Output results as JSON instead of a table")
	flags.Var(&f.cfg.Bolt.InitialMmapSize, "bolt-mmap-size",
		"Initial bbolt mmap size, e.g. 256MiB")
	flags.Var(&f.cfg.LevelDB.WriteBuffer, "leveldb-write-buffer",
		"goleveldb memtable size, e.g. 4MiB")
	flags.Var(&f.cfg.LevelDB.BlockCache, "leveldb-block-cache",
		"goleveldb block cache size, e.g. 8MiB")
	flags.Var(&f.cfg.SQLite.CacheSize, "sqlite-cache-size",
		"SQLite page cache size, e.g. 2MiB")

	return cmd
}

// resolveConfig loads --config when given and lays every explicitly set flag
// over it.
func resolveConfig(cmd *cobra.Command, f runFlags) (config.Config, error) {
	if f.configPath == "" {
		return f.cfg, f.cfg.Validate()
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	overrides := map[string]func(){
		"engines":              func() { cfg.Engines = f.cfg.Engines },
		"items":                func() { cfg.Workload.Items = f.cfg.Workload.Items },
		"iterations":           func() { cfg.Workload.Iterations = f.cfg.Workload.Iterations },
		"instances":            func() { cfg.Workload.Instances = f.cfg.Workload.Instances },
		"samples":              func() { cfg.Samples = f.cfg.Samples },
		"workers":              func() { cfg.Workers = f.cfg.Workers },
		"prefix":               func() { cfg.Prefix = f.cfg.Prefix },
		"warmup":               func() { cfg.Warmup = f.cfg.Warmup },
		"json":                 func() { cfg.JSON = f.cfg.JSON },
		"bolt-mmap-size":       func() { cfg.Bolt.InitialMmapSize = f.cfg.Bolt.InitialMmapSize },
		"leveldb-write-buffer": func() { cfg.LevelDB.WriteBuffer = f.cfg.LevelDB.WriteBuffer },
		"leveldb-block-cache":  func() { cfg.LevelDB.BlockCache = f.cfg.LevelDB.BlockCache },
		"sqlite-cache-size":    func() { cfg.SQLite.CacheSize = f.cfg.SQLite.CacheSize },
	}

	for name, apply := range overrides {
		if flags.Changed(name) {
			apply()
		}
	}

	return cfg, cfg.Validate()
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	cfg config.Config,
) error {
	logger.InfoContext(ctx, "starting benchmark",
		slog.Int("items", cfg.Workload.Items),
		slog.Int("iterations", cfg.Workload.Iterations),
		slog.Int("instances", cfg.Workload.Instances),
		slog.Int("samples", cfg.Samples),
		slog.Any("engines", cfg.Engines),
	)

	// Step 1: Build every engine up front so a typo fails before any run.
	benches := make([]benchEntry, 0, len(cfg.Engines))

	for _, name := range cfg.Engines {
		bench, err := engine.New(name, cfg, logger)
		if err != nil {
			return err
		}

		benches = append(benches, benchEntry{name: name, bench: bench})
	}

	// Step 2: Sample each engine sequentially.
	entries := make([]report.Entry, 0, len(benches))

	for _, b := range benches {
		entry, err := sample(ctx, logger, cfg, b)
		if err != nil {
			return err
		}

		entries = append(entries, entry)
	}

	// Step 3: Generate report.
	if cfg.JSON {
		if err := report.GenerateJSON(out, entries); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	} else {
		if err := report.Generate(out, entries); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	logger.InfoContext(ctx, "benchmark complete")

	return nil
}
