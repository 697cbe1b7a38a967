// Package config holds the benchmark configuration: the workload, the
// engines to run and their tuning knobs. It can be loaded from a YAML file
// and is overridden by command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/weiihann/kvbench/workload"
	"gopkg.in/yaml.v3"
)

// ErrNoSamples is returned when fewer than one sample is requested.
var ErrNoSamples = errors.New("sample count must be at least 1")

// ErrNoEngines is returned when no engine is selected.
var ErrNoEngines = errors.New("at least one engine must be selected")

// Config is the full benchmark configuration.
type Config struct {
	// Engines lists the engines to benchmark, in report order.
	Engines []string `yaml:"engines"`

	// Workload is inlined so the file reads items/iterations/instances at
	// the top level.
	Workload workload.Spec `yaml:",inline"`

	// Samples is how many times each engine's full run is timed.
	Samples int `yaml:"samples"`

	// Workers caps concurrent instances per iteration; 0 means NumCPU.
	Workers int `yaml:"workers"`

	// Prefix is the directory under the temp dir holding run roots.
	Prefix string `yaml:"prefix"`

	// Warmup is a pause before the first sample of each engine.
	Warmup time.Duration `yaml:"warmup"`

	// JSON switches the report to JSON.
	JSON bool `yaml:"json"`

	Bolt    BoltConfig    `yaml:"bolt"`
	LevelDB LevelDBConfig `yaml:"leveldb"`
	SQLite  SQLiteConfig  `yaml:"sqlite"`
}

// BoltConfig tunes the bbolt engine.
type BoltConfig struct {
	InitialMmapSize Size          `yaml:"initial_mmap_size"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LevelDBConfig tunes the goleveldb engine.
type LevelDBConfig struct {
	WriteBuffer Size `yaml:"write_buffer"`
	BlockCache  Size `yaml:"block_cache"`
	Compression bool `yaml:"compression"`
}

// SQLiteConfig tunes the SQLite engine.
type SQLiteConfig struct {
	JournalMode string `yaml:"journal_mode"`
	CacheSize   Size   `yaml:"cache_size"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Engines:  []string{"bolt", "leveldb"},
		Workload: workload.DefaultSpec(),
		Samples:  10,
		Prefix:   "kvbench",
		Warmup:   100 * time.Millisecond,
		Bolt: BoltConfig{
			Timeout: time.Second,
		},
		LevelDB: LevelDBConfig{
			Compression: true,
		},
		SQLite: SQLiteConfig{
			JournalMode: "WAL",
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the workload and run parameters. Engine names are
// checked where engines are built.
func (c Config) Validate() error {
	if err := c.Workload.Validate(); err != nil {
		return err
	}

	if c.Samples < 1 {
		return fmt.Errorf("%w: %d", ErrNoSamples, c.Samples)
	}

	if len(c.Engines) == 0 {
		return ErrNoEngines
	}

	if c.Workers < 0 {
		return fmt.Errorf("worker count must not be negative: %d", c.Workers)
	}

	return nil
}

// Size is a byte count written either as a plain integer or as a human
// readable string such as "64MiB" or "4 MB".
type Size uint64

// Int returns the size as an int for engine options.
func (s Size) Int() int {
	return int(s)
}

// String implements pflag.Value.
func (s *Size) String() string {
	if *s == 0 {
		return "0"
	}

	return humanize.IBytes(uint64(*s))
}

// Set implements pflag.Value.
func (s *Size) Set(v string) error {
	n, err := parseSize(v)
	if err != nil {
		return err
	}

	*s = n

	return nil
}

// Type implements pflag.Value.
func (s *Size) Type() string {
	return "size"
}

// UnmarshalYAML accepts integers and size strings.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	n, err := parseSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*s = n

	return nil
}

// MarshalYAML writes the size in IEC units.
func (s Size) MarshalYAML() (any, error) {
	return s.String(), nil
}

func parseSize(v string) (Size, error) {
	if n, err := strconv.ParseUint(v, 10, 64); err == nil {
		return Size(n), nil
	}

	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid size string %q: %w", v, err)
	}

	return Size(n), nil
}
