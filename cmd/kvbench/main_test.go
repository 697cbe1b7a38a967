package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/kvbench/report"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	root := newRootCmd(logger, new(slog.LevelVar), &out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestEnginesCommand(t *testing.T) {
	out, err := runCLI(t, "engines")
	require.NoError(t, err)

	for _, name := range []string{"bolt", "leveldb", "sqlite"} {
		assert.Contains(t, out, name)
	}
}

func TestRunTable(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	out, err := runCLI(t, "run",
		"--engines", "bolt,leveldb",
		"--items", "200",
		"--iterations", "2",
		"--instances", "2",
		"--samples", "2",
		"--warmup", "0s",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "## Benchmark Results")
	assert.Contains(t, out, "| bolt | 2 |")
	assert.Contains(t, out, "| leveldb | 2 |")

	// Every run removed its root.
	entries, err := os.ReadDir(filepath.Join(tmp, "kvbench"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunJSONWithConfigFile(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	cfgPath := filepath.Join(t.TempDir(), "kvbench.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
engines: [sqlite]
items: 100
iterations: 1
instances: 3
samples: 1
warmup: 0s
sqlite:
  cache_size: 1MiB
`), 0o600))

	out, err := runCLI(t, "run", "--config", cfgPath, "--json", "--items", "50")
	require.NoError(t, err)

	var entries []report.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "sqlite", entries[0].Engine)
	require.Len(t, entries[0].Results, 1)
	assert.Equal(t, 50, entries[0].Results[0].Items, "flag must override file")
	assert.Len(t, entries[0].Results[0].Durations, 3)
}

func TestRunUnknownEngine(t *testing.T) {
	_, err := runCLI(t, "run", "--engines", "rocksdb", "--samples", "1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown engine"))
}

func TestRunInvalidWorkload(t *testing.T) {
	_, err := runCLI(t, "run", "--engines", "bolt", "--iterations", "0")
	require.Error(t, err)
}
