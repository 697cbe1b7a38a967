package engine

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/kvbench/config"
	"github.com/weiihann/kvbench/workload"
)

func TestKnownEnginesBuild(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	cfg := config.Default()
	cfg.Workload = workload.Spec{Items: 50, Iterations: 2, Instances: 2}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	for _, name := range Known() {
		t.Run(name, func(t *testing.T) {
			bench, err := New(name, cfg, logger)
			require.NoError(t, err)
			assert.Equal(t, name, bench.Name())
			assert.NotEmpty(t, Describe(name))

			result, err := bench.Run(context.Background())
			require.NoError(t, err)
			assert.Len(t, result.Durations, 4)
			assert.Equal(t, 50, result.Items)
		})
	}
}

func TestUnknownEngine(t *testing.T) {
	_, err := New("rocksdb", config.Default(), slog.Default())
	require.ErrorIs(t, err, ErrUnknownEngine)
	assert.Contains(t, err.Error(), "bolt, leveldb, sqlite")
	assert.Empty(t, Describe("rocksdb"))
}
