package guard

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	events *[]string
	closed int
	err    error
}

func (f *fakeHandle) Close() error {
	f.closed++
	*f.events = append(*f.events, "close")

	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestReleaseClosesThenCleans(t *testing.T) {
	var events []string
	h := &fakeHandle{events: &events}

	g := New(h, func() error {
		events = append(events, "cleanup")
		return nil
	}, discardLogger())

	require.Same(t, h, g.Handle())
	require.False(t, g.Released())
	require.NoError(t, g.Release())

	assert.Equal(t, []string{"close", "cleanup"}, events)
	assert.True(t, g.Released())
	assert.Nil(t, g.Handle())
}

func TestReleaseIsIdempotent(t *testing.T) {
	var (
		events []string
		calls  int
	)
	h := &fakeHandle{events: &events}

	g := New(h, func() error {
		calls++
		return nil
	}, discardLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, g.Release())
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, h.closed)
}

func TestReleaseWithoutCleanup(t *testing.T) {
	var events []string
	h := &fakeHandle{events: &events}

	g := New(h, nil, nil)
	require.NoError(t, g.Release())

	assert.Equal(t, []string{"close"}, events)
}

func TestCloseErrorStillRunsCleanup(t *testing.T) {
	var (
		events []string
		calls  int
	)
	closeErr := errors.New("disk on fire")
	h := &fakeHandle{events: &events, err: closeErr}

	g := New(h, func() error {
		calls++
		return nil
	}, discardLogger())

	err := g.Release()
	require.ErrorIs(t, err, closeErr)
	assert.Equal(t, 1, calls)

	// Later calls report the same error without closing again.
	require.ErrorIs(t, g.Release(), closeErr)
	assert.Equal(t, 1, h.closed)
}

func TestCleanupErrorIsLogged(t *testing.T) {
	var (
		events []string
		logs   bytes.Buffer
	)
	h := &fakeHandle{events: &events}
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	g := New(h, func() error {
		return errors.New("permission denied")
	}, logger)

	require.NoError(t, g.Release())
	assert.Contains(t, logs.String(), "guard cleanup failed")
	assert.Contains(t, logs.String(), "permission denied")
}

// A guarded operation that fails half way must still release through the
// owner's deferred Release.
func TestCleanupRunsAfterGuardedError(t *testing.T) {
	var (
		events []string
		calls  int
	)

	op := func() error {
		g := New(&fakeHandle{events: &events}, func() error {
			calls++
			return nil
		}, discardLogger())
		defer g.Release() //nolint:errcheck

		return errors.New("insert failed")
	}

	require.Error(t, op())
	assert.Equal(t, 1, calls)
}

func TestConcurrentRelease(t *testing.T) {
	var (
		events []string
		calls  atomic.Int64
	)
	h := &fakeHandle{events: &events}

	g := New(h, func() error {
		calls.Add(1)
		return nil
	}, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Release()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, h.closed)
}

func TestProperty_CleanupAtMostOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("cleanup runs exactly once for any number of releases", prop.ForAll(
		func(releases int, failClose bool) bool {
			var (
				events []string
				calls  int
			)
			h := &fakeHandle{events: &events}
			if failClose {
				h.err = errors.New("close failed")
			}

			g := New(h, func() error {
				calls++
				return nil
			}, discardLogger())

			for i := 0; i < releases; i++ {
				_ = g.Release()
			}

			return calls == 1 && h.closed == 1
		},
		gen.IntRange(1, 50),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestRemovePath(t *testing.T) {
	t.Run("directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "db_0.db")
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "MANIFEST"), []byte("x"), 0o600))

		require.NoError(t, RemovePath(dir)())
		assert.NoDirExists(t, dir)
	})

	t.Run("file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "db_0.db")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		require.NoError(t, RemovePath(file)())
		assert.NoFileExists(t, file)
	})

	t.Run("missing", func(t *testing.T) {
		require.NoError(t, RemovePath(filepath.Join(t.TempDir(), "nope"))())
	})
}
