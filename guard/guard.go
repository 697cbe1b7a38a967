// Package guard provides an ownership wrapper around a live store handle that
// closes the handle and then runs an optional cleanup exactly once.
package guard

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Guard is the exclusive owner of one handle. Release closes the handle first
// and then invokes the cleanup, if any. Both happen at most once no matter how
// many times, or from how many goroutines, Release is called.
type Guard[T io.Closer] struct {
	handle  T
	cleanup func() error
	logger  *slog.Logger

	once     sync.Once
	released atomic.Bool
	closeErr error
}

// New wraps handle. A nil cleanup means nothing runs after the handle is
// closed; a nil logger falls back to slog.Default().
func New[T io.Closer](handle T, cleanup func() error, logger *slog.Logger) *Guard[T] {
	if logger == nil {
		logger = slog.Default()
	}

	return &Guard[T]{
		handle:  handle,
		cleanup: cleanup,
		logger:  logger,
	}
}

// Handle returns the wrapped handle. Callers must not keep it past Release.
func (g *Guard[T]) Handle() T {
	return g.handle
}

// Released reports whether Release has been called.
func (g *Guard[T]) Released() bool {
	return g.released.Load()
}

// Release closes the handle, then runs the cleanup. The cleanup runs even if
// closing fails. Cleanup errors are logged and swallowed; the close error is
// returned, on this and every later call.
func (g *Guard[T]) Release() error {
	g.once.Do(func() {
		g.released.Store(true)

		if err := g.handle.Close(); err != nil {
			g.closeErr = fmt.Errorf("close handle: %w", err)
		}

		var zero T
		g.handle = zero

		if g.cleanup == nil {
			return
		}

		if err := g.cleanup(); err != nil {
			g.logger.Warn("guard cleanup failed",
				slog.String("error", err.Error()),
			)
		}
	})

	return g.closeErr
}

// RemovePath returns a cleanup that removes path, whether it is a directory
// tree or a single file. A path that is already gone is not an error.
func RemovePath(path string) func() error {
	return func() error {
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("remove dir %s: %w", path, err)
			}

			return nil
		}

		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove file %s: %w", path, err)
		}

		return nil
	}
}
