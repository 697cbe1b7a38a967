// Package bolt adapts go.etcd.io/bbolt, a single-file B+tree store, to the
// benchmark harness.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/weiihann/kvbench/guard"
	"github.com/weiihann/kvbench/workload"
	bolt "go.etcd.io/bbolt"
)

// Name is the engine name used on the command line and in reports.
const Name = "bolt"

// Bucket is the bucket every workload writes into.
const Bucket = "my_data"

// Options configures the adapter.
type Options struct {
	// InitialMmapSize pre-sizes the memory map, avoiding remaps while the
	// workload grows the file. Zero keeps bbolt's default.
	InitialMmapSize int
	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration
	// RemoveOnRelease removes the database file when its guard is released.
	RemoveOnRelease bool
}

// DefaultOptions returns the options the harness runs with.
func DefaultOptions() Options {
	return Options{Timeout: time.Second}
}

// Adapter implements harness.Adapter for bbolt.
type Adapter struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Adapter.
func New(opts Options, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{opts: opts, logger: logger}
}

// Name implements harness.Adapter.
func (a *Adapter) Name() string {
	return Name
}

// OpenOrCreate opens the database file at path. bbolt itself always creates
// missing files, so create is enforced with a stat beforehand.
func (a *Adapter) OpenOrCreate(
	_ context.Context,
	path string,
	create bool,
) (*guard.Guard[*bolt.DB], error) {
	_, err := os.Stat(path)

	switch {
	case create && err == nil:
		return nil, fmt.Errorf("create %s: %w", path, fs.ErrExist)
	case !create && errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:         a.opts.Timeout,
		InitialMmapSize: a.opts.InitialMmapSize,
		FreelistType:    bolt.FreelistMapType,
	})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	var cleanup func() error
	if a.opts.RemoveOnRelease {
		cleanup = guard.RemovePath(path)
	}

	return guard.New(db, cleanup, a.logger), nil
}

// RunWriteWorkload inserts items keys into Bucket within a single read-write
// transaction. Commit fsyncs since the DB is never opened with NoSync.
func (a *Adapter) RunWriteWorkload(_ context.Context, db *bolt.DB, items int) error {
	tx, err := db.Begin(true)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	bucket, err := tx.CreateBucketIfNotExists([]byte(Bucket))
	if err != nil {
		return fmt.Errorf("create bucket %q: %w", Bucket, err)
	}

	for i := 0; i < items; i++ {
		// bbolt keeps references to key and value until commit, so each
		// pair needs its own slice.
		key := workload.Key(i)
		if err := bucket.Put(key, key); err != nil {
			return fmt.Errorf("put %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Finalize flushes the file to disk.
func (a *Adapter) Finalize(_ context.Context, db *bolt.DB) error {
	if err := db.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	return nil
}
