// Package leveldb adapts github.com/syndtr/goleveldb, an LSM-tree store kept
// in a directory, to the benchmark harness.
package leveldb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/weiihann/kvbench/guard"
	"github.com/weiihann/kvbench/workload"
)

// Name is the engine name used on the command line and in reports.
const Name = "leveldb"

// Options configures the adapter.
type Options struct {
	// WriteBuffer is the memtable size in bytes. Zero keeps goleveldb's
	// default.
	WriteBuffer int
	// BlockCacheCapacity is the block cache size in bytes. Zero keeps
	// goleveldb's default.
	BlockCacheCapacity int
	// Compression enables snappy compression of table blocks.
	Compression bool
	// RemoveOnRelease removes the database directory when its guard is
	// released.
	RemoveOnRelease bool
}

// DefaultOptions returns the options the harness runs with.
func DefaultOptions() Options {
	return Options{Compression: true}
}

// Adapter implements harness.Adapter for goleveldb.
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

func (a *Adapter) options(create bool) *opt.Options {
	o := &opt.Options{
		ErrorIfExist:       create,
		ErrorIfMissing:     !create,
		WriteBuffer:        a.opts.WriteBuffer,
		BlockCacheCapacity: a.opts.BlockCacheCapacity,
		Compression:        opt.NoCompression,
	}

	if a.opts.Compression {
		o.Compression = opt.SnappyCompression
	}

	return o
}

// OpenOrCreate opens the database directory at path. With create the
// directory must not hold a database yet; without it, it must.
func (a *Adapter) OpenOrCreate(
	_ context.Context,
	path string,
	create bool,
) (*guard.Guard[*leveldb.DB], error) {
	db, err := leveldb.OpenFile(path, a.options(create))
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}

	var cleanup func() error
	if a.opts.RemoveOnRelease {
		cleanup = guard.RemovePath(path)
	}

	return guard.New(db, cleanup, a.logger), nil
}

// RunWriteWorkload inserts items keys inside one transaction. goleveldb has
// no named partitions, so keys go to the default keyspace.
func (a *Adapter) RunWriteWorkload(_ context.Context, db *leveldb.DB, items int) error {
	tr, err := db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("open transaction: %w", err)
	}

	wo := &opt.WriteOptions{Sync: true}

	for i := 0; i < items; i++ {
		key := workload.Key(i)
		if err := tr.Put(key, key, wo); err != nil {
			tr.Discard()

			return fmt.Errorf("put %q: %w", key, err)
		}
	}

	if err := tr.Commit(); err != nil {
		tr.Discard()

		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Finalize compacts the whole key range.
func (a *Adapter) Finalize(_ context.Context, db *leveldb.DB) error {
	if err := db.CompactRange(util.Range{}); err != nil {
		return fmt.Errorf("compact: %w", err)
	}

	return nil
}
