// Package sqlite adapts SQLite, through github.com/mattn/go-sqlite3, to the
// benchmark harness. The store is one table of blob keys and values.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/weiihann/kvbench/guard"
	"github.com/weiihann/kvbench/workload"
)

// Name is the engine name used on the command line and in reports.
const Name = "sqlite"

// Table is the table every workload writes into.
const Table = "my_data"

const (
	createTableSQL = "CREATE TABLE IF NOT EXISTS " + Table +
		" (key BLOB PRIMARY KEY, value BLOB NOT NULL) WITHOUT ROWID"
	insertSQL = "INSERT OR REPLACE INTO " + Table + " (key, value) VALUES (?, ?)"
)

// Options configures the adapter.
type Options struct {
	// JournalMode is passed to PRAGMA journal_mode. Defaults to WAL.
	JournalMode string
	// CacheSize is the page cache size in bytes. Zero keeps SQLite's default.
	CacheSize int
	// RemoveOnRelease removes the database file when its guard is released.
	RemoveOnRelease bool
}

// DefaultOptions returns the options the harness runs with.
func DefaultOptions() Options {
	return Options{JournalMode: "WAL"}
}

// Adapter implements harness.Adapter for SQLite.
type Adapter struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Adapter.
func New(opts Options, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.JournalMode == "" {
		opts.JournalMode = "WAL"
	}

	return &Adapter{opts: opts, logger: logger}
}

// Name implements harness.Adapter.
func (a *Adapter) Name() string {
	return Name
}

// dsn builds a URI filename so SQLite itself enforces the open mode.
func (a *Adapter) dsn(path string, create bool) string {
	q := url.Values{}
	q.Set("_journal_mode", a.opts.JournalMode)
	q.Set("_synchronous", "FULL")

	if create {
		q.Set("mode", "rwc")
	} else {
		q.Set("mode", "rw")
	}

	return "file:" + path + "?" + q.Encode()
}

// OpenOrCreate opens the database file at path. SQLite creates missing files
// on demand, so create additionally requires that nothing exists at path.
func (a *Adapter) OpenOrCreate(
	ctx context.Context,
	path string,
	create bool,
) (*guard.Guard[*sql.DB], error) {
	if create {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("create %s: %w", path, fs.ErrExist)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite3", a.dsn(path, create))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// One connection keeps the whole workload on a single SQLite handle.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if a.opts.CacheSize > 0 {
		// A negative cache_size is a size in KiB rather than pages. Round up
		// so small sizes never turn into 0, which disables the cache.
		pragma := "PRAGMA cache_size = " + strconv.Itoa(-cacheKiB(a.opts.CacheSize))
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("set cache size: %w", err)
		}
	}

	var cleanup func() error
	if a.opts.RemoveOnRelease {
		cleanup = guard.RemovePath(path)
	}

	return guard.New(db, cleanup, a.logger), nil
}

func cacheKiB(bytes int) int {
	return (bytes + 1023) / 1024
}

// RunWriteWorkload inserts items rows in one transaction through a single
// prepared statement. The table is created inside the same transaction.
func (a *Adapter) RunWriteWorkload(ctx context.Context, db *sql.DB, items int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", Table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < items; i++ {
		key := workload.Key(i)
		if _, err := stmt.ExecContext(ctx, key, key); err != nil {
			return fmt.Errorf("insert %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Finalize folds the write-ahead log back into the main database file.
func (a *Adapter) Finalize(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	return nil
}
