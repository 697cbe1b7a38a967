// Package engine maps engine names to configured benchmark orchestrators.
package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/weiihann/kvbench/config"
	boltengine "github.com/weiihann/kvbench/engine/bolt"
	leveldbengine "github.com/weiihann/kvbench/engine/leveldb"
	sqliteengine "github.com/weiihann/kvbench/engine/sqlite"
	"github.com/weiihann/kvbench/harness"
	bolt "go.etcd.io/bbolt"
)

// ErrUnknownEngine is returned for a name Known does not list.
var ErrUnknownEngine = errors.New("unknown engine")

// Known returns the supported engine names.
func Known() []string {
	return []string{boltengine.Name, leveldbengine.Name, sqliteengine.Name}
}

// Describe returns a one-line description of the named engine.
func Describe(name string) string {
	switch name {
	case boltengine.Name:
		return "go.etcd.io/bbolt B+tree file; fsync on commit, finalize = sync"
	case leveldbengine.Name:
		return "goleveldb LSM directory; synced transaction, finalize = full compaction"
	case sqliteengine.Name:
		return "SQLite WAL file, synchronous=FULL; finalize = wal_checkpoint(TRUNCATE)"
	default:
		return ""
	}
}

// New builds the orchestrator for name from cfg.
func New(name string, cfg config.Config, logger *slog.Logger) (harness.Bench, error) {
	opts := harness.Options{
		Prefix:  cfg.Prefix,
		Workers: cfg.Workers,
	}

	switch name {
	case boltengine.Name:
		adapter := boltengine.New(boltengine.Options{
			InitialMmapSize: cfg.Bolt.InitialMmapSize.Int(),
			Timeout:         cfg.Bolt.Timeout,
		}, logger)

		return harness.NewOrchestrator[*bolt.DB](adapter, cfg.Workload, opts, logger), nil

	case leveldbengine.Name:
		adapter := leveldbengine.New(leveldbengine.Options{
			WriteBuffer:        cfg.LevelDB.WriteBuffer.Int(),
			BlockCacheCapacity: cfg.LevelDB.BlockCache.Int(),
			Compression:        cfg.LevelDB.Compression,
		}, logger)

		return harness.NewOrchestrator[*leveldb.DB](adapter, cfg.Workload, opts, logger), nil

	case sqliteengine.Name:
		adapter := sqliteengine.New(sqliteengine.Options{
			JournalMode: cfg.SQLite.JournalMode,
			CacheSize:   cfg.SQLite.CacheSize.Int(),
		}, logger)

		return harness.NewOrchestrator[*sql.DB](adapter, cfg.Workload, opts, logger), nil

	default:
		return nil, fmt.Errorf("%w %q; valid values are: %s",
			ErrUnknownEngine, name, strings.Join(Known(), ", "))
	}
}
