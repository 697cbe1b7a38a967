package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weiihann/kvbench/guard"
	"github.com/weiihann/kvbench/workload"
)

var errInsert = errors.New("mock insert failed")

type mockDB struct {
	path   string
	closed atomic.Int32
	puts   int
}

func (m *mockDB) Close() error {
	m.closed.Add(1)

	return nil
}

// mockAdapter is an in-process engine that touches a marker file per
// instance and records every call.
type mockAdapter struct {
	// failAt makes RunWriteWorkload fail on that insert index for every path
	// accepted by failPath (all paths when nil).
	failAt   int
	failPath func(path string) bool
	// openBarrier, when > 0, blocks each OpenOrCreate until that many opens
	// are in flight.
	openBarrier int
	// panicOnFinalize makes Finalize panic.
	panicOnFinalize bool
	// workloadDelay slows each workload down.
	workloadDelay time.Duration
	// onWorkload runs at the start of every RunWriteWorkload.
	onWorkload func(path string)

	mu        sync.Mutex
	events    []string
	handles   []*mockDB
	opens     atomic.Int32
	workloads atomic.Int32
	finished  atomic.Int32
	arrived   chan struct{}
	once      sync.Once
}

func (m *mockAdapter) Name() string { return "mock" }

func (m *mockAdapter) record(event string) {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
}

func (m *mockAdapter) OpenOrCreate(
	_ context.Context,
	path string,
	create bool,
) (*guard.Guard[*mockDB], error) {
	m.opens.Add(1)
	m.record("open")

	if m.openBarrier > 0 {
		m.once.Do(func() { m.arrived = make(chan struct{}, m.openBarrier) })
		m.arrived <- struct{}{}

		deadline := time.After(5 * time.Second)
		for len(m.arrived) < m.openBarrier {
			select {
			case <-deadline:
				return nil, fmt.Errorf("only %d of %d opens arrived", len(m.arrived), m.openBarrier)
			case <-time.After(time.Millisecond):
			}
		}
	}

	_, statErr := os.Stat(path)

	switch {
	case create && statErr == nil:
		return nil, fmt.Errorf("create %s: %w", path, os.ErrExist)
	case !create && statErr != nil:
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	case create:
		if err := os.WriteFile(path, []byte("mock"), 0o600); err != nil {
			return nil, err
		}
	}

	db := &mockDB{path: path}

	m.mu.Lock()
	m.handles = append(m.handles, db)
	m.mu.Unlock()

	return guard.New(db, nil, nil), nil
}

func (m *mockAdapter) RunWriteWorkload(_ context.Context, db *mockDB, items int) error {
	m.workloads.Add(1)
	m.record("workload")

	if m.onWorkload != nil {
		m.onWorkload(db.path)
	}

	if m.workloadDelay > 0 {
		time.Sleep(m.workloadDelay)
	}

	fail := m.failAt > 0 && (m.failPath == nil || m.failPath(db.path))

	for i := 0; i < items; i++ {
		if fail && i == m.failAt-1 {
			return fmt.Errorf("insert %s: %w", workload.Key(i), errInsert)
		}
		db.puts++
	}

	return nil
}

func (m *mockAdapter) Finalize(_ context.Context, _ *mockDB) error {
	if m.panicOnFinalize {
		panic("finalize exploded")
	}

	m.finished.Add(1)
	m.record("finalize")

	return nil
}

func (m *mockAdapter) allClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range m.handles {
		if h.closed.Load() != 1 {
			return false
		}
	}

	return true
}
