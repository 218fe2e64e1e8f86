/*
Package memstate is an in-memory state.Backend, used by tests and by
pipelines that accept losing state on restart. Columns are plain maps
guarded by a single mutex; snapshotting deep-copies every column.
*/
package memstate

import (
	"sync"

	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/state"
)

type column struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newColumn() *column { return &column{data: make(map[string][]byte)} }

func (c *column) Put(key, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[string(key)] = append([]byte{}, value...)
	return nil
}

func (c *column) Get(key []byte) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (c *column) Remove(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, string(key))
	return nil
}

func (c *column) clone() *column {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := newColumn()
	for k, v := range c.data {
		cp.data[k] = append([]byte{}, v...)
	}
	return cp
}

// Backend is a memstate.Backend: every Column lives entirely in
// process memory.
type Backend struct {
	mu        sync.Mutex
	columns   map[string]*column
	snapshots map[uint64]map[string]*column
}

// New returns an empty in-memory Backend.
func New() *Backend {
	return &Backend{
		columns:   make(map[string]*column),
		snapshots: make(map[uint64]map[string]*column),
	}
}

func (b *Backend) Open(name string) (state.Column, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.columns[name]
	if !ok {
		c = newColumn()
		b.columns[name] = c
	}
	return c, nil
}

func (b *Backend) Snapshot(epochID uint64) (state.SnapshotHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	frozen := make(map[string]*column, len(b.columns))
	for name, c := range b.columns {
		frozen[name] = c.clone()
	}
	b.snapshots[epochID] = frozen
	return state.SnapshotHandle{EpochID: epochID, Ref: "memstate"}, nil
}

func (b *Backend) Restore(handle state.SnapshotHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	frozen, ok := b.snapshots[handle.EpochID]
	if !ok {
		return errs.New(errs.IOError, "memstate.Restore: unknown epoch snapshot")
	}
	b.columns = make(map[string]*column, len(frozen))
	for name, c := range frozen {
		b.columns[name] = c.clone()
	}
	return nil
}

func (b *Backend) Close() error { return nil }
