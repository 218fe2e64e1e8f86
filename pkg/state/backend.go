/*
Package state defines the StateBackend capability of spec section 6: an
abstract, per-column key/value store that nodes use for window and
operator state, with epoch-aligned snapshot and restore. On-disk layout
is left to concrete backends (pkg/state/boltstate, pkg/state/memstate);
this package only pins the contract nodes code against.
*/
package state

// SnapshotHandle identifies a point-in-time snapshot taken at an epoch
// boundary. Its internal representation is backend-specific.
type SnapshotHandle struct {
	EpochID uint64
	Ref     string
}

// Column is a single named keyspace within a Backend, addressed by raw
// byte keys and values so any serde can be layered on top.
type Column interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, bool, error)
	Remove(key []byte) error
}

// Backend is the capability a node is given to persist operator and
// window state. It is shared across nodes in the same address space;
// concurrent access is serialized by the backend's own transactional
// discipline (spec section 5).
type Backend interface {
	// Open returns the named Column, creating it on first use.
	Open(name string) (Column, error)
	// Snapshot materializes the backend's current state under epochID
	// and returns a handle a later Restore can use.
	Snapshot(epochID uint64) (SnapshotHandle, error)
	// Restore replaces the backend's current state with a prior
	// snapshot's contents.
	Restore(handle SnapshotHandle) error
	// Close releases any underlying resources.
	Close() error
}
