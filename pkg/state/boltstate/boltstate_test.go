package boltstate_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/arcflow/pkg/state/boltstate"
)

func TestPutGetRemove(t *testing.T) {
	dir := t.TempDir()
	b, err := boltstate.Open(filepath.Join(dir, "state.db"), filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	defer b.Close()

	col, err := b.Open("window-counts")
	require.NoError(t, err)

	require.NoError(t, col.Put([]byte("k1"), []byte("v1")))
	v, ok, err := col.Get([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, col.Remove([]byte("k1")))
	_, ok, err = col.Get([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := boltstate.Open(filepath.Join(dir, "state.db"), filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	defer b.Close()

	col, err := b.Open("c")
	require.NoError(t, err)
	require.NoError(t, col.Put([]byte("k"), []byte("v1")))

	handle, err := b.Snapshot(1)
	require.NoError(t, err)

	require.NoError(t, col.Put([]byte("k"), []byte("v2")))

	require.NoError(t, b.Restore(handle))
	col2, err := b.Open("c")
	require.NoError(t, err)
	v, _, err := col2.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)
}
