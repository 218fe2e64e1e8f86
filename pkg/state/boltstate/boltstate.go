/*
Package boltstate is the durable state.Backend, adapted from the
bucket-per-column BoltDB store the teacher uses for cluster objects:
one bucket per Column, JSON-free raw byte values, and epoch snapshots
taken with bbolt's own hot-backup Tx.WriteTo instead of a bespoke format.
*/
package boltstate

import (
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/state"
)

// Backend is a bbolt-backed state.Backend. snapshotDir holds one file
// per epoch, named by epoch id, produced via bbolt's transactional
// hot copy.
type Backend struct {
	db         *bolt.DB
	dbPath     string
	snapshotDir string
}

// Open opens (creating if absent) a BoltDB file at dbPath and prepares
// snapshotDir for epoch snapshots.
func Open(dbPath, snapshotDir string) (*Backend, error) {
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "boltstate.Open", err)
	}
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.IOError, "boltstate.Open: snapshot dir", err)
	}
	return &Backend{db: db, dbPath: dbPath, snapshotDir: snapshotDir}, nil
}

type boltColumn struct {
	db     *bolt.DB
	bucket []byte
}

func (b *Backend) Open(name string) (state.Column, error) {
	bucket := []byte(name)
	err := b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "boltstate.Open: create bucket", err)
	}
	return &boltColumn{db: b.db, bucket: bucket}, nil
}

func (c *boltColumn) Put(key, value []byte) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Put(key, value)
	})
	if err != nil {
		return errs.Wrap(errs.IOError, "boltColumn.Put", err)
	}
	return nil
}

func (c *boltColumn) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(c.bucket).Get(key)
		if v != nil {
			out = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, errs.Wrap(errs.IOError, "boltColumn.Get", err)
	}
	return out, out != nil, nil
}

func (c *boltColumn) Remove(key []byte) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Delete(key)
	})
	if err != nil {
		return errs.Wrap(errs.IOError, "boltColumn.Remove", err)
	}
	return nil
}

// Snapshot writes a full hot-copy of the database to snapshotDir,
// named by epoch id, using bbolt's read transaction copy so writers
// are never blocked for long.
func (b *Backend) Snapshot(epochID uint64) (state.SnapshotHandle, error) {
	path := filepath.Join(b.snapshotDir, fmt.Sprintf("epoch-%d.db", epochID))
	f, err := os.Create(path)
	if err != nil {
		return state.SnapshotHandle{}, errs.Wrap(errs.IOError, "boltstate.Snapshot: create file", err)
	}
	defer f.Close()

	err = b.db.View(func(tx *bolt.Tx) error {
		_, err := tx.WriteTo(f)
		return err
	})
	if err != nil {
		return state.SnapshotHandle{}, errs.Wrap(errs.IOError, "boltstate.Snapshot: copy", err)
	}
	return state.SnapshotHandle{EpochID: epochID, Ref: path}, nil
}

// Restore replaces the live database with the snapshot file's
// contents. The caller must not hold any open Column handles across a
// Restore, since the underlying *bolt.DB is closed and reopened.
func (b *Backend) Restore(handle state.SnapshotHandle) error {
	if err := b.db.Close(); err != nil {
		return errs.Wrap(errs.IOError, "boltstate.Restore: close", err)
	}
	if err := copyFile(handle.Ref, b.dbPath); err != nil {
		return errs.Wrap(errs.IOError, "boltstate.Restore: copy snapshot", err)
	}
	db, err := bolt.Open(b.dbPath, 0o600, nil)
	if err != nil {
		return errs.Wrap(errs.IOError, "boltstate.Restore: reopen", err)
	}
	b.db = db
	return nil
}

func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return errs.Wrap(errs.IOError, "boltstate.Close", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, in, 0o600)
}
