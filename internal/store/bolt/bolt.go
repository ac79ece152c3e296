// Package bolt implements the store contracts on an embedded bbolt file.
// Each collection is a bucket keyed by big-endian id; ids come from the
// bucket sequence, so they are monotonic and never reused. Each singleton
// is a bucket holding one fixed key.
package bolt

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"pracstore/internal/logging"
)

var blog = logging.For("store-bolt")

// DB is an open bbolt file shared by the stores of one backend.
type DB struct {
	db *bolt.DB
}

// Open creates or opens a bbolt database at the given path.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the file lock.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) ensureBucket(name []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("creating bucket %q: %w", name, err)
		}
		return nil
	})
}

func idKey(id uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], id)
	return k[:]
}

func keyID(k []byte) (uint64, bool) {
	if len(k) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(k), true
}

// cloneBytes copies a value out of a transaction; bbolt memory is only
// valid while the transaction is open.
func cloneBytes(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
