// Package cache keeps a full in-memory copy of a store and is the only
// thing feature code reads from.
//
// Reads are served from the snapshot under a read lock. Writes take the
// write lock, go to the store, and on success replace the snapshot with a
// fresh full load before the lock is released. A failed write leaves the
// snapshot untouched. The snapshot is never patched in place.
package cache

import (
	"pracstore/internal/codec"
	"pracstore/internal/logging"
)

var clog = logging.For("cache")

// Guard inspects the current snapshot under the write lock and vetoes a
// mutation by returning an error. Guards must not retain the slice.
type Guard[T any] func(snapshot []T) error

// clone hands out copies so callers cannot mutate the snapshot.
func clone[T any](name string, v T) T {
	out, err := codec.Clone(v)
	if err != nil {
		clog.Error("cloning cached value", "cache", name, "err", err)
		return v
	}
	return out
}
