package bolt

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"pracstore/internal/codec"
	"pracstore/internal/store"
)

var docKey = []byte("document")

// Single keeps one document under a fixed key in its own bucket.
type Single[T store.Document] struct {
	db     *DB
	name   string
	bucket []byte
}

// NewSingle creates the bucket for name if missing.
func NewSingle[T store.Document](db *DB, name string) (*Single[T], error) {
	if name == "" {
		return nil, errors.New("single store name is required")
	}
	s := &Single[T]{db: db, name: name, bucket: []byte(name)}
	if err := db.ensureBucket(s.bucket); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Single[T]) Get() (T, error) {
	var (
		zero T
		doc  []byte
	)
	err := s.db.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errMissingBucket
		}
		doc = cloneBytes(b.Get(docKey))
		return nil
	})
	if err != nil {
		return zero, s.wrap(err)
	}
	if doc == nil {
		return zero, fmt.Errorf("%w: %s document", store.ErrNotFound, s.name)
	}
	out, err := codec.Deserialize[T](doc)
	if err != nil {
		return zero, fmt.Errorf("%s document: %w", s.name, err)
	}
	return out, nil
}

// AddOrUpdate runs read, stamp and write in one bbolt transaction.
func (s *Single[T]) AddOrUpdate(doc T) error {
	stored, err := codec.Clone(doc)
	if err != nil {
		return err
	}
	err = s.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errMissingBucket
		}
		if current := b.Get(docKey); current != nil {
			existing, err := codec.Deserialize[T](current)
			if err != nil {
				return fmt.Errorf("%s document: %w", s.name, err)
			}
			store.StampUpdate(stored.Timestamps(), existing.Timestamps())
		} else {
			store.StampNew(stored.Timestamps())
		}
		data, err := codec.Serialize(stored)
		if err != nil {
			return err
		}
		return b.Put(docKey, data)
	})
	return s.wrap(err)
}

func (s *Single[T]) Delete() error {
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errMissingBucket
		}
		if b.Get(docKey) == nil {
			return fmt.Errorf("%w: %s document", store.ErrNotFound, s.name)
		}
		return b.Delete(docKey)
	})
	return s.wrap(err)
}

func (s *Single[T]) Exists() bool {
	found := false
	_ = s.db.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(s.bucket); b != nil {
			found = b.Get(docKey) != nil
		}
		return nil
	})
	return found
}

func (s *Single[T]) wrap(err error) error {
	if errors.Is(err, errMissingBucket) {
		return fmt.Errorf("%w: bucket %q was removed", store.ErrInternal, s.name)
	}
	return err
}
