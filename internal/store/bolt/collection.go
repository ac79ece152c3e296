package bolt

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"pracstore/internal/codec"
	"pracstore/internal/store"
)

var errMissingBucket = errors.New("bucket missing")

// Collection is a bucket-backed store.Collection. bbolt serializes
// writers itself, so no extra mutex is needed.
type Collection[T store.Record] struct {
	db     *DB
	name   string
	bucket []byte
}

// NewCollection creates the bucket for name if missing.
func NewCollection[T store.Record](db *DB, name string) (*Collection[T], error) {
	if name == "" {
		return nil, errors.New("collection name is required")
	}
	c := &Collection[T]{db: db, name: name, bucket: []byte(name)}
	if err := db.ensureBucket(c.bucket); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection[T]) GetAll() ([]T, error) {
	type row struct {
		id  uint64
		doc []byte
	}
	var rows []row
	err := c.db.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return errMissingBucket
		}
		return b.ForEach(func(k, v []byte) error {
			id, ok := keyID(k)
			if !ok {
				return fmt.Errorf("%w: malformed key %x in bucket %q", store.ErrInternal, k, c.name)
			}
			rows = append(rows, row{id: id, doc: cloneBytes(v)})
			return nil
		})
	})
	if err != nil {
		return nil, c.wrap(err)
	}

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		rec, err := c.decode(r.id, r.doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Collection[T]) Get(id uint64) (T, error) {
	var zero T
	doc, err := c.raw(id)
	if err != nil {
		return zero, err
	}
	return c.decode(id, doc)
}

func (c *Collection[T]) Add(rec T) (T, error) {
	var zero T
	stored, err := codec.Clone(rec)
	if err != nil {
		return zero, err
	}
	err = c.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return errMissingBucket
		}
		id, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating id: %w", err)
		}
		key := idKey(id)
		if b.Get(key) != nil {
			return fmt.Errorf("%w: %s record %d already exists", store.ErrConflict, c.name, id)
		}
		stored.Metadata().ID = id
		store.StampNew(stored.Timestamps())
		data, err := codec.Serialize(stored)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
	if err != nil {
		return zero, c.wrap(err)
	}
	return stored, nil
}

func (c *Collection[T]) Update(rec T) error {
	stored, err := codec.Clone(rec)
	if err != nil {
		return err
	}
	id := stored.Metadata().ID
	err = c.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return errMissingBucket
		}
		key := idKey(id)
		current := b.Get(key)
		if current == nil {
			return fmt.Errorf("%w: %s record %d", store.ErrNotFound, c.name, id)
		}
		existing, err := c.decode(id, current)
		if err != nil {
			return err
		}
		store.StampUpdate(stored.Timestamps(), existing.Timestamps())
		data, err := codec.Serialize(stored)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
	return c.wrap(err)
}

func (c *Collection[T]) Delete(id uint64) error {
	err := c.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return errMissingBucket
		}
		key := idKey(id)
		if b.Get(key) == nil {
			return fmt.Errorf("%w: %s record %d", store.ErrNotFound, c.name, id)
		}
		return b.Delete(key)
	})
	return c.wrap(err)
}

func (c *Collection[T]) Exist(id uint64) bool {
	doc, err := c.raw(id)
	return err == nil && doc != nil
}

func (c *Collection[T]) raw(id uint64) ([]byte, error) {
	var doc []byte
	err := c.db.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return errMissingBucket
		}
		doc = cloneBytes(b.Get(idKey(id)))
		if doc == nil {
			return fmt.Errorf("%w: %s record %d", store.ErrNotFound, c.name, id)
		}
		return nil
	})
	return doc, c.wrap(err)
}

func (c *Collection[T]) decode(id uint64, doc []byte) (T, error) {
	var zero T
	rec, err := codec.Deserialize[T](doc)
	if err != nil {
		return zero, fmt.Errorf("%s record %d: %w", c.name, id, err)
	}
	if got := rec.Metadata().ID; got != id {
		blog.Warn("key does not match document id", "bucket", c.name, "key_id", id, "json_id", got)
		return zero, fmt.Errorf("%w: %s key %d does not match document id %d", store.ErrInternal, c.name, id, got)
	}
	return rec, nil
}

func (c *Collection[T]) wrap(err error) error {
	if errors.Is(err, errMissingBucket) {
		return fmt.Errorf("%w: bucket %q was removed", store.ErrInternal, c.name)
	}
	return err
}
