package cache

import (
	"fmt"
	"sync"

	"pracstore/internal/store"
)

// Collection caches a store.Collection.
type Collection[T store.Record] struct {
	name  string
	st    store.Collection[T]
	mu    sync.RWMutex
	items []T
	stale bool
}

// LoadCollection performs the initial full load. The returned cache is
// ready for reads.
func LoadCollection[T store.Record](name string, st store.Collection[T]) (*Collection[T], error) {
	c := &Collection[T]{name: name, st: st}
	if err := c.reload(); err != nil {
		return nil, fmt.Errorf("loading %s cache: %w", name, err)
	}
	clog.Info("cache loaded", "cache", name, "records", len(c.items))
	return c, nil
}

// All returns copies of every cached record.
func (c *Collection[T]) All() []T {
	return c.Where(func(T) bool { return true })
}

// Where returns copies of the cached records matching pred.
func (c *Collection[T]) Where(pred func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []T
	for _, it := range c.items {
		if pred(it) {
			out = append(out, clone(c.name, it))
		}
	}
	return out
}

// First returns a copy of the first cached record matching pred.
func (c *Collection[T]) First(pred func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if pred(it) {
			return clone(c.name, it), true
		}
	}
	var zero T
	return zero, false
}

// Get returns a copy of the cached record with id.
func (c *Collection[T]) Get(id uint64) (T, error) {
	rec, ok := c.First(func(r T) bool { return r.Metadata().ID == id })
	if !ok {
		return rec, fmt.Errorf("%w: %s record %d", store.ErrNotFound, c.name, id)
	}
	return rec, nil
}

// Len returns the number of cached records.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stale reports whether the last reload after a successful write failed,
// so the snapshot may lag the store.
func (c *Collection[T]) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// Add persists rec, reloads, and returns the stored record.
func (c *Collection[T]) Add(rec T, guards ...Guard[T]) (T, error) {
	var added T
	err := c.mutate(guards, func() error {
		var err error
		added, err = c.st.Add(rec)
		return err
	})
	return added, err
}

// Update persists rec and reloads.
func (c *Collection[T]) Update(rec T, guards ...Guard[T]) error {
	return c.mutate(guards, func() error {
		return c.st.Update(rec)
	})
}

// Delete removes the record with id and reloads.
func (c *Collection[T]) Delete(id uint64, guards ...Guard[T]) error {
	return c.mutate(guards, func() error {
		return c.st.Delete(id)
	})
}

// DeleteFirst removes the first record matching pred, looked up under the
// same lock as the delete. It returns the removed record.
func (c *Collection[T]) DeleteFirst(pred func(T) bool) (T, error) {
	var victim T
	err := c.mutate(nil, func() error {
		for _, it := range c.items {
			if pred(it) {
				victim = clone(c.name, it)
				return c.st.Delete(it.Metadata().ID)
			}
		}
		return fmt.Errorf("%w: no matching %s record", store.ErrNotFound, c.name)
	})
	return victim, err
}

func (c *Collection[T]) mutate(guards []Guard[T], write func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale {
		if err := c.reload(); err != nil {
			return fmt.Errorf("%s cache is stale: %w", c.name, err)
		}
	}
	for _, g := range guards {
		if err := g(c.items); err != nil {
			return err
		}
	}
	if err := write(); err != nil {
		return err
	}
	if err := c.reload(); err != nil {
		clog.Error("reload after write failed", "cache", c.name, "err", err)
		return fmt.Errorf("%s written but reload failed: %w", c.name, err)
	}
	return nil
}

// reload requires the write lock.
func (c *Collection[T]) reload() error {
	items, err := c.st.GetAll()
	if err != nil {
		c.stale = true
		return err
	}
	c.items = items
	c.stale = false
	clog.Debug("cache reloaded", "cache", c.name, "records", len(items))
	return nil
}
