package cache

import (
	"errors"
	"fmt"
	"sync"

	"pracstore/internal/codec"
	"pracstore/internal/store"
)

// Single caches a store.Single.
type Single[T store.Document] struct {
	name    string
	st      store.Single[T]
	mu      sync.RWMutex
	doc     T
	present bool
	stale   bool
}

// LoadSingle performs the initial load. When defaults is non-nil and the
// store holds no document, defaults() is persisted first.
func LoadSingle[T store.Document](name string, st store.Single[T], defaults func() T) (*Single[T], error) {
	s := &Single[T]{name: name, st: st}
	if defaults != nil && !st.Exists() {
		if err := st.AddOrUpdate(defaults()); err != nil {
			return nil, fmt.Errorf("creating default %s: %w", name, err)
		}
		clog.Info("created default document", "cache", name)
	}
	if err := s.reload(); err != nil {
		return nil, fmt.Errorf("loading %s cache: %w", name, err)
	}
	return s, nil
}

// Get returns a copy of the cached document.
func (s *Single[T]) Get() (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.present {
		var zero T
		return zero, fmt.Errorf("%w: %s document", store.ErrNotFound, s.name)
	}
	return clone(s.name, s.doc), nil
}

// Set persists doc with AddOrUpdate and reloads.
func (s *Single[T]) Set(doc T) error {
	return s.mutate(func() error {
		return s.st.AddOrUpdate(doc)
	})
}

// Modify applies fn to a copy of the current document and persists the
// result, all under the write lock.
func (s *Single[T]) Modify(fn func(doc T) error) error {
	return s.mutate(func() error {
		if !s.present {
			return fmt.Errorf("%w: %s document", store.ErrNotFound, s.name)
		}
		doc, err := codec.Clone(s.doc)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		return s.st.AddOrUpdate(doc)
	})
}

// Delete removes the document and reloads.
func (s *Single[T]) Delete() error {
	return s.mutate(s.st.Delete)
}

// Stale reports whether the last reload after a successful write failed.
func (s *Single[T]) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

func (s *Single[T]) mutate(write func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale {
		if err := s.reload(); err != nil {
			return fmt.Errorf("%s cache is stale: %w", s.name, err)
		}
	}
	if err := write(); err != nil {
		return err
	}
	if err := s.reload(); err != nil {
		clog.Error("reload after write failed", "cache", s.name, "err", err)
		return fmt.Errorf("%s written but reload failed: %w", s.name, err)
	}
	return nil
}

// reload requires the write lock.
func (s *Single[T]) reload() error {
	doc, err := s.st.Get()
	var zero T
	switch {
	case err == nil:
		s.doc, s.present = doc, true
	case errors.Is(err, store.ErrNotFound):
		s.doc, s.present = zero, false
	default:
		s.stale = true
		return err
	}
	s.stale = false
	clog.Debug("cache reloaded", "cache", s.name, "present", s.present)
	return nil
}
