package local

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"pracstore/internal/codec"
	"pracstore/internal/store"
)

// Single stores one document in a fixed file, <dir>/<name>.json.
type Single[T store.Document] struct {
	path string
	mu   sync.Mutex
}

// NewSingle creates dir if needed and returns a Single for name.
func NewSingle[T store.Document](dir, name string) (*Single[T], error) {
	if name == "" {
		return nil, errors.New("single store name is required")
	}
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &Single[T]{path: filepath.Join(dir, name+codec.Ext)}, nil
}

func (s *Single[T]) Get() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Single[T]) AddOrUpdate(doc T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := codec.Clone(doc)
	if err != nil {
		return err
	}
	existing, err := s.read()
	switch {
	case err == nil:
		store.StampUpdate(stored.Timestamps(), existing.Timestamps())
	case errors.Is(err, store.ErrNotFound):
		store.StampNew(stored.Timestamps())
	default:
		return err
	}

	data, err := codec.Serialize(stored)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("writing %q: %w", s.path, err)
	}
	return nil
}

func (s *Single[T]) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %q", store.ErrNotFound, s.path)
		}
		return fmt.Errorf("deleting %q: %w", s.path, err)
	}
	return nil
}

func (s *Single[T]) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.Mode().IsRegular()
}

func (s *Single[T]) read() (T, error) {
	var zero T
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, fmt.Errorf("%w: %q", store.ErrNotFound, s.path)
	}
	if err != nil {
		return zero, fmt.Errorf("reading %q: %w", s.path, err)
	}
	doc, err := codec.Deserialize[T](data)
	if err != nil {
		return zero, fmt.Errorf("%q: %w", s.path, err)
	}
	return doc, nil
}
