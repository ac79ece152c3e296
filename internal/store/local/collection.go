package local

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"pracstore/internal/codec"
	"pracstore/internal/store"
)

const (
	idFileName  = "id"
	dataDirName = "data"
)

// Collection is a file-per-record store.Collection.
// Mutations are serialized by mu; reads are not locked.
type Collection[T store.Record] struct {
	idPath  string
	dataDir string
	mu      sync.Mutex
}

// NewCollection prepares dir (creating it, the data directory and a zero
// id counter as needed) and returns a Collection rooted there.
func NewCollection[T store.Record](dir string) (*Collection[T], error) {
	c := &Collection[T]{
		idPath:  filepath.Join(dir, idFileName),
		dataDir: filepath.Join(dir, dataDirName),
	}
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	if _, err := os.Stat(c.idPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(c.idPath, []byte("0"), filePerm); err != nil {
			return nil, fmt.Errorf("initializing id file %q: %w", c.idPath, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking id file %q: %w", c.idPath, err)
	}
	if err := ensureDir(c.dataDir); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection[T]) GetAll() ([]T, error) {
	entries, err := os.ReadDir(c.dataDir)
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", c.dataDir, err)
	}
	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseDataFileName(e.Name())
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		rec, err := c.read(id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Collection[T]) Get(id uint64) (T, error) {
	return c.read(id)
}

func (c *Collection[T]) Add(rec T) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.idPath)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, fmt.Errorf("%w: id file %q", store.ErrNotFound, c.idPath)
	}
	if err != nil {
		return zero, fmt.Errorf("reading id file %q: %w", c.idPath, err)
	}
	current, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return zero, fmt.Errorf("%w: parsing current id %q", store.ErrInternal, raw)
	}
	next := current + 1

	stored, err := codec.Clone(rec)
	if err != nil {
		return zero, err
	}
	stored.Metadata().ID = next
	store.StampNew(stored.Timestamps())
	data, err := codec.Serialize(stored)
	if err != nil {
		return zero, err
	}

	path := c.dataPath(next)
	if err := writeExclusive(path, data); err != nil {
		if errors.Is(err, fs.ErrExist) {
			llog.Error("data file already exists for next id", "path", path, "id", next)
			return zero, fmt.Errorf("%w: data file %q already exists", store.ErrConflict, path)
		}
		return zero, fmt.Errorf("writing %q: %w", path, err)
	}

	// The counter only advances once the record is on disk. A crash in
	// between leaves an orphan file that makes the next Add fail loudly.
	if err := writeAtomic(c.idPath, []byte(strconv.FormatUint(next, 10))); err != nil {
		return zero, fmt.Errorf("advancing id counter: %w", err)
	}
	return stored, nil
}

func (c *Collection[T]) Update(rec T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, err := codec.Clone(rec)
	if err != nil {
		return err
	}
	id := stored.Metadata().ID
	existing, err := c.read(id)
	if err != nil {
		return err
	}
	store.StampUpdate(stored.Timestamps(), existing.Timestamps())
	data, err := codec.Serialize(stored)
	if err != nil {
		return err
	}
	if err := writeAtomic(c.dataPath(id), data); err != nil {
		return fmt.Errorf("updating record %d: %w", id, err)
	}
	return nil
}

func (c *Collection[T]) Delete(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.dataPath(id)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: record %d", store.ErrNotFound, id)
		}
		return fmt.Errorf("deleting %q: %w", path, err)
	}
	return nil
}

func (c *Collection[T]) Exist(id uint64) bool {
	info, err := os.Stat(c.dataPath(id))
	return err == nil && info.Mode().IsRegular()
}

func (c *Collection[T]) read(id uint64) (T, error) {
	var zero T
	path := c.dataPath(id)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, fmt.Errorf("%w: record %d", store.ErrNotFound, id)
	}
	if err != nil {
		return zero, fmt.Errorf("reading %q: %w", path, err)
	}
	rec, err := codec.Deserialize[T](data)
	if err != nil {
		return zero, fmt.Errorf("%q: %w", path, err)
	}
	if got := rec.Metadata().ID; got != id {
		llog.Warn("record id does not match file name", "path", path, "id", got)
		return zero, fmt.Errorf("%w: file %q holds record id %d", store.ErrInternal, path, got)
	}
	return rec, nil
}

func (c *Collection[T]) dataPath(id uint64) string {
	return filepath.Join(c.dataDir, strconv.FormatUint(id, 10)+codec.Ext)
}

func parseDataFileName(name string) (uint64, bool) {
	stem, ok := strings.CutSuffix(name, codec.Ext)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(stem, 10, 64)
	if err != nil || strconv.FormatUint(id, 10) != stem {
		return 0, false
	}
	return id, true
}
