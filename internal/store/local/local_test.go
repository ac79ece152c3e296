package local

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pracstore/internal/codec"
	"pracstore/internal/logging"
	"pracstore/internal/store"
	"pracstore/internal/store/storetest"
)

func newCollection(t *testing.T) (*Collection[*storetest.Item], string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "items")
	c, err := NewCollection[*storetest.Item](dir)
	if err != nil {
		t.Fatal(err)
	}
	return c, dir
}

func TestCollectionContract(t *testing.T) {
	storetest.RunCollection(t, func(t *testing.T) store.Collection[*storetest.Item] {
		c, _ := newCollection(t)
		return c
	})
}

func TestSingleContract(t *testing.T) {
	storetest.RunSingle(t, func(t *testing.T) store.Single[*storetest.Doc] {
		s, err := NewSingle[*storetest.Doc](t.TempDir(), "settings")
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestNewCollectionLayout(t *testing.T) {
	_, dir := newCollection(t)

	raw, err := os.ReadFile(filepath.Join(dir, "id"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "0" {
		t.Fatalf("id file = %q, want 0", raw)
	}
	if info, err := os.Stat(filepath.Join(dir, "data")); err != nil || !info.IsDir() {
		t.Fatalf("data dir missing: %v", err)
	}
}

func TestNewCollectionKeepsCounter(t *testing.T) {
	c, dir := newCollection(t)
	if _, err := c.Add(&storetest.Item{Name: "a"}); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewCollection[*storetest.Item](dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Add(&storetest.Item{Name: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 2 {
		t.Fatalf("id after reopen = %d, want 2", got.ID)
	}
}

func TestAddWritesFileThenCounter(t *testing.T) {
	c, dir := newCollection(t)
	got, err := c.Add(&storetest.Item{Name: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "1.json")); err != nil {
		t.Fatalf("data file missing: %v", err)
	}
	raw, _ := os.ReadFile(filepath.Join(dir, "id"))
	if string(raw) != "1" || got.ID != 1 {
		t.Fatalf("counter = %q, id = %d", raw, got.ID)
	}
}

func TestAddDetectsOrphanFile(t *testing.T) {
	c, dir := newCollection(t)

	// Simulate a crash after the data file was written but before the
	// counter advanced.
	orphan := filepath.Join(dir, "data", "1.json")
	if err := os.WriteFile(orphan, []byte(`{"id": 1, "name": "orphan"}`), 0o640); err != nil {
		t.Fatal(err)
	}

	_, err := c.Add(&storetest.Item{Name: "new"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	data, _ := os.ReadFile(orphan)
	if !strings.Contains(string(data), "orphan") {
		t.Fatal("orphan file was overwritten")
	}
	raw, _ := os.ReadFile(filepath.Join(dir, "id"))
	if string(raw) != "0" {
		t.Fatalf("counter advanced to %q after failed add", raw)
	}
}

func TestAddMissingCounter(t *testing.T) {
	c, dir := newCollection(t)
	if err := os.Remove(filepath.Join(dir, "id")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Add(&storetest.Item{Name: "a"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddCorruptCounter(t *testing.T) {
	c, dir := newCollection(t)
	if err := os.WriteFile(filepath.Join(dir, "id"), []byte("seven"), 0o640); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Add(&storetest.Item{Name: "a"}); !errors.Is(err, store.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}

func TestGetAllSkipsForeignFiles(t *testing.T) {
	c, dir := newCollection(t)
	for _, name := range []string{"a", "b"} {
		if _, err := c.Add(&storetest.Item{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "data", "README"), []byte("hi"), 0o640)
	_ = os.WriteFile(filepath.Join(dir, "data", ".tmp-abc"), []byte("{"), 0o640)

	all, err := c.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Name != "a" || all[1].Name != "b" {
		t.Fatalf("GetAll = %+v", all)
	}
}

func TestGetAllSkipsNonCanonicalNames(t *testing.T) {
	c, dir := newCollection(t)
	if _, err := c.Add(&storetest.Item{Name: "a"}); err != nil {
		t.Fatal(err)
	}
	orig, err := os.ReadFile(filepath.Join(dir, "data", "1.json"))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"01.json", "+1.json", "001.json"} {
		if err := os.WriteFile(filepath.Join(dir, "data", name), orig, 0o640); err != nil {
			t.Fatal(err)
		}
	}

	all, err := c.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != 1 {
		t.Fatalf("GetAll = %+v, want only record 1", all)
	}
}

func TestGetAllOrdersNumerically(t *testing.T) {
	c, _ := newCollection(t)
	for i := 0; i < 11; i++ {
		if _, err := c.Add(&storetest.Item{Count: i}); err != nil {
			t.Fatal(err)
		}
	}
	all, err := c.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	for i, it := range all {
		if it.ID != uint64(i+1) {
			t.Fatalf("position %d holds id %d", i, it.ID)
		}
	}
}

func TestGetCorruptFile(t *testing.T) {
	c, dir := newCollection(t)
	if err := os.WriteFile(filepath.Join(dir, "data", "3.json"), []byte("   "), 0o640); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(3); !errors.Is(err, store.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
	if _, err := c.GetAll(); !errors.Is(err, store.ErrEncoding) {
		t.Fatalf("GetAll: expected ErrEncoding, got %v", err)
	}
}

func TestGetIDMismatch(t *testing.T) {
	c, dir := newCollection(t)
	capture := logging.CaptureForTest()
	defer capture.Restore()

	item := &storetest.Item{Name: "copied"}
	item.ID = 9
	data, err := codec.Serialize(item)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data", "4.json"), data, 0o640); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(4); !errors.Is(err, store.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if !capture.Has(slog.LevelWarn, "does not match") {
		t.Fatal("expected a warning about the id mismatch")
	}
}

func TestSingleFileLocation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s, err := NewSingle[*storetest.Doc](dir, "settings")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddOrUpdate(&storetest.Doc{Label: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "settings.json")); err != nil {
		t.Fatalf("document file missing: %v", err)
	}
}

func TestNewSingleRequiresName(t *testing.T) {
	if _, err := NewSingle[*storetest.Doc](t.TempDir(), ""); err == nil {
		t.Fatal("expected error for empty name")
	}
}
