package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"pracstore/internal/logging"
	"pracstore/internal/store"
	"pracstore/internal/store/local"
	"pracstore/internal/store/storetest"
)

var errBackend = errors.New("backend unavailable")

// flakyCollection wraps a real store and fails selected calls on demand.
type flakyCollection struct {
	store.Collection[*storetest.Item]
	mu         sync.Mutex
	failWrites bool
	failReads  bool
	getAlls    int
}

func (f *flakyCollection) setFail(writes, reads bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites, f.failReads = writes, reads
}

func (f *flakyCollection) GetAll() ([]*storetest.Item, error) {
	f.mu.Lock()
	f.getAlls++
	fail := f.failReads
	f.mu.Unlock()
	if fail {
		return nil, errBackend
	}
	return f.Collection.GetAll()
}

func (f *flakyCollection) Add(it *storetest.Item) (*storetest.Item, error) {
	f.mu.Lock()
	fail := f.failWrites
	f.mu.Unlock()
	if fail {
		return nil, errBackend
	}
	return f.Collection.Add(it)
}

func newFlaky(t *testing.T) *flakyCollection {
	t.Helper()
	st, err := local.NewCollection[*storetest.Item](filepath.Join(t.TempDir(), "items"))
	if err != nil {
		t.Fatal(err)
	}
	return &flakyCollection{Collection: st}
}

func loadCache(t *testing.T, st store.Collection[*storetest.Item]) *Collection[*storetest.Item] {
	t.Helper()
	c, err := LoadCollection("items", st)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func names(items []*storetest.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestLoadCollectionReadsExisting(t *testing.T) {
	f := newFlaky(t)
	for _, n := range []string{"a", "b"} {
		if _, err := f.Add(&storetest.Item{Name: n}); err != nil {
			t.Fatal(err)
		}
	}
	c := loadCache(t, f)
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}

func TestLoadCollectionFailure(t *testing.T) {
	f := newFlaky(t)
	f.setFail(false, true)
	if _, err := LoadCollection[*storetest.Item]("items", f); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestWritesReloadFromStore(t *testing.T) {
	f := newFlaky(t)
	c := loadCache(t, f)

	a, err := c.Add(&storetest.Item{Name: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Add(&storetest.Item{Name: "B"}); err != nil {
		t.Fatal(err)
	}
	a.Name = "A2"
	if err := c.Update(a); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(2); err != nil {
		t.Fatal(err)
	}

	direct, err := f.Collection.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	cached := c.All()
	if fmt.Sprint(names(cached)) != fmt.Sprint(names(direct)) {
		t.Fatalf("cache %v != store %v", names(cached), names(direct))
	}
	if len(cached) != 1 || cached[0].Name != "A2" {
		t.Fatalf("cache = %v", names(cached))
	}
	// One initial load plus one per write.
	if f.getAlls != 5 {
		t.Fatalf("GetAll called %d times, want 5", f.getAlls)
	}
}

func TestFailedWriteLeavesCache(t *testing.T) {
	f := newFlaky(t)
	c := loadCache(t, f)
	if _, err := c.Add(&storetest.Item{Name: "kept"}); err != nil {
		t.Fatal(err)
	}
	reloads := f.getAlls

	f.setFail(true, false)
	if _, err := c.Add(&storetest.Item{Name: "lost"}); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if f.getAlls != reloads {
		t.Fatal("cache reloaded after a failed write")
	}
	if got := names(c.All()); len(got) != 1 || got[0] != "kept" {
		t.Fatalf("cache changed after failed write: %v", got)
	}
}

func TestReloadFailureMarksStale(t *testing.T) {
	f := newFlaky(t)
	c := loadCache(t, f)
	capture := logging.CaptureForTest()
	defer capture.Restore()

	f.setFail(false, true)
	if _, err := c.Add(&storetest.Item{Name: "written"}); !errors.Is(err, errBackend) {
		t.Fatalf("expected reload error, got %v", err)
	}
	if !c.Stale() {
		t.Fatal("cache should be stale")
	}
	if c.Len() != 0 {
		t.Fatal("stale snapshot should be the pre-write state")
	}
	if !capture.Has(slog.LevelError, "reload after write failed") {
		t.Fatal("expected reload failure to be logged")
	}

	f.setFail(false, false)
	if _, err := c.Add(&storetest.Item{Name: "next"}); err != nil {
		t.Fatal(err)
	}
	if c.Stale() || c.Len() != 2 {
		t.Fatalf("cache not recovered: stale=%v len=%d", c.Stale(), c.Len())
	}
}

func TestGuardVetoesWrite(t *testing.T) {
	f := newFlaky(t)
	c := loadCache(t, f)
	if _, err := c.Add(&storetest.Item{Name: "dup"}); err != nil {
		t.Fatal(err)
	}

	unique := func(name string) Guard[*storetest.Item] {
		return func(snapshot []*storetest.Item) error {
			for _, it := range snapshot {
				if it.Name == name {
					return store.ErrConflict
				}
			}
			return nil
		}
	}
	if _, err := c.Add(&storetest.Item{Name: "dup"}, unique("dup")); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if f.Exist(2) {
		t.Fatal("vetoed write reached the store")
	}
}

func TestReadsReturnCopies(t *testing.T) {
	c := loadCache(t, newFlaky(t))
	if _, err := c.Add(&storetest.Item{Name: "orig", Tags: []string{"x"}}); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	got.Name = "mutated"
	got.Tags[0] = "y"

	again, _ := c.Get(1)
	if again.Name != "orig" || again.Tags[0] != "x" {
		t.Fatal("caller mutation leaked into the cache")
	}
}

func TestGetWhereFirst(t *testing.T) {
	c := loadCache(t, newFlaky(t))
	for i := 0; i < 5; i++ {
		if _, err := c.Add(&storetest.Item{Name: fmt.Sprint(i), Count: i}); err != nil {
			t.Fatal(err)
		}
	}
	even := c.Where(func(it *storetest.Item) bool { return it.Count%2 == 0 })
	if len(even) != 3 {
		t.Fatalf("Where returned %d, want 3", len(even))
	}
	if _, ok := c.First(func(it *storetest.Item) bool { return it.Count > 10 }); ok {
		t.Fatal("First matched nothing yet returned ok")
	}
	if _, err := c.Get(99); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteFirst(t *testing.T) {
	c := loadCache(t, newFlaky(t))
	for _, n := range []string{"a", "b"} {
		if _, err := c.Add(&storetest.Item{Name: n}); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := c.DeleteFirst(func(it *storetest.Item) bool { return it.Name == "b" })
	if err != nil {
		t.Fatal(err)
	}
	if removed.ID != 2 {
		t.Fatalf("removed id %d", removed.ID)
	}
	if _, err := c.DeleteFirst(func(it *storetest.Item) bool { return it.Name == "b" }); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := loadCache(t, newFlaky(t))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if _, err := c.Add(&storetest.Item{Name: "w"}); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				all := c.All()
				seen := make(map[uint64]bool, len(all))
				for _, it := range all {
					if seen[it.ID] {
						t.Errorf("duplicate id %d in snapshot", it.ID)
					}
					seen[it.ID] = true
				}
			}
		}()
	}
	wg.Wait()
	if c.Len() != 20 {
		t.Fatalf("Len = %d, want 20", c.Len())
	}
}
