// Package storetest holds the behavioural suite every store backend must
// pass. Backend tests call RunCollection and RunSingle with a factory that
// returns a fresh, empty store.
package storetest

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"pracstore/internal/store"
)

// Item is the record type exercised by the suite.
type Item struct {
	store.Meta
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

// Doc is the singleton type exercised by the suite.
type Doc struct {
	store.Stamps
	Flag  bool   `json:"flag"`
	Label string `json:"label"`
}

// RunCollection runs the collection contract against stores built by newStore.
func RunCollection(t *testing.T, newStore func(t *testing.T) store.Collection[*Item]) {
	t.Run("AddAssignsSequentialIDs", func(t *testing.T) {
		s := newStore(t)
		a := mustAdd(t, s, &Item{Name: "A"})
		b := mustAdd(t, s, &Item{Name: "B"})
		if a.ID != 1 || b.ID != 2 {
			t.Fatalf("ids = %d, %d; want 1, 2", a.ID, b.ID)
		}
	})

	t.Run("AddIgnoresCallerID", func(t *testing.T) {
		s := newStore(t)
		in := &Item{Name: "A"}
		in.ID = 99
		got := mustAdd(t, s, in)
		if got.ID != 1 {
			t.Fatalf("id = %d, want 1", got.ID)
		}
		if in.ID != 99 {
			t.Fatal("Add modified the caller's record")
		}
	})

	t.Run("AddStampsTimestamps", func(t *testing.T) {
		s := newStore(t)
		before := time.Now().UTC().Add(-time.Second)
		got := mustAdd(t, s, &Item{Name: "A"})
		if got.CreatedUtc.Before(before) || got.UpdatedUtc.Before(got.CreatedUtc) {
			t.Fatalf("bad stamps: created=%v updated=%v", got.CreatedUtc, got.UpdatedUtc)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		s := newStore(t)
		added := mustAdd(t, s, &Item{Name: "grenade", Count: 3, Tags: []string{"a", "b"}})
		got, err := s.Get(added.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "grenade" || got.Count != 3 || len(got.Tags) != 2 || got.Tags[1] != "b" {
			t.Fatalf("round trip mismatch: %+v", got)
		}
		if !got.CreatedUtc.Equal(added.CreatedUtc) {
			t.Fatalf("CreatedUtc = %v, want %v", got.CreatedUtc, added.CreatedUtc)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(42); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("MonotonicAfterDelete", func(t *testing.T) {
		s := newStore(t)
		var last uint64
		for i := 0; i < 3; i++ {
			got := mustAdd(t, s, &Item{Name: "x"})
			if got.ID <= last {
				t.Fatalf("id %d not greater than %d", got.ID, last)
			}
			last = got.ID
			if err := s.Delete(got.ID); err != nil {
				t.Fatal(err)
			}
		}
		got := mustAdd(t, s, &Item{Name: "y"})
		if got.ID != 4 {
			t.Fatalf("id after deletes = %d, want 4", got.ID)
		}
	})

	t.Run("DeleteTwice", func(t *testing.T) {
		s := newStore(t)
		got := mustAdd(t, s, &Item{Name: "A"})
		if err := s.Delete(got.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get(got.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Get after delete: expected ErrNotFound, got %v", err)
		}
		if err := s.Delete(got.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("second Delete: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdatePreservesCreated", func(t *testing.T) {
		s := newStore(t)
		added := mustAdd(t, s, &Item{Name: "A"})

		changed := *added
		changed.Name = "A2"
		changed.CreatedUtc = added.CreatedUtc.Add(48 * time.Hour)
		if err := s.Update(&changed); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(added.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "A2" {
			t.Fatalf("Name = %q, want A2", got.Name)
		}
		if !got.CreatedUtc.Equal(added.CreatedUtc) {
			t.Fatalf("CreatedUtc changed: %v -> %v", added.CreatedUtc, got.CreatedUtc)
		}
		if got.UpdatedUtc.Before(added.UpdatedUtc) {
			t.Fatalf("UpdatedUtc went backwards: %v -> %v", added.UpdatedUtc, got.UpdatedUtc)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := newStore(t)
		missing := &Item{Name: "ghost"}
		missing.ID = 5
		if err := s.Update(missing); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if s.Exist(5) {
			t.Fatal("Update of a missing record created it")
		}
	})

	t.Run("HugeIDNotFound", func(t *testing.T) {
		s := newStore(t)
		mustAdd(t, s, &Item{Name: "A"})
		for _, id := range []uint64{1 << 31, 1<<63 - 1, 1 << 63, math.MaxUint64} {
			if _, err := s.Get(id); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("Get(%d): expected ErrNotFound, got %v", id, err)
			}
			if err := s.Delete(id); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("Delete(%d): expected ErrNotFound, got %v", id, err)
			}
			ghost := &Item{Name: "ghost"}
			ghost.ID = id
			if err := s.Update(ghost); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("Update(%d): expected ErrNotFound, got %v", id, err)
			}
			if s.Exist(id) {
				t.Fatalf("Exist(%d) = true", id)
			}
		}
	})

	t.Run("UpdateNil", func(t *testing.T) {
		s := newStore(t)
		mustAdd(t, s, &Item{Name: "A"})
		if err := s.Update(nil); !errors.Is(err, store.ErrEncoding) {
			t.Fatalf("Update(nil): expected ErrEncoding, got %v", err)
		}
	})

	t.Run("Exist", func(t *testing.T) {
		s := newStore(t)
		if s.Exist(1) {
			t.Fatal("empty store reports id 1")
		}
		got := mustAdd(t, s, &Item{Name: "A"})
		if !s.Exist(got.ID) {
			t.Fatal("added record not reported")
		}
	})

	t.Run("Scenario", func(t *testing.T) {
		s := newStore(t)
		a := mustAdd(t, s, &Item{Name: "A"})
		b := mustAdd(t, s, &Item{Name: "B"})
		if a.ID != 1 || b.ID != 2 {
			t.Fatalf("ids = %d, %d", a.ID, b.ID)
		}
		if err := s.Delete(1); err != nil {
			t.Fatal(err)
		}
		all, err := s.GetAll()
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 1 || all[0].ID != 2 || all[0].Name != "B" {
			t.Fatalf("GetAll = %+v, want [{2 B}]", all)
		}
		if _, err := s.Get(1); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Get(1): expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ConcurrentAddsUnique", func(t *testing.T) {
		s := newStore(t)
		const n = 16
		ids := make(chan uint64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := s.Add(&Item{Name: "c"})
				if err != nil {
					t.Error(err)
					return
				}
				ids <- got.ID
			}()
		}
		wg.Wait()
		close(ids)
		seen := make(map[uint64]bool)
		for id := range ids {
			if seen[id] {
				t.Fatalf("duplicate id %d", id)
			}
			seen[id] = true
		}
		all, err := s.GetAll()
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != n {
			t.Fatalf("GetAll returned %d records, want %d", len(all), n)
		}
	})
}

// RunSingle runs the single-document contract against stores built by newStore.
func RunSingle(t *testing.T, newStore func(t *testing.T) store.Single[*Doc]) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if s.Exists() {
			t.Fatal("fresh store reports a document")
		}
		if _, err := s.Get(); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InsertThenReplace", func(t *testing.T) {
		s := newStore(t)
		if err := s.AddOrUpdate(&Doc{Label: "first"}); err != nil {
			t.Fatal(err)
		}
		first, err := s.Get()
		if err != nil {
			t.Fatal(err)
		}
		if first.Label != "first" || first.CreatedUtc.IsZero() {
			t.Fatalf("unexpected document: %+v", first)
		}

		next := &Doc{Label: "second", Flag: true}
		next.CreatedUtc = first.CreatedUtc.Add(-time.Hour)
		if err := s.AddOrUpdate(next); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get()
		if err != nil {
			t.Fatal(err)
		}
		if got.Label != "second" || !got.Flag {
			t.Fatalf("document not replaced: %+v", got)
		}
		if !got.CreatedUtc.Equal(first.CreatedUtc) {
			t.Fatalf("CreatedUtc changed: %v -> %v", first.CreatedUtc, got.CreatedUtc)
		}
		if got.UpdatedUtc.Before(first.UpdatedUtc) {
			t.Fatalf("UpdatedUtc went backwards")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		if err := s.Delete(); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Delete on empty: expected ErrNotFound, got %v", err)
		}
		if err := s.AddOrUpdate(&Doc{Label: "x"}); err != nil {
			t.Fatal(err)
		}
		if !s.Exists() {
			t.Fatal("document should exist")
		}
		if err := s.Delete(); err != nil {
			t.Fatal(err)
		}
		if s.Exists() {
			t.Fatal("document should be gone")
		}
	})

	t.Run("ConcurrentUpserts", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				// A losing writer may see ErrConflict; it must never
				// produce a second document.
				err := s.AddOrUpdate(&Doc{Label: "racer"})
				if err != nil && !errors.Is(err, store.ErrConflict) {
					t.Error(err)
				}
			}()
		}
		wg.Wait()
		got, err := s.Get()
		if err != nil {
			t.Fatal(err)
		}
		if got.Label != "racer" {
			t.Fatalf("unexpected document: %+v", got)
		}
	})
}

func mustAdd(t *testing.T, s store.Collection[*Item], in *Item) *Item {
	t.Helper()
	got, err := s.Add(in)
	if err != nil {
		t.Fatalf("Add(%q): %v", in.Name, err)
	}
	return got
}
