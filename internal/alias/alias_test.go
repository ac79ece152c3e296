package alias

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"pracstore/internal/backend"
	"pracstore/internal/store"
)

func newTestService(t *testing.T, kind backend.Kind, target string) *Service {
	t.Helper()
	b, err := backend.Open(backend.Location{Kind: kind, Target: target})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	s, err := NewService(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestGlobalAliasLifecycle(t *testing.T) {
	s := newTestService(t, backend.KindLocal, t.TempDir())

	if _, err := s.AddGlobal(" Smokes ", "!smokes mirage"); err != nil {
		t.Fatal(err)
	}
	cmd, err := s.ResolveGlobal("SMOKES")
	if err != nil {
		t.Fatal(err)
	}
	if cmd != "!smokes mirage" {
		t.Fatalf("command = %q", cmd)
	}
	if _, err := s.AddGlobal("smokes", "other"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(s.Globals()) != 1 {
		t.Fatalf("Globals = %d, want 1", len(s.Globals()))
	}

	if err := s.DeleteGlobal("smokes"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ResolveGlobal("smokes"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteGlobal("smokes"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestPlayerAliases(t *testing.T) {
	s := newTestService(t, backend.KindLocal, t.TempDir())
	const alice, bob = 76561198000000001, 76561198000000002

	if _, err := s.AddPlayer(alice, "tp", "!teleport 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddPlayer(bob, "tp", "!teleport 2"); err != nil {
		t.Fatalf("same alias for another player: %v", err)
	}
	if _, err := s.AddPlayer(alice, "TP", "!teleport 3"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	cmd, err := s.ResolvePlayer(bob, "tp")
	if err != nil || cmd != "!teleport 2" {
		t.Fatalf("ResolvePlayer = %q, %v", cmd, err)
	}
	if got := s.PlayerAliases(alice); len(got) != 1 || got[0].Command != "!teleport 1" {
		t.Fatalf("PlayerAliases(alice) = %+v", got)
	}

	if err := s.DeletePlayer(alice, "tp"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ResolvePlayer(alice, "tp"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ResolvePlayer(bob, "tp"); err != nil {
		t.Fatalf("deleting alice's alias removed bob's: %v", err)
	}
}

func TestPlayerAliasCannotShadowGlobal(t *testing.T) {
	s := newTestService(t, backend.KindLocal, t.TempDir())
	if _, err := s.AddGlobal("bot", "!bot place"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddPlayer(7, "Bot", "!bot crouch"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(s.PlayerAliases(7)) != 0 {
		t.Fatal("shadowing alias was stored")
	}
}

func TestResolvePrefersPlayer(t *testing.T) {
	s := newTestService(t, backend.KindLocal, t.TempDir())
	if _, err := s.AddGlobal("g", "!global"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddPlayer(1, "p", "!mine"); err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]string{"p": "!mine", "g": "!global"} {
		got, err := s.Resolve(1, name)
		if err != nil || got != want {
			t.Fatalf("Resolve(%q) = %q, %v; want %q", name, got, err, want)
		}
	}
	if _, err := s.Resolve(1, "none"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	s := newTestService(t, backend.KindLocal, t.TempDir())
	for _, tc := range []struct{ name, cmd string }{
		{"", "!x"},
		{"   ", "!x"},
		{"two words", "!x"},
		{"ok", " "},
	} {
		if _, err := s.AddGlobal(tc.name, tc.cmd); err == nil {
			t.Errorf("AddGlobal(%q, %q) should fail", tc.name, tc.cmd)
		}
	}
}

func TestAliasesSurviveRestart(t *testing.T) {
	for _, kind := range []backend.Kind{backend.KindLocal, backend.KindSQLite, backend.KindBolt} {
		t.Run(string(kind), func(t *testing.T) {
			loc := backend.Location{Kind: kind, Target: t.TempDir()}
			if kind != backend.KindLocal {
				loc.Target = filepath.Join(loc.Target, "aliases.db")
			}

			b, err := backend.Open(loc)
			if err != nil {
				t.Fatal(err)
			}
			first, err := NewService(context.Background(), b)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := first.AddGlobal("a", "!one"); err != nil {
				t.Fatal(err)
			}
			if _, err := first.AddPlayer(9, "b", "!two"); err != nil {
				t.Fatal(err)
			}
			if err := b.Close(); err != nil {
				t.Fatal(err)
			}

			second := newTestService(t, loc.Kind, loc.Target)
			if cmd, err := second.ResolveGlobal("a"); err != nil || cmd != "!one" {
				t.Fatalf("global after restart = %q, %v", cmd, err)
			}
			if cmd, err := second.ResolvePlayer(9, "b"); err != nil || cmd != "!two" {
				t.Fatalf("player alias after restart = %q, %v", cmd, err)
			}
		})
	}
}
