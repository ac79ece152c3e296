// Package alias maps short command aliases to full commands. Global
// aliases apply to every player; player aliases belong to one player and
// may not shadow a global one. Names compare case-insensitively after
// trimming.
package alias

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"pracstore/internal/backend"
	"pracstore/internal/cache"
	"pracstore/internal/logging"
	"pracstore/internal/store"
)

var alog = logging.For("alias")

const (
	globalCollection = "global_aliases"
	playerCollection = "player_aliases"
)

// Global is an alias available to everyone.
type Global struct {
	store.Meta
	Alias   string `json:"alias"`
	Command string `json:"command"`
}

// Player is an alias owned by one player.
type Player struct {
	store.Meta
	PlayerID uint64 `json:"playerSteamId"`
	Alias    string `json:"alias"`
	Command  string `json:"command"`
}

// Service is the cached alias service.
type Service struct {
	// wmu serializes writes across both caches so a player alias cannot
	// race a global alias of the same name into existence.
	wmu     sync.Mutex
	globals *cache.Collection[*Global]
	players *cache.Collection[*Player]
}

// Normalize returns the comparison form of an alias name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewService opens both alias collections on b and loads them.
func NewService(ctx context.Context, b *backend.Backend) (*Service, error) {
	gst, err := backend.Collection[*Global](b, globalCollection)
	if err != nil {
		return nil, err
	}
	pst, err := backend.Collection[*Player](b, playerCollection)
	if err != nil {
		return nil, err
	}
	return newService(ctx, gst, pst)
}

func newService(ctx context.Context, gst store.Collection[*Global], pst store.Collection[*Player]) (*Service, error) {
	s := &Service{}
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		s.globals, err = cache.LoadCollection(globalCollection, gst)
		return err
	})
	g.Go(func() error {
		var err error
		s.players, err = cache.LoadCollection(playerCollection, pst)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading aliases: %w", err)
	}
	return s, nil
}

// ResolveGlobal returns the command for a global alias.
func (s *Service) ResolveGlobal(name string) (string, error) {
	key := Normalize(name)
	a, ok := s.globals.First(func(a *Global) bool { return Normalize(a.Alias) == key })
	if !ok {
		return "", fmt.Errorf("%w: no command for alias %q", store.ErrNotFound, key)
	}
	return a.Command, nil
}

// ResolvePlayer returns the command for one of player's aliases.
func (s *Service) ResolvePlayer(player uint64, name string) (string, error) {
	key := Normalize(name)
	a, ok := s.players.First(func(a *Player) bool {
		return a.PlayerID == player && Normalize(a.Alias) == key
	})
	if !ok {
		return "", fmt.Errorf("%w: no command for alias %q of player %d", store.ErrNotFound, key, player)
	}
	return a.Command, nil
}

// Resolve looks at the player's own aliases, then the global ones.
func (s *Service) Resolve(player uint64, name string) (string, error) {
	cmd, err := s.ResolvePlayer(player, name)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return cmd, err
	}
	return s.ResolveGlobal(name)
}

// Globals returns every global alias.
func (s *Service) Globals() []*Global { return s.globals.All() }

// PlayerAliases returns the aliases owned by player.
func (s *Service) PlayerAliases(player uint64) []*Player {
	return s.players.Where(func(a *Player) bool { return a.PlayerID == player })
}

// AddGlobal registers a global alias. It fails with store.ErrConflict if
// the name is taken.
func (s *Service) AddGlobal(name, command string) (*Global, error) {
	if err := validate(name, command); err != nil {
		return nil, err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	key := Normalize(name)
	added, err := s.globals.Add(&Global{Alias: name, Command: command},
		func(all []*Global) error {
			for _, a := range all {
				if Normalize(a.Alias) == key {
					return fmt.Errorf("%w: global alias %q already exists", store.ErrConflict, key)
				}
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	alog.Info("global alias added", "alias", key, "id", added.ID)
	return added, nil
}

// AddPlayer registers an alias for player. The name may not match a global
// alias or another alias of the same player.
func (s *Service) AddPlayer(player uint64, name, command string) (*Player, error) {
	if err := validate(name, command); err != nil {
		return nil, err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	key := Normalize(name)
	added, err := s.players.Add(&Player{PlayerID: player, Alias: name, Command: command},
		func([]*Player) error {
			if s.globalExists(key) {
				return fmt.Errorf("%w: global alias %q already exists", store.ErrConflict, key)
			}
			return nil
		},
		func(all []*Player) error {
			for _, a := range all {
				if a.PlayerID == player && Normalize(a.Alias) == key {
					return fmt.Errorf("%w: alias %q already exists for player %d", store.ErrConflict, key, player)
				}
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	alog.Info("player alias added", "alias", key, "player", player, "id", added.ID)
	return added, nil
}

// DeleteGlobal removes a global alias by name.
func (s *Service) DeleteGlobal(name string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	key := Normalize(name)
	removed, err := s.globals.DeleteFirst(func(a *Global) bool { return Normalize(a.Alias) == key })
	if err != nil {
		return fmt.Errorf("global alias %q: %w", key, err)
	}
	alog.Info("global alias deleted", "alias", key, "id", removed.ID)
	return nil
}

// DeletePlayer removes one of player's aliases by name.
func (s *Service) DeletePlayer(player uint64, name string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	key := Normalize(name)
	removed, err := s.players.DeleteFirst(func(a *Player) bool {
		return a.PlayerID == player && Normalize(a.Alias) == key
	})
	if err != nil {
		return fmt.Errorf("alias %q of player %d: %w", key, player, err)
	}
	alog.Info("player alias deleted", "alias", key, "player", player, "id", removed.ID)
	return nil
}

func (s *Service) globalExists(key string) bool {
	_, ok := s.globals.First(func(a *Global) bool { return Normalize(a.Alias) == key })
	return ok
}

func validate(name, command string) error {
	switch {
	case Normalize(name) == "":
		return errors.New("alias name is required")
	case strings.ContainsAny(strings.TrimSpace(name), " \t\n"):
		return fmt.Errorf("alias %q must be a single word", name)
	case strings.TrimSpace(command) == "":
		return errors.New("alias command is required")
	}
	return nil
}
