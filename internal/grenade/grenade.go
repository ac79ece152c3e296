// Package grenade stores saved grenade throws. A throw is addressed by its
// id or by its name on a map; names are unique per map, compared
// case-insensitively after trimming.
package grenade

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"pracstore/internal/backend"
	"pracstore/internal/cache"
	"pracstore/internal/logging"
	"pracstore/internal/store"
)

var glog = logging.For("grenade")

const collectionName = "grenades"

// Kind is the grenade type. It is stored as its name.
type Kind int

const (
	Smoke Kind = iota + 1
	Flash
	HighExplosive
	Molotov
	Decoy
)

var kindNames = map[Kind]string{
	Smoke:         "smoke",
	Flash:         "flash",
	HighExplosive: "he",
	Molotov:       "molotov",
	Decoy:         "decoy",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// legacyKindNames are the enum names written by earlier grenade files,
// e.g. "GRENADE_TYPE_SMOKE".
var legacyKindNames = map[string]Kind{
	"smoke":     Smoke,
	"flash":     Flash,
	"explosive": HighExplosive,
	"fire":      Molotov,
	"decoy":     Decoy,
}

// ParseKind accepts the names produced by String and the legacy
// GRENADE_TYPE_* names, case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	if legacy, ok := strings.CutPrefix(s, "grenade_type_"); ok {
		if k, ok := legacyKindNames[legacy]; ok {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown grenade type %q", s)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown grenade type %d", int(k))
	}
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Vector is a position, angle or velocity.
type Vector struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Grenade is one saved throw.
type Grenade struct {
	store.Meta
	Map                string   `json:"map"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	Type               Kind     `json:"type"`
	Tags               []string `json:"tags"`
	PlayerID           uint64   `json:"playerSteamId"`
	ThrowPosition      Vector   `json:"throwPosition"`
	InitialPosition    Vector   `json:"initialPosition"`
	Angle              Vector   `json:"angle"`
	Velocity           Vector   `json:"velocity"`
	DetonationPosition Vector   `json:"detonationPosition"`
}

// HasTag reports whether g carries tag.
func (g *Grenade) HasTag(tag string) bool {
	tag = normalize(tag)
	return slices.ContainsFunc(g.Tags, func(t string) bool { return normalize(t) == tag })
}

// AddTag adds tag unless already present.
func (g *Grenade) AddTag(tag string) {
	if !g.HasTag(tag) {
		g.Tags = append(g.Tags, strings.TrimSpace(tag))
	}
}

// RemoveTag removes tag, failing with store.ErrNotFound if absent.
func (g *Grenade) RemoveTag(tag string) error {
	key := normalize(tag)
	i := slices.IndexFunc(g.Tags, func(t string) bool { return normalize(t) == key })
	if i < 0 {
		return fmt.Errorf("%w: grenade is not tagged with %q", store.ErrNotFound, key)
	}
	g.Tags = slices.Delete(g.Tags, i, i+1)
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (g *Grenade) matches(name, mapName string) bool {
	return normalize(g.Name) == name && normalize(g.Map) == mapName
}

// Service is the cached grenade service.
type Service struct {
	c *cache.Collection[*Grenade]
}

// NewService opens the grenade collection on b and loads it.
func NewService(b *backend.Backend) (*Service, error) {
	st, err := backend.Collection[*Grenade](b, collectionName)
	if err != nil {
		return nil, err
	}
	c, err := cache.LoadCollection(collectionName, st)
	if err != nil {
		return nil, err
	}
	return &Service{c: c}, nil
}

// Get returns the throw called name on mapName.
func (s *Service) Get(name, mapName string) (*Grenade, error) {
	n, m := normalize(name), normalize(mapName)
	g, ok := s.c.First(func(g *Grenade) bool { return g.matches(n, m) })
	if !ok {
		return nil, fmt.Errorf("%w: grenade %q on %q", store.ErrNotFound, name, mapName)
	}
	return g, nil
}

// GetByID returns the throw with id.
func (s *Service) GetByID(id uint64) (*Grenade, error) {
	return s.c.Get(id)
}

// Where returns the throws matching pred.
func (s *Service) Where(pred func(*Grenade) bool) []*Grenade {
	return s.c.Where(pred)
}

// ForMap returns every throw saved on mapName.
func (s *Service) ForMap(mapName string) []*Grenade {
	m := normalize(mapName)
	return s.c.Where(func(g *Grenade) bool { return normalize(g.Map) == m })
}

// All returns every saved throw.
func (s *Service) All() []*Grenade { return s.c.All() }

// Add saves g and returns it with its id. The name must be free on g's map.
func (s *Service) Add(g *Grenade) (*Grenade, error) {
	if err := validate(g); err != nil {
		return nil, err
	}
	if g.Tags == nil {
		g.Tags = []string{}
	}
	added, err := s.c.Add(g, uniqueName(g.Name, g.Map, 0))
	if err != nil {
		return nil, err
	}
	glog.Info("grenade saved", "id", added.ID, "name", added.Name, "map", added.Map, "type", added.Type)
	return added, nil
}

// Update persists changes to an existing throw. Renaming onto another
// throw's name on the same map fails with store.ErrConflict.
func (s *Service) Update(g *Grenade) error {
	if err := validate(g); err != nil {
		return err
	}
	if err := s.c.Update(g, uniqueName(g.Name, g.Map, g.ID)); err != nil {
		return err
	}
	glog.Debug("grenade updated", "id", g.ID)
	return nil
}

// Delete removes the throw with id.
func (s *Service) Delete(id uint64) error {
	if err := s.c.Delete(id); err != nil {
		return err
	}
	glog.Info("grenade deleted", "id", id)
	return nil
}

// uniqueName rejects a name already used on the map by a throw other than self.
func uniqueName(name, mapName string, self uint64) cache.Guard[*Grenade] {
	n, m := normalize(name), normalize(mapName)
	return func(all []*Grenade) error {
		for _, other := range all {
			if other.ID != self && other.matches(n, m) {
				return fmt.Errorf("%w: grenade %q already exists on %q (id %d)",
					store.ErrConflict, name, mapName, other.ID)
			}
		}
		return nil
	}
}

func validate(g *Grenade) error {
	switch {
	case g == nil:
		return errors.New("grenade is nil")
	case normalize(g.Name) == "":
		return errors.New("grenade name is required")
	case normalize(g.Map) == "":
		return errors.New("grenade map is required")
	}
	if _, ok := kindNames[g.Type]; !ok {
		return fmt.Errorf("unknown grenade type %d", int(g.Type))
	}
	return nil
}
