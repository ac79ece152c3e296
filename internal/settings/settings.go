// Package settings holds the server-wide settings document. It is created
// with defaults the first time the service starts against a location.
package settings

import (
	"fmt"
	"sort"
	"strings"

	"pracstore/internal/backend"
	"pracstore/internal/cache"
	"pracstore/internal/logging"
	"pracstore/internal/store"
)

var setlog = logging.For("settings")

const documentName = "settings"

// Settings toggles optional practice features. The zero value enables
// everything.
type Settings struct {
	store.Stamps
	DisableSmokeColors    bool `json:"disableSmokeColors"`
	DisableBlindTimePrint bool `json:"disableBlindTimePrint"`
	DisableDamagePrint    bool `json:"disableDamagePrint"`
	DisableSpawnMarker    bool `json:"disableSpawnMarker"`
}

// Defaults returns the settings written on first start.
func Defaults() *Settings { return &Settings{} }

// fields maps the keys accepted by Set to the flag they control.
var fields = map[string]func(*Settings) *bool{
	"disableSmokeColors":    func(s *Settings) *bool { return &s.DisableSmokeColors },
	"disableBlindTimePrint": func(s *Settings) *bool { return &s.DisableBlindTimePrint },
	"disableDamagePrint":    func(s *Settings) *bool { return &s.DisableDamagePrint },
	"disableSpawnMarker":    func(s *Settings) *bool { return &s.DisableSpawnMarker },
}

// Keys returns the names accepted by Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookup(key string) (func(*Settings) *bool, error) {
	for k, f := range fields {
		if strings.EqualFold(k, strings.TrimSpace(key)) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(Keys(), ", "))
}

// Service is the cached settings service.
type Service struct {
	c *cache.Single[*Settings]
}

// NewService opens the settings document on b, creating it with Defaults
// when absent.
func NewService(b *backend.Backend) (*Service, error) {
	st, err := backend.Single[*Settings](b, documentName)
	if err != nil {
		return nil, err
	}
	c, err := cache.LoadSingle(documentName, st, Defaults)
	if err != nil {
		return nil, err
	}
	return &Service{c: c}, nil
}

// Get returns a copy of the current settings.
func (s *Service) Get() (*Settings, error) {
	return s.c.Get()
}

// Update replaces the stored settings with v. The stored creation time
// is kept.
func (s *Service) Update(v *Settings) error {
	if err := s.c.Set(v); err != nil {
		return err
	}
	setlog.Info("settings updated")
	return nil
}

// Set changes a single flag by key, e.g. "disableDamagePrint".
func (s *Service) Set(key string, value bool) error {
	field, err := lookup(key)
	if err != nil {
		return err
	}
	if err := s.c.Modify(func(doc *Settings) error {
		*field(doc) = value
		return nil
	}); err != nil {
		return err
	}
	setlog.Info("setting changed", "key", key, "value", value)
	return nil
}

// Flag returns a single flag by key.
func (s *Service) Flag(key string) (bool, error) {
	field, err := lookup(key)
	if err != nil {
		return false, err
	}
	doc, err := s.c.Get()
	if err != nil {
		return false, err
	}
	return *field(doc), nil
}

// Reset restores Defaults.
func (s *Service) Reset() error {
	return s.Update(Defaults())
}
