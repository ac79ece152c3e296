// Package backend turns a data location string into store implementations.
//
// A location is "<kind>#<target>":
//
//	local#<directory>       one directory per collection, files per record
//	postgres#<conn string>  one table per collection (github.com/lib/pq)
//	sqlite#<file>           same schema in an embedded SQLite file
//	bolt#<file>             one bbolt bucket per collection
package backend

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"pracstore/internal/logging"
	"pracstore/internal/store"
	boltstore "pracstore/internal/store/bolt"
	"pracstore/internal/store/local"
	"pracstore/internal/store/sqlstore"
)

var blog = logging.For("backend")

// Kind names a backend family.
type Kind string

const (
	KindLocal    Kind = "local"
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
	KindBolt     Kind = "bolt"
)

// ErrUnsupported is returned for a location with an unknown prefix.
var ErrUnsupported = errors.New("unsupported data location")

// Location is a parsed data location.
type Location struct {
	Kind   Kind
	Target string
}

func (l Location) String() string {
	if l.Kind == KindPostgres {
		// Connection strings may carry credentials.
		return string(l.Kind) + "#<redacted>"
	}
	return string(l.Kind) + "#" + l.Target
}

// ParseLocation parses "<kind>#<target>". The kind is case-insensitive.
func ParseLocation(s string) (Location, error) {
	prefix, target, ok := strings.Cut(strings.TrimSpace(s), "#")
	if !ok {
		return Location{}, fmt.Errorf("%w: %q has no <kind># prefix", ErrUnsupported, s)
	}
	kind := Kind(strings.ToLower(strings.TrimSpace(prefix)))
	switch kind {
	case KindLocal, KindPostgres, KindSQLite, KindBolt:
	default:
		return Location{}, fmt.Errorf("%w: unknown kind %q", ErrUnsupported, prefix)
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return Location{}, fmt.Errorf("data location %q has an empty target", s)
	}
	return Location{Kind: kind, Target: target}, nil
}

// Backend owns the shared resources (connection pool, bolt file) behind
// the stores it hands out. Close it on shutdown.
type Backend struct {
	loc  Location
	sql  *sqlstore.DB
	bolt *boltstore.DB
}

// Open prepares the backend for loc. Failures are startup misconfiguration.
func Open(loc Location) (*Backend, error) {
	b := &Backend{loc: loc}
	var err error
	switch loc.Kind {
	case KindLocal:
	case KindPostgres, KindSQLite:
		var dialect *sqlstore.Dialect
		if dialect, err = sqlstore.DialectByName(string(loc.Kind)); err == nil {
			b.sql, err = sqlstore.Open(dialect, loc.Target)
		}
	case KindBolt:
		b.bolt, err = boltstore.Open(loc.Target)
	default:
		err = fmt.Errorf("%w: kind %q", ErrUnsupported, loc.Kind)
	}
	if err != nil {
		return nil, err
	}
	blog.Info("storage backend ready", "location", loc.String())
	return b, nil
}

// Location returns the location the backend was opened with.
func (b *Backend) Location() Location { return b.loc }

// Close releases shared resources.
func (b *Backend) Close() error {
	switch {
	case b.sql != nil:
		return b.sql.Close()
	case b.bolt != nil:
		return b.bolt.Close()
	}
	return nil
}

// Collection returns the collection store called name.
func Collection[T store.Record](b *Backend, name string) (store.Collection[T], error) {
	var (
		c   store.Collection[T]
		err error
	)
	switch b.loc.Kind {
	case KindLocal:
		c, err = local.NewCollection[T](filepath.Join(b.loc.Target, name))
	case KindPostgres, KindSQLite:
		c, err = sqlstore.NewCollection[T](b.sql, name)
	case KindBolt:
		c, err = boltstore.NewCollection[T](b.bolt, name)
	default:
		err = fmt.Errorf("%w: kind %q", ErrUnsupported, b.loc.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", name, err)
	}
	blog.Debug("collection opened", "name", name, "kind", b.loc.Kind)
	return c, nil
}

// Single returns the singleton store called name.
func Single[T store.Document](b *Backend, name string) (store.Single[T], error) {
	var (
		s   store.Single[T]
		err error
	)
	switch b.loc.Kind {
	case KindLocal:
		s, err = local.NewSingle[T](b.loc.Target, name)
	case KindPostgres, KindSQLite:
		s, err = sqlstore.NewSingle[T](b.sql, name)
	case KindBolt:
		s, err = boltstore.NewSingle[T](b.bolt, name)
	default:
		err = fmt.Errorf("%w: kind %q", ErrUnsupported, b.loc.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("opening single %q: %w", name, err)
	}
	blog.Debug("single opened", "name", name, "kind", b.loc.Kind)
	return s, nil
}
