// Package sqlstore implements the store contracts on a relational database.
//
// Each collection is a table ("id", "json"); each singleton is a table
// holding one "json" row, with a unique index that rejects a second row.
// The encoded document embeds its own id, which is checked against the
// row id on every read.
//
// Cross-process safety rests on the database alone: the in-process mutexes
// of callers do not extend to other processes sharing the same tables.
package sqlstore

import (
	"database/sql"
	"fmt"
	"regexp"

	"pracstore/internal/logging"
)

var sqllog = logging.For("store-sql")

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// DB is a connection pool bound to a dialect, shared by the stores of one
// backend.
type DB struct {
	db      *sql.DB
	dialect *Dialect
}

// Open connects to dsn with the dialect's driver.
func Open(dialect *Dialect, dsn string) (*DB, error) {
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if err := dialect.configure(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", dialect.Name, err)
	}
	return &DB{db: db, dialect: dialect}, nil
}

// Close closes the pool.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) ph(n int) string { return d.dialect.placeholder(n) }

func checkTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

func (d *DB) exec(stmt string) error {
	if _, err := d.db.Exec(stmt); err != nil {
		sqllog.Error("schema statement failed", "dialect", d.dialect.Name, "err", err)
		return err
	}
	return nil
}

// checkSchema runs a query that returns no rows and fails if the referenced
// columns do not exist.
func (d *DB) checkSchema(query string) error {
	rows, err := d.db.Query(query)
	if err != nil {
		sqllog.Error("schema check failed", "dialect", d.dialect.Name, "err", err)
		return err
	}
	return rows.Close()
}
