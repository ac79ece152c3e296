package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect captures the SQL that differs between supported databases.
type Dialect struct {
	Name       string
	DriverName string

	// maxID is the largest value the id column can hold.
	maxID uint64
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// collectionDDL creates a collection table; %s is the quoted table.
	collectionDDL string
	// singleDDL creates a singleton table and its one-row constraint;
	// the first %s is the quoted table, the second an index name.
	singleDDL []string
	// nextID allocates the next collection id inside tx.
	nextID func(tx *sql.Tx, table string) (uint64, error)
	// isUnique reports a unique or primary key violation.
	isUnique func(err error) bool
	// configure tunes a freshly opened pool.
	configure func(db *sql.DB) error
}

// Postgres uses github.com/lib/pq. Collection ids come from the SERIAL
// sequence, which never hands out a value twice.
var Postgres = &Dialect{
	Name:        "postgres",
	DriverName:  "postgres",
	maxID:       math.MaxInt32,
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	collectionDDL: `CREATE TABLE IF NOT EXISTS %s (
		"id" SERIAL PRIMARY KEY,
		"json" TEXT NOT NULL
	)`,
	singleDDL: []string{
		`CREATE TABLE IF NOT EXISTS %[1]s ("json" TEXT NOT NULL)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS %[2]s ON %[1]s ((TRUE))`,
	},
	nextID: func(tx *sql.Tx, table string) (uint64, error) {
		var id uint64
		err := tx.QueryRow(`SELECT nextval(pg_get_serial_sequence($1, 'id'))`, quoteIdent(table)).Scan(&id)
		return id, err
	},
	isUnique: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	},
	configure: func(db *sql.DB) error { return db.Ping() },
}

// SQLite uses modernc.org/sqlite. AUTOINCREMENT keeps sqlite_sequence at
// the highest id ever used, so ids are not reused after deletes.
var SQLite = &Dialect{
	Name:        "sqlite",
	DriverName:  "sqlite",
	maxID:       math.MaxInt64,
	placeholder: func(int) string { return "?" },
	collectionDDL: `CREATE TABLE IF NOT EXISTS %s (
		"id" INTEGER PRIMARY KEY AUTOINCREMENT,
		"json" TEXT NOT NULL
	)`,
	singleDDL: []string{
		`CREATE TABLE IF NOT EXISTS %[1]s (
			"json" TEXT NOT NULL,
			"one_row" INTEGER NOT NULL DEFAULT 1 CHECK ("one_row" = 1)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS %[2]s ON %[1]s ("one_row")`,
	},
	nextID: func(tx *sql.Tx, table string) (uint64, error) {
		var id uint64
		err := tx.QueryRow(`SELECT COALESCE(
			(SELECT "seq" FROM sqlite_sequence WHERE "name" = ?),
			(SELECT MAX("id") FROM `+quoteIdent(table)+`),
			0) + 1`, table).Scan(&id)
		return id, err
	},
	isUnique: func(err error) bool {
		return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
	configure: func(db *sql.DB) error {
		// One connection serializes writers and avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("set WAL mode: %w", err)
		}
		return nil
	},
}

// DialectByName returns the dialect registered under name.
func DialectByName(name string) (*Dialect, error) {
	switch strings.ToLower(name) {
	case Postgres.Name:
		return Postgres, nil
	case SQLite.Name:
		return SQLite, nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", name)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
