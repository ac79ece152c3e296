package sqlstore

import (
	"errors"
	"fmt"

	"pracstore/internal/codec"
	"pracstore/internal/store"
)

// Single is a one-row table store.Single. A unique index on the table makes
// the database reject a second row.
type Single[T store.Document] struct {
	db    *DB
	table string

	selectDoc string
	insert    string
	remove    string
	count     string
}

// NewSingle creates the table and its one-row index for name if missing.
func NewSingle[T store.Document](db *DB, name string) (*Single[T], error) {
	if err := checkTableName(name); err != nil {
		return nil, err
	}
	q := quoteIdent(name)
	s := &Single[T]{
		db:        db,
		table:     name,
		selectDoc: fmt.Sprintf(`SELECT "json" FROM %s`, q),
		insert:    fmt.Sprintf(`INSERT INTO %s ("json") VALUES (%s)`, q, db.ph(1)),
		remove:    fmt.Sprintf(`DELETE FROM %s`, q),
		count:     fmt.Sprintf(`SELECT COUNT(*) FROM %s`, q),
	}
	index := quoteIdent(name + "_one_row_uidx")
	for _, ddl := range db.dialect.singleDDL {
		if err := db.exec(fmt.Sprintf(ddl, q, index)); err != nil {
			return nil, fmt.Errorf("creating table %q: %w", name, err)
		}
	}
	if err := db.checkSchema(fmt.Sprintf(`SELECT "json" FROM %s WHERE 1 = 0`, q)); err != nil {
		return nil, fmt.Errorf("table %q has an incompatible shape: %w", name, err)
	}
	return s, nil
}

func (s *Single[T]) Get() (T, error) {
	var zero T
	rows, err := s.db.db.Query(s.selectDoc)
	if err != nil {
		return zero, fmt.Errorf("querying %q: %w", s.table, err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return zero, fmt.Errorf("scanning %q: %w", s.table, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return zero, fmt.Errorf("iterating %q: %w", s.table, err)
	}
	switch len(docs) {
	case 0:
		return zero, fmt.Errorf("%w: %s document", store.ErrNotFound, s.table)
	case 1:
	default:
		return zero, fmt.Errorf("%w: %d rows in single table %q", store.ErrInternal, len(docs), s.table)
	}
	doc, err := codec.Deserialize[T]([]byte(docs[0]))
	if err != nil {
		return zero, fmt.Errorf("%s document: %w", s.table, err)
	}
	return doc, nil
}

// AddOrUpdate replaces the row with delete-then-insert. The two statements
// are not wrapped in a transaction; a concurrent writer that slips in
// between loses with ErrConflict on the unique index.
func (s *Single[T]) AddOrUpdate(doc T) error {
	stored, err := codec.Clone(doc)
	if err != nil {
		return err
	}
	existing, err := s.Get()
	switch {
	case err == nil:
		store.StampUpdate(stored.Timestamps(), existing.Timestamps())
	case errors.Is(err, store.ErrNotFound):
		store.StampNew(stored.Timestamps())
	default:
		return err
	}
	data, err := codec.Serialize(stored)
	if err != nil {
		return err
	}

	if _, err := s.db.db.Exec(s.remove); err != nil {
		return fmt.Errorf("clearing %q: %w", s.table, err)
	}
	res, err := s.db.db.Exec(s.insert, string(data))
	if err != nil {
		if s.db.dialect.isUnique(err) {
			return fmt.Errorf("%w: %s already holds a document", store.ErrConflict, s.table)
		}
		return fmt.Errorf("inserting into %q: %w", s.table, err)
	}
	return expectOneRow(res, s.table)
}

func (s *Single[T]) Delete() error {
	res, err := s.db.db.Exec(s.remove)
	if err != nil {
		return fmt.Errorf("deleting from %q: %w", s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting from %q: %w", s.table, err)
	}
	switch n {
	case 0:
		return fmt.Errorf("%w: %s document", store.ErrNotFound, s.table)
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: %d rows deleted from single table %q", store.ErrInternal, n, s.table)
	}
}

func (s *Single[T]) Exists() bool {
	var n int
	if err := s.db.db.QueryRow(s.count).Scan(&n); err != nil {
		return false
	}
	return n == 1
}
