package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"pracstore/internal/codec"
	"pracstore/internal/store"
)

// Collection is a table-backed store.Collection.
type Collection[T store.Record] struct {
	db    *DB
	table string

	selectAll string
	selectOne string
	insert    string
	update    string
	remove    string
	exists    string
}

// NewCollection creates the table for name if missing and verifies that an
// existing table has the expected shape.
func NewCollection[T store.Record](db *DB, name string) (*Collection[T], error) {
	if err := checkTableName(name); err != nil {
		return nil, err
	}
	q := quoteIdent(name)
	c := &Collection[T]{
		db:        db,
		table:     name,
		selectAll: fmt.Sprintf(`SELECT "id", "json" FROM %s ORDER BY "id"`, q),
		selectOne: fmt.Sprintf(`SELECT "id", "json" FROM %s WHERE "id" = %s`, q, db.ph(1)),
		insert:    fmt.Sprintf(`INSERT INTO %s ("id", "json") VALUES (%s, %s)`, q, db.ph(1), db.ph(2)),
		update:    fmt.Sprintf(`UPDATE %s SET "json" = %s WHERE "id" = %s`, q, db.ph(1), db.ph(2)),
		remove:    fmt.Sprintf(`DELETE FROM %s WHERE "id" = %s`, q, db.ph(1)),
		exists:    fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE "id" = %s`, q, db.ph(1)),
	}
	if err := db.exec(fmt.Sprintf(db.dialect.collectionDDL, q)); err != nil {
		return nil, fmt.Errorf("creating table %q: %w", name, err)
	}
	if err := db.checkSchema(fmt.Sprintf(`SELECT "id", "json" FROM %s WHERE 1 = 0`, q)); err != nil {
		return nil, fmt.Errorf("table %q has an incompatible shape: %w", name, err)
	}
	return c, nil
}

func (c *Collection[T]) GetAll() ([]T, error) {
	rows, err := c.db.db.Query(c.selectAll)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", c.table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var (
			id  uint64
			doc string
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scanning %q: %w", c.table, err)
		}
		rec, err := c.decode(id, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %q: %w", c.table, err)
	}
	return out, nil
}

func (c *Collection[T]) Get(id uint64) (T, error) {
	var (
		zero  T
		rowID uint64
		doc   string
	)
	if !c.inRange(id) {
		return zero, c.notFound(id)
	}
	err := c.db.db.QueryRow(c.selectOne, id).Scan(&rowID, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, c.notFound(id)
	}
	if err != nil {
		return zero, fmt.Errorf("querying %q: %w", c.table, err)
	}
	return c.decode(rowID, doc)
}

func (c *Collection[T]) Add(rec T) (T, error) {
	var zero T
	stored, err := codec.Clone(rec)
	if err != nil {
		return zero, err
	}

	tx, err := c.db.db.Begin()
	if err != nil {
		return zero, fmt.Errorf("begin add on %q: %w", c.table, err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := c.db.dialect.nextID(tx, c.table)
	if err != nil {
		return zero, fmt.Errorf("allocating id on %q: %w", c.table, err)
	}
	stored.Metadata().ID = id
	store.StampNew(stored.Timestamps())
	data, err := codec.Serialize(stored)
	if err != nil {
		return zero, err
	}

	res, err := tx.Exec(c.insert, id, string(data))
	if err != nil {
		if c.db.dialect.isUnique(err) {
			return zero, fmt.Errorf("%w: %s record %d already exists", store.ErrConflict, c.table, id)
		}
		return zero, fmt.Errorf("inserting into %q: %w", c.table, err)
	}
	if err := expectOneRow(res, c.table); err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("commit add on %q: %w", c.table, err)
	}
	return stored, nil
}

func (c *Collection[T]) Update(rec T) error {
	stored, err := codec.Clone(rec)
	if err != nil {
		return err
	}
	id := stored.Metadata().ID
	existing, err := c.Get(id)
	if err != nil {
		return err
	}
	store.StampUpdate(stored.Timestamps(), existing.Timestamps())
	data, err := codec.Serialize(stored)
	if err != nil {
		return err
	}
	res, err := c.db.db.Exec(c.update, string(data), id)
	if err != nil {
		return fmt.Errorf("updating %q: %w", c.table, err)
	}
	return expectOneRow(res, c.table)
}

func (c *Collection[T]) Delete(id uint64) error {
	if !c.inRange(id) {
		return c.notFound(id)
	}
	res, err := c.db.db.Exec(c.remove, id)
	if err != nil {
		return fmt.Errorf("deleting from %q: %w", c.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting from %q: %w", c.table, err)
	}
	switch n {
	case 0:
		return c.notFound(id)
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: %d rows affected deleting %s record %d", store.ErrInternal, n, c.table, id)
	}
}

func (c *Collection[T]) Exist(id uint64) bool {
	if !c.inRange(id) {
		return false
	}
	var n int
	if err := c.db.db.QueryRow(c.exists, id).Scan(&n); err != nil {
		return false
	}
	return n == 1
}

// inRange reports whether id fits the id column. Larger ids cannot name a
// row, and binding them fails in the driver.
func (c *Collection[T]) inRange(id uint64) bool {
	return id <= c.db.dialect.maxID
}

func (c *Collection[T]) notFound(id uint64) error {
	return fmt.Errorf("%w: %s record %d", store.ErrNotFound, c.table, id)
}

func (c *Collection[T]) decode(rowID uint64, doc string) (T, error) {
	var zero T
	rec, err := codec.Deserialize[T]([]byte(doc))
	if err != nil {
		return zero, fmt.Errorf("%s record %d: %w", c.table, rowID, err)
	}
	if got := rec.Metadata().ID; got != rowID {
		sqllog.Warn("row id does not match document id", "table", c.table, "row_id", rowID, "json_id", got)
		return zero, fmt.Errorf("%w: %s row id %d does not match document id %d", store.ErrInternal, c.table, rowID, got)
	}
	return rec, nil
}

func expectOneRow(res sql.Result, table string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected on %q: %w", table, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %d rows affected on %q", store.ErrInternal, n, table)
	}
	return nil
}
