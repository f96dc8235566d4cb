// Package repo implements the entity managers and the social operations on
// top of them. A manager owns one table: it builds the SQL for that table
// from the entity schema, scans rows into models snapshots, and converts
// storage failures into domain errors. The Social type composes managers
// into the multi-entity operations (follow, like, comment, report) that
// keep the denormalized counters consistent under row locks.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Skryldev/social-toolkit/db"
	"github.com/Skryldev/social-toolkit/models"
)

// Manager runs the CRUD lifecycle for one entity table. All methods take a
// *db.Session: locked fetches and transactions are connection-scoped, so
// the caller owns exactly one session per unit of work.
type Manager[E models.Entity] struct {
	schema models.Schema
	build  func(models.Row) (E, error)
}

// NewManager builds a manager for a table from its schema and row
// constructor.
func NewManager[E models.Entity](schema models.Schema, build func(models.Row) (E, error)) *Manager[E] {
	return &Manager[E]{schema: schema, build: build}
}

// Schema returns the table layout the manager operates on.
func (m *Manager[E]) Schema() models.Schema { return m.schema }

// ─────────────────────────────────────────────────────────────────────────────
// SQL assembly
// ─────────────────────────────────────────────────────────────────────────────
//
// Queries are built with $N placeholders and rebound per dialect. Column and
// table names always go through QuoteIdent: several schema columns (user,
// type, status) collide with keywords in at least one engine.

func (m *Manager[E]) columnList(d db.Dialect) string {
	quoted := make([]string, len(m.schema.Columns))
	for i, c := range m.schema.Columns {
		quoted[i] = d.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// sortedKeys gives the data map a stable column order, so the same logical
// write always produces the same SQL text.
func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Manager[E]) checkColumns(op string, keys []string) error {
	for _, k := range keys {
		if !m.schema.Has(k) {
			return models.Operationf(op, "column %q is not part of table %q", k, m.schema.Table)
		}
	}
	return nil
}

// scanRow reads the current *sql.Rows position into a Row keyed by the
// result's column names.
func scanRow(rows *sql.Rows) (models.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(models.Row, len(cols))
	for i, c := range cols {
		row[c] = vals[i]
	}
	return row, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Insert writes a new row and returns its identifier. Unique-key violations
// come back as the storage layer's duplicate error; callers that can name
// the violated column classify it further.
func (m *Manager[E]) Insert(ctx context.Context, s *db.Session, data map[string]any) (int64, error) {
	keys := sortedKeys(data)
	if err := m.checkColumns("insert", keys); err != nil {
		return 0, err
	}
	d := s.Dialect()

	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = d.QuoteIdent(k)
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = data[k]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(m.schema.Table), strings.Join(cols, ", "), strings.Join(marks, ", "))

	if d.SupportsReturning() {
		query += " RETURNING " + d.QuoteIdent(m.schema.ID)
		var id int64
		if err := s.QueryRow(ctx, d.Rebind(query), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := s.Exec(ctx, d.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return 0, models.Operationf("insert", "table %q: insert affected %d rows", m.schema.Table, n)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Create inserts a row and re-reads it inside one transaction, returning
// the stored snapshot. A successful insert that cannot be re-read is an
// invariant break.
func (m *Manager[E]) Create(ctx context.Context, s *db.Session, data map[string]any) (E, error) {
	var ent E
	err := s.InTransaction(ctx, func() error {
		id, err := m.Insert(ctx, s, data)
		if err != nil {
			return err
		}
		ent, err = m.FetchDirectly(ctx, s, id, m.schema.ID, db.LockNone)
		if err != nil {
			return err
		}
		if isZero(ent) {
			return models.Operationf("create", "table %q: inserted row %d not found on re-read", m.schema.Table, id)
		}
		return nil
	})
	if err != nil {
		var zero E
		return zero, err
	}
	return ent, nil
}

// UpdateLocked writes the given columns on a row the caller already holds a
// write lock on. The caller's snapshot is stale afterwards; re-fetch to
// observe the new state.
func (m *Manager[E]) UpdateLocked(ctx context.Context, s *db.Session, ent E, data map[string]any) error {
	keys := sortedKeys(data)
	if err := m.checkColumns("update", keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	d := s.Dialect()

	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = $%d", d.QuoteIdent(k), i+1)
		args = append(args, data[k])
	}
	args = append(args, ent.PrimaryKey())

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		d.QuoteIdent(m.schema.Table), strings.Join(sets, ", "),
		d.QuoteIdent(m.schema.ID), len(keys)+1)

	res, err := s.Exec(ctx, d.Rebind(query), args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return models.Operationf("update", "table %q: update of row %d affected %d rows",
			m.schema.Table, ent.PrimaryKey(), n)
	}
	return nil
}

// Update locks the row, writes the given columns, and returns the fresh
// snapshot, all inside one transaction. Returns the storage layer's
// not-found error when the row does not exist.
func (m *Manager[E]) Update(ctx context.Context, s *db.Session, id int64, data map[string]any) (E, error) {
	var ent E
	err := s.InTransaction(ctx, func() error {
		locked, err := m.FetchDirectly(ctx, s, id, m.schema.ID, db.LockUpdate)
		if err != nil {
			return err
		}
		if isZero(locked) {
			return db.ErrNotFound
		}
		if err := m.UpdateLocked(ctx, s, locked, data); err != nil {
			return err
		}
		ent, err = m.FetchDirectly(ctx, s, id, m.schema.ID, db.LockNone)
		return err
	})
	if err != nil {
		var zero E
		return zero, err
	}
	return ent, nil
}

// DeleteLocked removes a row the caller holds a write lock on.
func (m *Manager[E]) DeleteLocked(ctx context.Context, s *db.Session, ent E) error {
	d := s.Dialect()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		d.QuoteIdent(m.schema.Table), d.QuoteIdent(m.schema.ID))
	res, err := s.Exec(ctx, d.Rebind(query), ent.PrimaryKey())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return models.Operationf("delete", "table %q: delete of row %d affected %d rows",
			m.schema.Table, ent.PrimaryKey(), n)
	}
	return nil
}

// IncrementLockedField adds step (which may be negative) to an integer
// column of a locked row. The new value is computed from the snapshot the
// lock was taken with, so concurrent writers serialize on the row lock
// rather than racing on read-modify-write.
func (m *Manager[E]) IncrementLockedField(ctx context.Context, s *db.Session, ent E, field string, step int64) error {
	raw, ok := ent.Field(field)
	if !ok {
		return models.Operationf("increment", "table %q row %d has no field %q",
			m.schema.Table, ent.PrimaryKey(), field)
	}
	cur, ok := models.AsInt64(raw)
	if !ok {
		return models.Operationf("increment", "table %q column %q: %T is not an integer",
			m.schema.Table, field, raw)
	}
	return m.UpdateLocked(ctx, s, ent, map[string]any{field: cur + step})
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// FetchDirectly fetches at most one row by a single column value, with the
// requested lock strength. Absence is not an error: the zero entity and a
// nil error come back, and the caller decides whether absence matters.
func (m *Manager[E]) FetchDirectly(ctx context.Context, s *db.Session, value any, field string, lock db.LockMode) (E, error) {
	return m.FetchBy(ctx, s, []string{field}, []any{value}, lock)
}

// FetchBy fetches at most one row matching every given field. A nil value
// matches IS NULL. Absence returns the zero entity and a nil error.
func (m *Manager[E]) FetchBy(ctx context.Context, s *db.Session, fields []string, values []any, lock db.LockMode) (E, error) {
	var zero E
	if len(fields) != len(values) {
		return zero, models.Operationf("fetch", "table %q: %d fields but %d values",
			m.schema.Table, len(fields), len(values))
	}
	if err := m.checkColumns("fetch", fields); err != nil {
		return zero, err
	}
	d := s.Dialect()

	conds := make([]string, len(fields))
	args := make([]any, 0, len(values))
	n := 0
	for i, f := range fields {
		if values[i] == nil {
			conds[i] = d.QuoteIdent(f) + " IS NULL"
			continue
		}
		n++
		conds[i] = fmt.Sprintf("%s = $%d", d.QuoteIdent(f), n)
		args = append(args, values[i])
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 1",
		m.columnList(d), d.QuoteIdent(m.schema.Table), strings.Join(conds, " AND "))
	if clause := d.LockClause(lock); clause != "" {
		query += " " + clause
	}

	rows, err := s.Query(ctx, d.Rebind(query), args...)
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	if !rows.Next() {
		return zero, rows.Err()
	}
	row, err := scanRow(rows)
	if err != nil {
		return zero, err
	}
	return m.build(row)
}

// List fetches up to limit rows ordered by identifier, starting at offset.
func (m *Manager[E]) List(ctx context.Context, s *db.Session, limit, offset int64) ([]E, error) {
	d := s.Dialect()
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT $1 OFFSET $2",
		m.columnList(d), d.QuoteIdent(m.schema.Table), d.QuoteIdent(m.schema.ID))

	rows, err := s.Query(ctx, d.Rebind(query), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []E
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		ent, err := m.build(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	return out, rows.Err()
}

// Count returns the number of rows in the table.
func (m *Manager[E]) Count(ctx context.Context, s *db.Session) (int64, error) {
	d := s.Dialect()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(m.schema.Table))
	var n int64
	if err := s.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// isZero reports whether the entity is the type's zero value, i.e. a typed
// nil pointer for every concrete entity kind.
func isZero[E models.Entity](ent E) bool {
	var zero E
	return any(ent) == any(zero)
}

// now is the single clock for created/modified stamps. Stored in UTC,
// truncated to microseconds so round-trips through every driver compare
// equal.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
