package db

import "strings"

// ─────────────────────────────────────────────────────────────────────────────
// LockMode — row-lock strength for locked fetches
// ─────────────────────────────────────────────────────────────────────────────

// LockMode selects the lock acquired by a SELECT. The lock is held for the
// duration of the enclosing transaction.
type LockMode int

const (
	// LockNone is a plain read with no lock.
	LockNone LockMode = iota
	// LockShare acquires a shared (read) lock: other readers may also lock
	// the row, writers block.
	LockShare
	// LockUpdate acquires an exclusive (write) lock: all other lockers block.
	LockUpdate
)

// ─────────────────────────────────────────────────────────────────────────────
// Dialect — per-engine SQL variation
// ─────────────────────────────────────────────────────────────────────────────

// Dialect captures the SQL syntax differences between supported engines so
// that query-building code stays engine-agnostic. Queries are written with
// PostgreSQL-style $N placeholders and rebound where necessary.
type Dialect interface {
	// Name is the dialect identifier ("postgres", "mysql", "sqlite3").
	Name() string

	// QuoteIdent quotes a table or column identifier.
	QuoteIdent(name string) string

	// Rebind converts $N placeholders into the engine's native form.
	Rebind(query string) string

	// LockClause returns the trailing lock clause for a SELECT, or "" when
	// the engine needs none for the given mode.
	LockClause(mode LockMode) string

	// SupportsReturning reports whether INSERT ... RETURNING id is available.
	// Engines without it hand back ids via the driver's LastInsertId.
	SupportsReturning() bool
}

// DialectFor resolves a Dialect from a database/sql driver name.
// Unknown names fall back to the PostgreSQL dialect.
func DialectFor(driverName string) Dialect {
	switch driverName {
	case "mysql":
		return mysqlDialect{}
	case "sqlite3":
		return sqliteDialect{}
	case "postgres", "pgx":
		return postgresDialect{}
	}
	return postgresDialect{}
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL
// ─────────────────────────────────────────────────────────────────────────────

type postgresDialect struct{}

func (postgresDialect) Name() string                 { return "postgres" }
func (postgresDialect) QuoteIdent(name string) string { return `"` + name + `"` }
func (postgresDialect) Rebind(query string) string   { return query }
func (postgresDialect) SupportsReturning() bool      { return true }

func (postgresDialect) LockClause(mode LockMode) string {
	switch mode {
	case LockShare:
		return "FOR SHARE"
	case LockUpdate:
		return "FOR UPDATE"
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL
// ─────────────────────────────────────────────────────────────────────────────

type mysqlDialect struct{}

func (mysqlDialect) Name() string                 { return "mysql" }
func (mysqlDialect) QuoteIdent(name string) string { return "`" + name + "`" }
func (mysqlDialect) SupportsReturning() bool      { return false }

// Rebind replaces $N placeholders with MySQL's positional ?.
// Arguments must already be in placeholder order — the builders in this
// module always emit $1..$N sequentially.
func (mysqlDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] != '$' || i+1 >= len(query) || !isDigit(query[i+1]) {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte('?')
		for i+1 < len(query) && isDigit(query[i+1]) {
			i++
		}
	}
	return b.String()
}

func (mysqlDialect) LockClause(mode LockMode) string {
	switch mode {
	case LockShare:
		return "LOCK IN SHARE MODE"
	case LockUpdate:
		return "FOR UPDATE"
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite
// ─────────────────────────────────────────────────────────────────────────────

type sqliteDialect struct{}

func (sqliteDialect) Name() string                 { return "sqlite3" }
func (sqliteDialect) QuoteIdent(name string) string { return `"` + name + `"` }
func (sqliteDialect) SupportsReturning() bool      { return false }

// Rebind replaces $N with ?: SQLite would otherwise read $N as a named
// parameter rather than a positional one.
func (sqliteDialect) Rebind(query string) string { return mysqlDialect{}.Rebind(query) }

// LockClause is always empty: SQLite serializes writers at the database
// level, so row locks have nothing to add.
func (sqliteDialect) LockClause(LockMode) string { return "" }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
