package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Session — one dedicated connection for the duration of one request
// ─────────────────────────────────────────────────────────────────────────────

// Session pins a single connection out of the pool and runs every statement
// on it. Row locks and transaction state are connection-scoped in every
// supported engine, so all locked fetches belonging to one unit of work MUST
// go through the same Session.
//
// A Session carries the transaction nesting counter: the outermost
// InTransaction call opens a real transaction, nested calls create named
// savepoints. Sessions are not goroutine-safe — one request, one Session,
// one goroutine.
type Session struct {
	conn   *sql.Conn
	db     *DB
	hooks  hookChain
	errMap ErrorMapper

	// depth is the current transaction nesting level. 0 = no transaction.
	depth int
}

// Session checks a connection out of the pool. The caller MUST Close() it
// to return the connection, typically with defer at the top of a request.
func (d *DB) Session(ctx context.Context) (*Session, error) {
	conn, err := d.sqldb.Conn(ctx)
	if err != nil {
		return nil, d.mapErr(err)
	}
	return &Session{conn: conn, db: d, hooks: d.hooks, errMap: d.errMap}, nil
}

// Close returns the connection to the pool. Safe to call once.
func (s *Session) Close() error { return s.conn.Close() }

// Dialect returns the SQL dialect of the underlying database.
func (s *Session) Dialect() Dialect { return s.db.dialect }

// Depth reports the current transaction nesting level (0 = autocommit).
func (s *Session) Depth() int { return s.depth }

// Exec executes a statement that does not return rows.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = s.db.applyDefaultTimeout(ctx)
	start := time.Now()
	s.hooks.Before(ctx, query, args)
	res, err := s.conn.ExecContext(ctx, query, args...)
	err = s.mapErr(err)
	s.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// Query executes a query returning rows. The caller MUST close *sql.Rows.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx = s.db.applyDefaultTimeout(ctx)
	start := time.Now()
	s.hooks.Before(ctx, query, args)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	err = s.mapErr(err)
	s.hooks.After(ctx, query, args, time.Since(start), err)
	return rows, err
}

// QueryRow executes a query expected to return at most one row.
func (s *Session) QueryRow(ctx context.Context, query string, args ...any) *Row {
	ctx = s.db.applyDefaultTimeout(ctx)
	start := time.Now()
	s.hooks.Before(ctx, query, args)
	raw := s.conn.QueryRowContext(ctx, query, args...)
	s.hooks.After(ctx, query, args, time.Since(start), nil)
	return &Row{raw: raw, errMap: s.errMap}
}

// Prepare creates a prepared statement bound to the session connection.
func (s *Session) Prepare(ctx context.Context, query string) (*Stmt, error) {
	st, err := s.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return &Stmt{stmt: st, query: query, hooks: s.hooks, errMap: s.errMap}, nil
}

func (s *Session) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return s.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// InTransaction — reentrant transaction with savepoint nesting
// ─────────────────────────────────────────────────────────────────────────────

// InTransaction runs fn inside a transaction on the session connection.
//
// At nesting depth 0 a real transaction is opened and committed (or rolled
// back when fn returns an error or panics). At depth n > 0 a savepoint
// LEVEL_n is created instead: released on success, rolled back to on
// failure. An inner failure that the caller catches therefore does NOT
// poison the outer transaction, while an error propagated to the outermost
// call unwinds everything.
//
// The depth counter is restored in a deferred block on every exit path, so
// reentrancy survives panics thrown from arbitrarily deep nesting.
func (s *Session) InTransaction(ctx context.Context, fn func() error) (err error) {
	level := s.depth
	if level == 0 {
		_, err = s.Exec(ctx, "BEGIN")
	} else {
		_, err = s.Exec(ctx, fmt.Sprintf("SAVEPOINT LEVEL_%d", level))
	}
	if err != nil {
		return err
	}

	s.depth++
	defer func() { s.depth-- }()

	defer func() {
		if p := recover(); p != nil {
			_ = s.unwind(ctx, level)
			panic(p) // re-panic after rollback
		}
	}()

	if err = fn(); err != nil {
		if rbErr := s.unwind(ctx, level); rbErr != nil {
			err = fmt.Errorf("socialtoolkit/db: rollback failed (%v) after original error: %w", rbErr, err)
		}
		return err
	}

	if level == 0 {
		_, err = s.Exec(ctx, "COMMIT")
	} else {
		_, err = s.Exec(ctx, fmt.Sprintf("RELEASE SAVEPOINT LEVEL_%d", level))
	}
	return err
}

// unwind rolls back to the state at the given nesting level.
func (s *Session) unwind(ctx context.Context, level int) error {
	var err error
	if level == 0 {
		_, err = s.Exec(ctx, "ROLLBACK")
	} else {
		_, err = s.Exec(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT LEVEL_%d", level))
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Querier — the shared interface accepted by repositories
// ─────────────────────────────────────────────────────────────────────────────

// Querier is the minimal interface shared by *DB and *Session.
// Repository code that needs no locks or transactions can accept Querier
// and work against either.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Prepare(ctx context.Context, query string) (*Stmt, error)
}

// Verify at compile-time that both *DB and *Session satisfy Querier.
var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Session)(nil)
)
