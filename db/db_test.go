// db/db_test.go — unit tests for the storage toolkit.
// Uses an in-memory SQLite database; no external services required.
//
// Run:  go test ./db/... -v -race
package db_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Skryldev/social-toolkit/db"
	_ "github.com/mattn/go-sqlite3"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

// newTestDB opens a named in-memory database with shared cache so that the
// pool and any Session connections all see the same data.
func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	d, err := db.Open(db.Config{
		DSN:        fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		DriverName: "sqlite3",
		Hooks: []db.Hook{
			db.NewLogHook(db.LogHookConfig{LogArgs: true}),
		},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS accounts (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			handle  TEXT NOT NULL UNIQUE,
			balance INTEGER NOT NULL DEFAULT 0
		)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return d
}

func newTestSession(t *testing.T, d *db.DB) *db.Session {
	t.Helper()
	s, err := d.Session(context.Background())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func countHandles(t *testing.T, q db.Querier, handle string) int {
	t.Helper()
	var n int
	err := q.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM accounts WHERE handle = $1`, handle).Scan(&n)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Open / Ping
// ─────────────────────────────────────────────────────────────────────────────

func TestOpen(t *testing.T) {
	d := newTestDB(t)
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	if _, err := db.Open(db.Config{DSN: "", DriverName: "sqlite3"}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := db.Open(db.Config{DSN: ":memory:"}); err == nil {
		t.Fatal("expected error for empty DriverName")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Exec / QueryRow
// ─────────────────────────────────────────────────────────────────────────────

func TestExec_Insert(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	res, err := d.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "alice")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		t.Fatalf("expected 1 row affected, got %d", n)
	}
}

func TestQueryRow_NotFound(t *testing.T) {
	d := newTestDB(t)

	var handle string
	err := d.QueryRow(context.Background(),
		`SELECT handle FROM accounts WHERE id = $1`, 99999).Scan(&handle)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExec_DuplicateKey_ConstraintName(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	if _, err := d.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "bob"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := d.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "bob")
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if got := db.ConstraintName(err); got != "accounts.handle" {
		t.Fatalf("expected constraint accounts.handle, got %q", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Session — transaction commit / rollback
// ─────────────────────────────────────────────────────────────────────────────

func TestSession_Commit(t *testing.T) {
	d := newTestDB(t)
	s := newTestSession(t, d)
	ctx := context.Background()

	err := s.InTransaction(ctx, func() error {
		_, err := s.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "dave")
		return err
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.Depth() != 0 {
		t.Fatalf("depth not restored: %d", s.Depth())
	}
	if n := countHandles(t, s, "dave"); n != 1 {
		t.Fatalf("expected 1 committed row, got %d", n)
	}
}

func TestSession_RollbackOnError(t *testing.T) {
	d := newTestDB(t)
	s := newTestSession(t, d)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTransaction(ctx, func() error {
		if _, err := s.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "eve"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := countHandles(t, s, "eve"); n != 0 {
		t.Fatalf("expected rollback, found %d rows", n)
	}
}

func TestSession_RollbackOnPanic(t *testing.T) {
	d := newTestDB(t)
	s := newTestSession(t, d)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = s.InTransaction(ctx, func() error {
			_, _ = s.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "mallory")
			panic("kaboom")
		})
	}()

	if s.Depth() != 0 {
		t.Fatalf("depth not restored after panic: %d", s.Depth())
	}
	if n := countHandles(t, s, "mallory"); n != 0 {
		t.Fatalf("expected rollback after panic, found %d rows", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Session — nested transactions via savepoints
// ─────────────────────────────────────────────────────────────────────────────

// Caught inner failure leaves the outer unit committable: write A, fail a
// nested write of B (caught), write C, commit — A and C persist, B does not.
func TestSession_NestedInnerFailureCaught(t *testing.T) {
	d := newTestDB(t)
	s := newTestSession(t, d)
	ctx := context.Background()

	err := s.InTransaction(ctx, func() error {
		if _, err := s.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "a"); err != nil {
			return err
		}

		inner := s.InTransaction(ctx, func() error {
			if _, err := s.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "b"); err != nil {
				return err
			}
			return errors.New("inner failure")
		})
		if inner == nil {
			return errors.New("expected inner failure")
		}

		_, err := s.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "c")
		return err
	})
	if err != nil {
		t.Fatalf("outer commit: %v", err)
	}

	for handle, want := range map[string]int{"a": 1, "b": 0, "c": 1} {
		if got := countHandles(t, s, handle); got != want {
			t.Fatalf("handle %q: expected %d rows, got %d", handle, want, got)
		}
	}
}

// Propagated inner failure unwinds everything back to the outermost call.
func TestSession_NestedInnerFailurePropagated(t *testing.T) {
	d := newTestDB(t)
	s := newTestSession(t, d)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTransaction(ctx, func() error {
		if _, err := s.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "outer"); err != nil {
			return err
		}
		return s.InTransaction(ctx, func() error {
			if _, err := s.Exec(ctx, `INSERT INTO accounts (handle) VALUES ($1)`, "nested"); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	for _, handle := range []string{"outer", "nested"} {
		if got := countHandles(t, s, handle); got != 0 {
			t.Fatalf("handle %q: expected rollback, got %d rows", handle, got)
		}
	}
}

func TestSession_DepthTracksNesting(t *testing.T) {
	d := newTestDB(t)
	s := newTestSession(t, d)
	ctx := context.Background()

	err := s.InTransaction(ctx, func() error {
		if s.Depth() != 1 {
			t.Fatalf("expected depth 1, got %d", s.Depth())
		}
		return s.InTransaction(ctx, func() error {
			if s.Depth() != 2 {
				t.Fatalf("expected depth 2, got %d", s.Depth())
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("nested commit: %v", err)
	}
	if s.Depth() != 0 {
		t.Fatalf("expected depth 0 after commit, got %d", s.Depth())
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Dialects
// ─────────────────────────────────────────────────────────────────────────────

func TestDialect_Rebind(t *testing.T) {
	my := db.DialectFor("mysql")
	got := my.Rebind(`SELECT * FROM t WHERE a = $1 AND b = $12 OR c = '$'`)
	want := `SELECT * FROM t WHERE a = ? AND b = ? OR c = '$'`
	if got != want {
		t.Fatalf("rebind: got %q want %q", got, want)
	}

	pg := db.DialectFor("postgres")
	if q := pg.Rebind(`SELECT $1`); q != `SELECT $1` {
		t.Fatalf("postgres rebind should be identity, got %q", q)
	}

	lite := db.DialectFor("sqlite3")
	if q := lite.Rebind(`SELECT $1, $2`); q != `SELECT ?, ?` {
		t.Fatalf("sqlite rebind: got %q", q)
	}
}

func TestDialect_LockClauses(t *testing.T) {
	cases := []struct {
		driver string
		mode   db.LockMode
		want   string
	}{
		{"mysql", db.LockShare, "LOCK IN SHARE MODE"},
		{"mysql", db.LockUpdate, "FOR UPDATE"},
		{"postgres", db.LockShare, "FOR SHARE"},
		{"postgres", db.LockUpdate, "FOR UPDATE"},
		{"sqlite3", db.LockUpdate, ""},
		{"sqlite3", db.LockNone, ""},
	}
	for _, c := range cases {
		if got := db.DialectFor(c.driver).LockClause(c.mode); got != c.want {
			t.Fatalf("%s mode %d: got %q want %q", c.driver, c.mode, got, c.want)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping from foreign driver message formats
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapper_MySQLDuplicateMessage(t *testing.T) {
	raw := errors.New("Error 1062 (23000): Duplicate entry 'bob' for key 'users.username'")
	mapped := db.DefaultErrorMapper().Map(raw)
	if !db.IsDuplicateKey(mapped) {
		t.Fatalf("expected ErrDuplicateKey, got %v", mapped)
	}
	if got := db.ConstraintName(mapped); got != "users.username" {
		t.Fatalf("expected key users.username, got %q", got)
	}
}

func TestErrorMapper_PostgresDuplicateMessage(t *testing.T) {
	raw := errors.New(`pq: duplicate key value violates unique constraint "users_email_key" (SQLSTATE 23505)`)
	mapped := db.DefaultErrorMapper().Map(raw)
	if !db.IsDuplicateKey(mapped) {
		t.Fatalf("expected ErrDuplicateKey, got %v", mapped)
	}
	if got := db.ConstraintName(mapped); got != "users_email_key" {
		t.Fatalf("expected constraint users_email_key, got %q", got)
	}
}

func TestErrorMapper_DoesNotDoubleWrap(t *testing.T) {
	raw := errors.New("UNIQUE constraint failed: accounts.handle")
	once := db.DefaultErrorMapper().Map(raw)
	twice := db.DefaultErrorMapper().Map(once)
	if once != twice {
		t.Fatal("mapped error was re-wrapped")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Hooks
// ─────────────────────────────────────────────────────────────────────────────

func TestStatsHook(t *testing.T) {
	stats := db.NewStatsHook()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	d, err := db.Open(db.Config{
		DSN:        fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		DriverName: "sqlite3",
		Hooks:      []db.Hook{stats},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	if _, err := d.Exec(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("ddl: %v", err)
	}
	_, _ = d.Exec(ctx, `INSERT INTO missing (id) VALUES (1)`) // deliberate failure

	if stats.Queries() < 2 {
		t.Fatalf("expected at least 2 recorded queries, got %d", stats.Queries())
	}
	if stats.Errors() != 1 {
		t.Fatalf("expected exactly 1 recorded error, got %d", stats.Errors())
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// WithRetry
// ─────────────────────────────────────────────────────────────────────────────

func TestWithRetry_EventualSuccess(t *testing.T) {
	attempts := 0
	err := db.WithRetry(context.Background(), db.RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		RetryOn:     func(error) bool { return true },
	}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_NonRetryableStopsEarly(t *testing.T) {
	attempts := 0
	fatal := errors.New("fatal")
	err := db.WithRetry(context.Background(), db.RetryConfig{
		MaxAttempts: 5,
		Delay:       time.Millisecond,
	}, func() error {
		attempts++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}
