package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sentinel errors
// ─────────────────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when a query matches no rows.
	ErrNotFound = errors.New("socialtoolkit/db: record not found")

	// ErrDuplicateKey is returned on unique constraint violations.
	ErrDuplicateKey = errors.New("socialtoolkit/db: duplicate key")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("socialtoolkit/db: foreign key violation")

	// ErrDeadlock is returned when the database detects a deadlock.
	ErrDeadlock = errors.New("socialtoolkit/db: deadlock detected")

	// ErrTimeout is returned when a statement exceeds its deadline.
	ErrTimeout = errors.New("socialtoolkit/db: query timeout")

	// ErrCheckViolation is returned when a CHECK constraint is violated.
	ErrCheckViolation = errors.New("socialtoolkit/db: check constraint violation")

	// ErrConnectionFailed is returned when the driver cannot reach the server.
	ErrConnectionFailed = errors.New("socialtoolkit/db: connection failed")
)

// ─────────────────────────────────────────────────────────────────────────────
// Error helpers — use errors.Is() for type-safe checks
// ─────────────────────────────────────────────────────────────────────────────

func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsDuplicateKey(err error) bool        { return errors.Is(err, ErrDuplicateKey) }
func IsForeignKeyViolation(err error) bool { return errors.Is(err, ErrForeignKeyViolation) }
func IsDeadlock(err error) bool            { return errors.Is(err, ErrDeadlock) }
func IsTimeout(err error) bool             { return errors.Is(err, ErrTimeout) }
func IsCheckViolation(err error) bool      { return errors.Is(err, ErrCheckViolation) }

// ─────────────────────────────────────────────────────────────────────────────
// DBError — rich error type preserving the original driver error
// ─────────────────────────────────────────────────────────────────────────────

// DBError wraps a sentinel error with the original driver error so callers
// can either use errors.Is(err, ErrDuplicateKey) for simple checks or
// inspect the raw driver error for additional context.
//
// For unique-constraint violations Constraint carries the name of the
// violated key as reported by the driver (e.g. "users.username" on SQLite,
// the key name on MySQL, the constraint name on PostgreSQL). One layer up
// uses this to decide WHICH uniqueness rule failed, not just that one did.
type DBError struct {
	// Sentinel is one of the package-level Err* variables.
	Sentinel error
	// Cause is the original driver error.
	Cause error
	// Constraint is the violated constraint/key name, when the driver
	// reports one. Empty otherwise.
	Constraint string
}

func (e *DBError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s: constraint %q (cause: %v)", e.Sentinel, e.Constraint, e.Cause)
	}
	return fmt.Sprintf("%s (cause: %v)", e.Sentinel, e.Cause)
}

func (e *DBError) Is(target error) bool { return errors.Is(e.Sentinel, target) }
func (e *DBError) Unwrap() error        { return e.Cause }

// ConstraintName extracts the violated constraint name from a mapped error.
// Returns "" when err is not a *DBError or no constraint was reported.
func ConstraintName(err error) string {
	var dbe *DBError
	if errors.As(err, &dbe) {
		return dbe.Constraint
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// ErrorMapper interface — pluggable per driver
// ─────────────────────────────────────────────────────────────────────────────

// ErrorMapper translates raw driver errors into the toolkit's sentinel
// errors. Implement this interface to add support for a new driver.
type ErrorMapper interface {
	Map(err error) error
}

// ErrorMapperFunc is a convenience adapter from a function to ErrorMapper.
type ErrorMapperFunc func(error) error

func (f ErrorMapperFunc) Map(err error) error { return f(err) }

// ─────────────────────────────────────────────────────────────────────────────
// Default mapper — covers PostgreSQL (lib/pq + pgx), MySQL, SQLite
// ─────────────────────────────────────────────────────────────────────────────

// DefaultErrorMapper returns a mapper that handles the supported drivers.
// Extend by wrapping it with ChainMapper.
func DefaultErrorMapper() ErrorMapper {
	return ErrorMapperFunc(defaultMap)
}

func defaultMap(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &DBError{Sentinel: ErrNotFound, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	}

	// Already mapped — do not double-wrap.
	var dbe *DBError
	if errors.As(err, &dbe) {
		return err
	}

	if mapped := mapPostgresError(err); mapped != nil {
		return mapped
	}
	if mapped := mapMySQLError(err); mapped != nil {
		return mapped
	}
	if mapped := mapSQLiteError(err); mapped != nil {
		return mapped
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL mapping (lib/pq and pgx, matched without hard driver imports)
// ─────────────────────────────────────────────────────────────────────────────

func mapPostgresError(err error) error {
	// pgx v5 exposes SQLSTATE via a SQLState() method, lib/pq only in the
	// formatted message. The constraint name appears in the message for
	// both: `... unique constraint "users_username_key"`.
	code := ""
	type stater interface{ SQLState() string }
	var st stater
	if errors.As(err, &st) {
		code = st.SQLState()
	} else {
		code = pgCodeFromString(err.Error())
	}
	if code == "" {
		return nil
	}
	mapped := mapByPGCode(code, err)
	if mapped == nil {
		return nil
	}
	if dbe, ok := mapped.(*DBError); ok && errors.Is(dbe.Sentinel, ErrDuplicateKey) {
		dbe.Constraint = between(err.Error(), `constraint "`, `"`)
	}
	return mapped
}

func pgCodeFromString(s string) string {
	// lib/pq formats: "pq: ERROR: message (SQLSTATE XXXXX)"
	const marker = "(SQLSTATE "
	idx := strings.LastIndex(s, marker)
	if idx < 0 {
		return ""
	}
	rest := s[idx+len(marker):]
	if end := strings.Index(rest, ")"); end >= 0 {
		return rest[:end]
	}
	return rest
}

// PostgreSQL SQLSTATE codes: https://www.postgresql.org/docs/current/errcodes-appendix.html
func mapByPGCode(code string, cause error) error {
	switch code {
	case "23505": // unique_violation
		return &DBError{Sentinel: ErrDuplicateKey, Cause: cause}
	case "23503": // foreign_key_violation
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: cause}
	case "23514": // check_violation
		return &DBError{Sentinel: ErrCheckViolation, Cause: cause}
	case "40P01": // deadlock_detected
		return &DBError{Sentinel: ErrDeadlock, Cause: cause}
	case "57014": // query_canceled (statement_timeout)
		return &DBError{Sentinel: ErrTimeout, Cause: cause}
	case "08000", "08003", "08006", "08001", "08004", "08007", "08P01":
		return &DBError{Sentinel: ErrConnectionFailed, Cause: cause}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL mapping
// ─────────────────────────────────────────────────────────────────────────────

func mapMySQLError(err error) error {
	number, msg, ok := mysqlNumber(err)
	if !ok {
		return nil
	}
	switch number {
	case 1062: // ER_DUP_ENTRY: "Duplicate entry 'x' for key 'users.username'"
		return &DBError{
			Sentinel:   ErrDuplicateKey,
			Cause:      err,
			Constraint: between(msg, "for key '", "'"),
		}
	case 1452, 1216, 1217: // ER_NO_REFERENCED_ROW, ER_ROW_IS_REFERENCED
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
	case 1213: // ER_LOCK_DEADLOCK
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	case 1205, 3024: // ER_LOCK_WAIT_TIMEOUT, ER_QUERY_TIMEOUT
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	case 1045, 2002, 2003, 2006, 2013:
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}

// mysqlNumber pulls the error number out of a go-sql-driver error without
// importing the driver: structural match on the exported Number() first,
// then the "Error 1062 (23000): msg" message format.
func mysqlNumber(err error) (uint16, string, bool) {
	type numbered interface{ Number() uint16 }
	var n numbered
	if errors.As(err, &n) {
		return n.Number(), err.Error(), true
	}
	s := err.Error()
	const prefix = "Error "
	if !strings.HasPrefix(s, prefix) {
		return 0, "", false
	}
	rest := s[len(prefix):]
	end := strings.IndexAny(rest, " (:")
	if end <= 0 {
		return 0, "", false
	}
	var num uint16
	for i := 0; i < end; i++ {
		c := rest[i]
		if c < '0' || c > '9' {
			return 0, "", false
		}
		num = num*10 + uint16(c-'0')
	}
	return num, s, true
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite mapping (string-based, driver doesn't export typed errors here)
// ─────────────────────────────────────────────────────────────────────────────

func mapSQLiteError(err error) error {
	s := err.Error()
	switch {
	case strings.Contains(s, "UNIQUE constraint failed"):
		return &DBError{
			Sentinel:   ErrDuplicateKey,
			Cause:      err,
			Constraint: sqliteConstraint(s),
		}
	case strings.Contains(s, "FOREIGN KEY constraint failed"):
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
	case strings.Contains(s, "CHECK constraint failed"):
		return &DBError{Sentinel: ErrCheckViolation, Cause: err}
	case strings.Contains(s, "database is locked"):
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	}
	return nil
}

// sqliteConstraint extracts "users.username" (or the comma-joined column
// list for composite keys) from "UNIQUE constraint failed: users.username".
func sqliteConstraint(s string) string {
	const marker = "UNIQUE constraint failed: "
	idx := strings.Index(s, marker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(s[idx+len(marker):])
}

// between returns the text after the last occurrence of open up to the
// following close marker, or "".
func between(s, open, close string) string {
	idx := strings.LastIndex(s, open)
	if idx < 0 {
		return ""
	}
	rest := s[idx+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// ─────────────────────────────────────────────────────────────────────────────
// ChainMapper — compose multiple mappers (first match wins)
// ─────────────────────────────────────────────────────────────────────────────

// ChainMapper returns an ErrorMapper that tries each mapper in order,
// returning the first remapped error. Unmapped errors pass through.
func ChainMapper(mappers ...ErrorMapper) ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		if err == nil {
			return nil
		}
		for _, m := range mappers {
			if mapped := m.Map(err); mapped != err {
				return mapped
			}
		}
		return err
	})
}
