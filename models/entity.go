// Package models holds the typed row snapshots of the social backend.
//
// Every entity is an immutable view over one database row: constructed from
// a scanned Row, never written back. All mutation goes through the repo
// layer, which re-reads storage and hands back a fresh snapshot.
package models

import (
	"fmt"
	"strconv"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// OperationError — internal invariant violation
// ─────────────────────────────────────────────────────────────────────────────

// OperationError reports an impossible state: a row missing schema columns,
// an insert that affected zero rows, a re-read after create that found
// nothing. It is never expected in correct operation and is surfaced as an
// internal failure, not user feedback.
type OperationError struct {
	Op      string
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("socialtoolkit: %s: %s", e.Op, e.Message)
}

// Operationf builds an OperationError with a formatted message.
func Operationf(op, format string, args ...any) *OperationError {
	return &OperationError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// ─────────────────────────────────────────────────────────────────────────────
// Schema / Row
// ─────────────────────────────────────────────────────────────────────────────

// Schema is the fixed column layout of one entity table. Exactly one column
// is the identifier.
type Schema struct {
	Table   string
	ID      string
	Columns []string
}

// Has reports whether col is part of the schema.
func (s Schema) Has(col string) bool {
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Row is a raw storage row: column name → driver value. Produced by the
// repo layer's scanner, consumed by the FromRow constructors.
type Row map[string]any

// ─────────────────────────────────────────────────────────────────────────────
// Entity — the shared contract
// ─────────────────────────────────────────────────────────────────────────────

// Entity is the contract every typed snapshot satisfies.
type Entity interface {
	// PrimaryKey returns the identifier value of the underlying row.
	PrimaryKey() int64
	// Field returns the raw stored value of a column by name. Used where
	// by-name access is genuinely needed (counter increments); typed
	// accessors are preferred everywhere else.
	Field(name string) (any, bool)
}

// Base carries the source row and is embedded by every entity kind.
type Base struct {
	row Row
}

// Field returns the raw stored value for name.
func (b *Base) Field(name string) (any, bool) {
	v, ok := b.row[name]
	return v, ok
}

func (b *Base) bind(r Row) { b.row = r }

// ─────────────────────────────────────────────────────────────────────────────
// reader — coercing field extraction with first-error capture
// ─────────────────────────────────────────────────────────────────────────────

// reader pulls typed values out of a Row against a schema. The first
// failure (absent column, uncoercible value, null identifier) is retained;
// constructors check Err() once after reading every field.
type reader struct {
	table string
	row   Row
	err   error
}

func newReader(table string, row Row) *reader {
	return &reader{table: table, row: row}
}

func (r *reader) Err() error { return r.err }

func (r *reader) raw(name string) (any, bool) {
	v, ok := r.row[name]
	if !ok && r.err == nil {
		r.err = Operationf("models", "row for table %q is missing column %q", r.table, name)
	}
	return v, ok
}

func (r *reader) fail(name, kind string, v any) {
	if r.err == nil {
		r.err = Operationf("models", "table %q column %q: cannot read %T as %s", r.table, name, v, kind)
	}
}

// id reads the identifier column; a null identifier is as fatal as a
// missing one.
func (r *reader) id(name string) int64 {
	v, ok := r.raw(name)
	if !ok {
		return 0
	}
	if v == nil {
		if r.err == nil {
			r.err = Operationf("models", "table %q identifier %q is null", r.table, name)
		}
		return 0
	}
	n, ok := AsInt64(v)
	if !ok {
		r.fail(name, "int64", v)
		return 0
	}
	return n
}

func (r *reader) str(name string) string {
	v, ok := r.raw(name)
	if !ok || v == nil {
		return ""
	}
	s, ok := asString(v)
	if !ok {
		r.fail(name, "string", v)
		return ""
	}
	return s
}

func (r *reader) integer(name string) int64 {
	v, ok := r.raw(name)
	if !ok || v == nil {
		return 0
	}
	n, ok := AsInt64(v)
	if !ok {
		r.fail(name, "int64", v)
		return 0
	}
	return n
}

func (r *reader) integerPtr(name string) *int64 {
	v, ok := r.raw(name)
	if !ok || v == nil {
		return nil
	}
	n, ok := AsInt64(v)
	if !ok {
		r.fail(name, "int64", v)
		return nil
	}
	return &n
}

func (r *reader) tim(name string) time.Time {
	v, ok := r.raw(name)
	if !ok || v == nil {
		return time.Time{}
	}
	t, ok := asTime(v)
	if !ok {
		r.fail(name, "time", v)
		return time.Time{}
	}
	return t
}

// ─────────────────────────────────────────────────────────────────────────────
// Value coercion from driver representations
// ─────────────────────────────────────────────────────────────────────────────

// AsInt64 coerces a driver value to int64. Floats are accepted only when
// integral; strings and []byte are parsed.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case []byte:
		p, err := strconv.ParseInt(string(n), 10, 64)
		return p, err == nil
	case string:
		p, err := strconv.ParseInt(n, 10, 64)
		return p, err == nil
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	}
	return "", false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case int64:
		return time.Unix(t, 0).UTC(), true
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
