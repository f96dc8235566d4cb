// Package validate checks and normalizes untrusted input before it reaches
// the entity managers. Validators are value-level filters; Schema composes
// them per field with required/default handling and first-failure
// reporting.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Error reports a value that failed validation. The message is
// human-readable and safe to surface to the caller.
type Error struct {
	Message string
}

func (e *Error) Error() string { return "socialtoolkit/validate: " + e.Message }

// Errorf builds an Error with a formatted message.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Validator filters one value: it returns the normalized form, or an error
// (always *Error) describing why the value is unacceptable.
type Validator interface {
	Filter(v any) (any, error)
}

// Known string formats.
const (
	FormatEmail = "email"
	FormatSlug  = "slug"
	FormatURL   = "url"
)

// Format patterns are matched against the FULL string: a valid substring
// inside garbage must not pass.
var formatPatterns = map[string]*regexp.Regexp{
	FormatEmail: regexp.MustCompile(`\A[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+\z`),
	FormatSlug:  regexp.MustCompile(`\A[a-z0-9]+(?:-[a-z0-9]+)*\z`),
	FormatURL:   regexp.MustCompile(`\Ahttps?://[^\s/$.?#].[^\s]*\z`),
}

// ─────────────────────────────────────────────────────────────────────────────
// String
// ─────────────────────────────────────────────────────────────────────────────

// String validates text. Scalar input (numbers, booleans) is coerced to its
// text form first; anything non-scalar fails. Length bounds count runes.
// Pattern and Format, when set, must each match the entire string.
type String struct {
	AllowEmpty bool
	MinLength  int
	MaxLength  int // 0 = unbounded
	Pattern    *regexp.Regexp
	Format     string
}

func (sv String) Filter(v any) (any, error) {
	s, ok := asText(v)
	if !ok {
		return nil, Errorf("expected text, got %T", v)
	}
	if s == "" {
		if sv.AllowEmpty {
			return "", nil
		}
		return nil, Errorf("value must not be empty")
	}
	n := len([]rune(s))
	if n < sv.MinLength {
		return nil, Errorf("value is shorter than %d characters", sv.MinLength)
	}
	if sv.MaxLength > 0 && n > sv.MaxLength {
		return nil, Errorf("value is longer than %d characters", sv.MaxLength)
	}
	if sv.Format != "" {
		p, known := formatPatterns[sv.Format]
		if !known {
			return nil, Errorf("unknown format %q", sv.Format)
		}
		if !p.MatchString(s) {
			return nil, Errorf("value is not a valid %s", sv.Format)
		}
	}
	if sv.Pattern != nil && !fullMatch(sv.Pattern, s) {
		return nil, Errorf("value has an invalid form")
	}
	return s, nil
}

// fullMatch requires the pattern to consume the whole input, regardless of
// whether it was written with anchors.
func fullMatch(p *regexp.Regexp, s string) bool {
	loc := p.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// ─────────────────────────────────────────────────────────────────────────────
// Integer
// ─────────────────────────────────────────────────────────────────────────────

// Integer validates whole numbers. Numeric strings are parsed; non-integral
// numerics (1.5) fail even though they are numbers. Bounds are inclusive
// and optional.
type Integer struct {
	Min *int64
	Max *int64
}

func (iv Integer) Filter(v any) (any, error) {
	n, ok := asInt64(v)
	if !ok {
		return nil, Errorf("expected a whole number, got %v", v)
	}
	if iv.Min != nil && n < *iv.Min {
		return nil, Errorf("value is below %d", *iv.Min)
	}
	if iv.Max != nil && n > *iv.Max {
		return nil, Errorf("value is above %d", *iv.Max)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Boolean
// ─────────────────────────────────────────────────────────────────────────────

// Boolean validates truth values: booleans, the integers 0/1, and the
// case-insensitive strings true/on/1 and false/off/0.
type Boolean struct{}

func (Boolean) Filter(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(x) {
		case "true", "on", "1":
			return true, nil
		case "false", "off", "0":
			return false, nil
		}
	case int, int32, int64:
		// Only true integer types: a float 1.0 is not a truth value.
		if n, ok := asInt64(v); ok && (n == 0 || n == 1) {
			return n == 1, nil
		}
	}
	return nil, Errorf("expected a boolean, got %v", v)
}

// ─────────────────────────────────────────────────────────────────────────────
// Enum
// ─────────────────────────────────────────────────────────────────────────────

// Enum validates strict membership in a fixed value set.
type Enum struct {
	Values []string
}

func (ev Enum) Filter(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, Errorf("expected one of %v, got %T", ev.Values, v)
	}
	for _, allowed := range ev.Values {
		if s == allowed {
			return s, nil
		}
	}
	return nil, Errorf("value %q is not one of %v", s, ev.Values)
}

// ─────────────────────────────────────────────────────────────────────────────
// List
// ─────────────────────────────────────────────────────────────────────────────

// List validates a sequence. Slice input is used as-is; string input is
// split on Separator (and fails when no separator is configured). Every
// element passes Of when set; the first failing element aborts. Duplicates
// after filtering are rejected when RejectDuplicates is set.
type List struct {
	Separator        string
	TrimElements     bool
	RejectDuplicates bool
	Of               Validator
}

func (lv List) Filter(v any) (any, error) {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case string:
		if lv.Separator == "" {
			return nil, Errorf("expected a list, got a plain string")
		}
		for _, piece := range strings.Split(x, lv.Separator) {
			items = append(items, piece)
		}
	default:
		return nil, Errorf("expected a list, got %T", v)
	}

	out := make([]any, 0, len(items))
	for i, item := range items {
		if lv.TrimElements {
			if s, ok := item.(string); ok {
				item = strings.TrimSpace(s)
			}
		}
		if lv.Of != nil {
			norm, err := lv.Of.Filter(item)
			if err != nil {
				return nil, Errorf("element %d: %v", i, err)
			}
			item = norm
		}
		out = append(out, item)
	}

	if lv.RejectDuplicates {
		seen := make(map[string]struct{}, len(out))
		for _, item := range out {
			key := fmt.Sprint(item)
			if _, dup := seen[key]; dup {
				return nil, Errorf("list contains duplicate value %v", item)
			}
			seen[key] = struct{}{}
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Coercion
// ─────────────────────────────────────────────────────────────────────────────

func asText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case string:
		p, err := strconv.ParseInt(n, 10, 64)
		return p, err == nil
	}
	return 0, false
}

// compile-time interface checks
var (
	_ Validator = String{}
	_ Validator = Integer{}
	_ Validator = Boolean{}
	_ Validator = Enum{}
	_ Validator = List{}
)
