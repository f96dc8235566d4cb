package validate

import "fmt"

// FieldError annotates a validation failure with the offending field, for
// building precise user-facing messages. Label is the human-readable name;
// Key is the input key.
type FieldError struct {
	Key   string
	Label string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("socialtoolkit/validate: %s (%s): %v", e.Label, e.Key, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Element declares one schema field. A Required element must be present in
// the input; an optional element falls back to Default when absent, or is
// omitted from the output when Default is nil.
type Element struct {
	Key       string
	Label     string
	Validator Validator
	Required  bool
	Default   any
}

// Schema is an ordered field list. Order matters: validation stops at the
// first failing element (later fields are not inspected), so callers get
// deterministic error reporting.
type Schema struct {
	Elements []Element
}

// Filter validates input against the schema and returns the filtered
// output map. Unknown input keys are dropped silently. The first failure —
// a missing required field or a value its validator rejects — aborts with
// *FieldError.
func (s Schema) Filter(input map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.Elements))
	for _, el := range s.Elements {
		v, present := input[el.Key]
		if !present || v == nil {
			if el.Required {
				return nil, &FieldError{
					Key: el.Key, Label: el.Label,
					Err: Errorf("required value is missing"),
				}
			}
			if el.Default != nil {
				out[el.Key] = el.Default
			}
			continue
		}
		norm, err := el.Validator.Filter(v)
		if err != nil {
			return nil, &FieldError{Key: el.Key, Label: el.Label, Err: err}
		}
		out[el.Key] = norm
	}
	return out, nil
}
