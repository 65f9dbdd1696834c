package types

import (
	"fmt"
	"strings"
)

// FieldError describes one field that failed shape validation when
// decoding an externally supplied JSON payload (LLM output).
type FieldError struct {
	Field    string      // dotted/indexed path, e.g. "candidates[0].spans"
	Expected string      // what was expected, e.g. "array of span objects"
	Actual   interface{} // what was found
	Message  string      // human-readable description
}

// FieldErrors collects every FieldError found while validating one
// payload, so a caller can report all problems at once instead of
// failing on the first.
type FieldErrors struct {
	Errors []FieldError
}

// Add appends a new field error to the collection.
func (v *FieldErrors) Add(field, expected string, actual interface{}, msg string) {
	v.Errors = append(v.Errors, FieldError{
		Field:    field,
		Expected: expected,
		Actual:   actual,
		Message:  msg,
	})
}

// HasErrors reports whether any field errors were recorded.
func (v *FieldErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface with a terse summary.
func (v *FieldErrors) Error() string {
	if !v.HasErrors() {
		return "no validation errors"
	}

	if len(v.Errors) == 1 {
		e := v.Errors[0]
		return fmt.Sprintf("field %s: %s", e.Field, e.Message)
	}

	return fmt.Sprintf("%d field errors, first: %s: %s", len(v.Errors), v.Errors[0].Field, v.Errors[0].Message)
}

// Report renders every field error as a multi-line, field-by-field
// message suitable for surfacing alongside an ExternalError.
func (v *FieldErrors) Report() string {
	if !v.HasErrors() {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("decoding failed with %d error(s):\n\n", len(v.Errors)))

	for i, err := range v.Errors {
		sb.WriteString(fmt.Sprintf("%d. Field: %s\n", i+1, err.Field))
		sb.WriteString(fmt.Sprintf("   Expected: %s\n", err.Expected))
		sb.WriteString(fmt.Sprintf("   Found: %v\n", formatActual(err.Actual)))
		sb.WriteString(fmt.Sprintf("   Fix: %s\n", err.Message))

		if i < len(v.Errors)-1 {
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// formatActual formats the actual value for display
func formatActual(actual interface{}) string {
	if actual == nil {
		return "null"
	}

	switch v := actual.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []string:
		if len(v) == 0 {
			return "[]"
		}
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		return fmt.Sprintf("%v", actual)
	}
}
