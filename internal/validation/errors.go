package validation

import (
	"fmt"
	"strings"
)

// ValidationError reports one field that failed validation, with the
// offending value and the recorded rejection reason.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%q)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every field failure from one request, so a
// caller can fix them all in a single round trip.
type ValidationErrors []*ValidationError

// Add records a field failure.
func (e *ValidationErrors) Add(field, value, message string) {
	*e = append(*e, &ValidationError{Field: field, Value: value, Message: message})
}

// HasErrors reports whether any field failed.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Error implements the error interface over the collected failures.
func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ve := range e {
		msgs = append(msgs, ve.Error())
	}
	return strings.Join(msgs, "; ")
}
