package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a structured error found while validating
// configuration. It names the offending field and, where possible, carries
// actionable suggestions.
type ValidationError struct {
	Field       string   `json:"field"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// DetailedError returns the error with its suggestions, one per line.
func (e ValidationError) DetailedError() string {
	parts := []string{e.Error()}
	for _, s := range e.Suggestions {
		parts = append(parts, "  - "+s)
	}
	return strings.Join(parts, "\n")
}

// ValidationErrors collects multiple validation failures so callers see
// everything wrong with a configuration at once.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Error implements the error interface for the collection.
func (ve *ValidationErrors) Error() string {
	switch len(ve.Errors) {
	case 0:
		return "no configuration errors"
	case 1:
		return ve.Errors[0].Error()
	default:
		return fmt.Sprintf("%d configuration errors: %s (and %d more)",
			len(ve.Errors), ve.Errors[0].Error(), len(ve.Errors)-1)
	}
}

// HasErrors returns true if there are any errors in the collection.
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// Add appends a validation error to the collection.
func (ve *ValidationErrors) Add(field, message string, suggestions ...string) {
	ve.Errors = append(ve.Errors, ValidationError{
		Field:       field,
		Message:     message,
		Suggestions: suggestions,
	})
}
