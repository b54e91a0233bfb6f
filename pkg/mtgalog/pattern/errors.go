package pattern

import "fmt"

// ValidationError represents a schema-level validation error: the pattern
// file as a whole violates a structural requirement.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// PatternError represents an error in an individual pattern (invalid
// regex, duplicate ID, missing field).
type PatternError struct {
	Index   int    // 0-based index of the pattern in the file
	ID      string // pattern ID, may be empty when the ID field is missing
	Field   string
	Message string
	Cause   error
}

func (e *PatternError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("pattern %q: %s: %s", e.ID, e.Field, e.Message)
	}
	return fmt.Sprintf("pattern[%d]: %s: %s", e.Index, e.Field, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *PatternError) Unwrap() error {
	return e.Cause
}
