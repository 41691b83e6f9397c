package application

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the acting member lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a status precondition failed against the
	// current persisted state. Callers should re-read and retry.
	ErrConflict = errors.New("application: conflict")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// DependencyError blocks a hard delete when execution artifacts reference the
// instance. It is never auto-resolved by cascading; the caller must take an
// explicit alternate action (cancel instead of delete).
type DependencyError struct {
	InstanceID string
	Reason     string
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("instance %s has recorded execution dependencies: %s", e.InstanceID, e.Reason)
}
