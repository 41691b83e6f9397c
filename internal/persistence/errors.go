package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a create collides with an existing
	// record identifier.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConflict is returned when a conditional write's status
	// precondition no longer matches the persisted record.
	ErrConflict = errors.New("persistence: conflict")
)
