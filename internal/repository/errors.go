package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique constraint (the user email) was violated.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrConflict indicates a compare-and-swap precondition no longer held when the write ran.
	ErrConflict = errors.New("repository: conflict")
)
