package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a conditional transition's precondition did not
	// hold (duplicate creation, or the row already left the expected state).
	ErrConflict = errors.New("repository: conflict")
)
