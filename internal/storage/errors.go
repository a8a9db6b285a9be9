package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record or key does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when an optimistic update kept losing to concurrent writers.
	ErrConflict = errors.New("storage: too many concurrent updates")
)
