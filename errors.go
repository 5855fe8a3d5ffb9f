package livetree

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Persist that has no record under
	// the requested key.
	ErrNotFound = errors.New("not found")

	// ErrTransient matches failures that may succeed if retried, such as
	// a persistence medium that is full or unreachable.
	ErrTransient = errors.New("transient failure")

	// ErrInvalidRoot is returned when writing something other than a
	// Node or Null at the root.
	ErrInvalidRoot = errors.New("root must be a node")

	// ErrInvalidValue is returned for values that cannot be stored,
	// such as NaN.
	ErrInvalidValue = errors.New("invalid value")

	// ErrClosed is returned by mutations on a closed Store.
	ErrClosed = errors.New("store closed")
)

// PersistenceError reports that a snapshot could not be written to (or
// read from) the persistence medium. The in-memory tree keeps the
// mutation regardless, so the caller may retry.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is makes every PersistenceError match ErrTransient.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrTransient
}
