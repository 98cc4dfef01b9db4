package models

import (
	"errors"
	"fmt"
)

// ErrInsufficientCapacity is returned when the target filesystem cannot hold the selection
var ErrInsufficientCapacity = errors.New("insufficient free space on target filesystem")

// PreconditionError reports a root that is missing, unreadable, or otherwise unusable.
// It is fatal: nothing is hashed or transferred.
type PreconditionError struct {
	Root string
	Err  error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for %s: %v", e.Root, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether err is, or wraps, a PreconditionError
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
