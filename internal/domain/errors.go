package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateCheck is returned by a CheckRepository when the (habit, day)
// pair already holds a check.
var ErrDuplicateCheck = errors.New("check already exists for day")

// ValidationError reports an invalid field supplied by the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NotFoundError reports an operation on an entity that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}
