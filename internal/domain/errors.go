package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

var (
	// ErrOverflow is returned when the id counter cannot be incremented.
	ErrOverflow = errors.New("record id counter overflow")
	// ErrArchived is returned by stores whose dataset lifetime has lapsed.
	ErrArchived = errors.New("dataset archived")
	// ErrForbidden is returned when the requester may not perform an action.
	ErrForbidden = errors.New("forbidden")
)
