package core

import (
	"errors"
	"fmt"
)

// NotFoundError reports an unknown record id. It maps to a 404 response and
// is never retried.
type NotFoundError struct {
	ID int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("record %d not found", e.ID)
}

// ValidationError reports malformed caller input, such as an empty manual
// account handle or a raw payload entry missing required fields.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

// StoreUnavailableError wraps a failure to reach the record store. Writes
// are single-record atomic, so callers may retry the whole operation
// without worrying about partial effects.
type StoreUnavailableError struct {
	Err error
}

func (e StoreUnavailableError) Error() string {
	return "record store unavailable: " + e.Err.Error()
}

func (e StoreUnavailableError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
