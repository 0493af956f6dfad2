package registry

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTabID    = errors.New("invalid tab id")
	ErrDuplicateTabID  = errors.New("duplicate tab id")
	ErrInvalidTime     = errors.New("invalid timestamp")
	ErrInvalidCount    = errors.New("invalid count")
	ErrInvalidStrategy = errors.New("invalid capture strategy")
	ErrInvalidMode     = errors.New("invalid unseen-tab mode")
	ErrInvalidSetting  = errors.New("invalid setting")
	ErrNotEmpty        = errors.New("registry is not empty")
)

// ValidationError reports malformed input. A state that failed validation
// must not be persisted.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %v: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, value any, err error) error {
	return &ValidationError{Field: field, Value: value, Err: err}
}

// IsValidation reports whether err came from input validation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
