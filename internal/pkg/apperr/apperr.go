// Package apperr defines the error classes every service reports so the HTTP
// layer can tell "not allowed" from "not possible right now".
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not_found")
	ErrForbidden  = errors.New("forbidden")
	// ErrTransient marks infrastructure failures. Only these are worth retrying.
	ErrTransient = errors.New("temporarily unavailable")
)

// Policy is a business rule violation with a stable, user-displayable code.
type Policy struct {
	Code    string
	Message string
}

func NewPolicy(code, message string) *Policy {
	return &Policy{Code: code, Message: message}
}

func (e *Policy) Error() string {
	return e.Code
}

// Is matches any Policy carrying the same code.
func (e *Policy) Is(target error) bool {
	t, ok := target.(*Policy)
	return ok && t.Code == e.Code
}

// AsPolicy unwraps err into a Policy if it is one.
func AsPolicy(err error) (*Policy, bool) {
	var p *Policy
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}

// Validation wraps ErrValidation with a field-level message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Transient wraps an infrastructure error as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
