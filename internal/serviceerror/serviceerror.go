// Package serviceerror carries the coded errors returned by the domain services.
package serviceerror

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a referenced record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks input rejected by validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict marks a write rejected because of existing state.
	ErrConflict = errors.New("conflict")
)

// ServiceError pairs a stable "<operation>.<reason>" code with its cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

// Cause returns the wrapped error, or nil.
func (e *ServiceError) Cause() error {
	return e.err
}

// New builds a ServiceError with the code "<operation>.<reason>".
func New(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// NotFound wraps ErrNotFound with a descriptive message.
func NotFound(operation, reason, format string, args ...any) error {
	return New(operation, reason, fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...)))
}

// Invalid wraps ErrInvalidInput with a descriptive message.
func Invalid(operation, reason, format string, args ...any) error {
	return New(operation, reason, fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...)))
}

// CodeOf extracts the service error code from err, if any.
func CodeOf(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}

// Conflict wraps ErrConflict with a descriptive message.
func Conflict(operation, reason, format string, args ...any) error {
	return New(operation, reason, fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...)))
}
