package model

import (
	"errors"
	"fmt"
)

// Error kinds. Wrap them with %w so callers can classify failures with errors.Is.
var (
	ErrValidation        = errors.New("invalid input")
	ErrDependencyMissing = errors.New("dependency missing")
	ErrRender            = errors.New("rendering failed")
	ErrPDF               = errors.New("unable to generate PDF")
	ErrAuthentication    = errors.New("authentication required")
	ErrNotFound          = errors.New("not found")
)

// Validationf returns an input validation error
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf returns a not-found error
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
