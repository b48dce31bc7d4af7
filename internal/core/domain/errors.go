package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrStorage      = errors.New("storage failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
)

// ErrDocumentNotFound is the NotFound kind specialised for documents; it
// matches ErrNotFound under errors.Is.
var ErrDocumentNotFound = fmt.Errorf("document %w", ErrNotFound)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// Forbidden builds an authorization error carrying a user-facing reason.
func Forbidden(operation, reason string) error {
	return WrapError(ErrForbidden, operation, errors.New(reason))
}

// Invalid builds a validation error carrying a user-facing reason.
func Invalid(operation, reason string) error {
	return WrapError(ErrInvalidInput, operation, errors.New(reason))
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
