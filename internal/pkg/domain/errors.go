package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a domain error for transport mapping.
type ErrorCode string

const (
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeInternal     ErrorCode = "INTERNAL"
)

// Error is a domain error carrying a machine-readable code.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewValidationError creates an error for malformed or out-of-range input.
func NewValidationError(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// NewInvalidStateError creates a validation error naming an illegal status transition.
func NewInvalidStateError(from, to string) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf("invalid status transition from %q to %q", from, to)}
}

// NewConflictError creates an error for interval overlaps and stale writes.
func NewConflictError(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// NewNotFoundError creates an error for an absent or inaccessible entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewForbiddenError creates an error for an ownership or role violation.
func NewForbiddenError(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// NewUnauthorizedError creates an error for a missing or invalid credential.
func NewUnauthorizedError(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// CodeOf extracts the error code, defaulting to CodeInternal for unknown errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }
