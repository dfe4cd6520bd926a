// Package apperr holds the error taxonomy shared by every service. Kinds are
// sentinel errors; *Error adds a machine-readable code and a user-facing
// message and unwraps to its kind so callers can use errors.Is.
package apperr

import "errors"

// ─── Kinds ───────────────────────────────────────────────────────────────────

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidState   = errors.New("invalid state")
	ErrValidation     = errors.New("validation failed")
	ErrCapacity       = errors.New("capacity reached")
	ErrAlreadyApplied = errors.New("already applied")
)

// ─── Error ───────────────────────────────────────────────────────────────────

// Error is a domain error with a stable code.
type Error struct {
	Kind   error
	Code   string
	Msg    string
	Fields map[string]string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// NotFound builds an ErrNotFound error for the named resource.
func NotFound(resource string) *Error {
	return &Error{Kind: ErrNotFound, Code: "NOT_FOUND", Msg: resource + " not found"}
}

// Forbidden builds an ErrForbidden error.
func Forbidden(code, msg string) *Error {
	return &Error{Kind: ErrForbidden, Code: code, Msg: msg}
}

// InvalidState builds an ErrInvalidState error.
func InvalidState(code, msg string) *Error {
	return &Error{Kind: ErrInvalidState, Code: code, Msg: msg}
}

// Capacity builds an ErrCapacity error.
func Capacity(code, msg string) *Error {
	return &Error{Kind: ErrCapacity, Code: code, Msg: msg}
}

// AlreadyApplied builds an ErrAlreadyApplied error.
func AlreadyApplied(msg string) *Error {
	return &Error{Kind: ErrAlreadyApplied, Code: "ALREADY_APPLIED", Msg: msg}
}

// Validation builds an ErrValidation error carrying per-field messages.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: ErrValidation, Code: "VALIDATION_FAILED", Msg: "validation failed", Fields: fields}
}

// CodeOf returns the code of err when it is an *Error, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
