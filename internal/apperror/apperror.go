// Package apperror defines the error taxonomy shared by the server, the API
// client and the client-side core.
//
// Every failure a caller is expected to react to is one of the sentinels
// below, wrapped in an *AppError that carries a human-readable message.
// Callers branch with errors.Is; the HTTP layer maps each sentinel to a
// status code and a stable machine-readable code, and the API client maps
// them back, so a Forbidden raised on the server is a Forbidden on the
// client too.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUnauthenticated means there is no credential, or it expired.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotAMember is distinct from every role. Callers treat it as
	// "deny everything".
	ErrNotAMember = errors.New("not a member")

	// ErrAlreadyMember is returned when adding a (project, email) pair that
	// already exists. The caller should change the role instead.
	ErrAlreadyMember = errors.New("already a member")

	// ErrInvariant marks an impossible enumerated value. It is a bug in the
	// producer of the data, not a user mistake.
	ErrInvariant = errors.New("invariant violation")

	// ErrRemote wraps a failed call to the API itself: network errors, 5xx,
	// or a 4xx that has no better classification. Never retried.
	ErrRemote = errors.New("remote failure")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated returns an AppError for a missing, expired or revoked
// credential. HTTP handlers map this to 401.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

func NotAMember(projectID, email string) *AppError {
	return &AppError{
		Err:     ErrNotAMember,
		Message: fmt.Sprintf("%s is not a member of project %s", email, projectID),
	}
}

func AlreadyMember(projectID, email string) *AppError {
	return &AppError{
		Err:     ErrAlreadyMember,
		Message: fmt.Sprintf("%s is already a member of project %s", email, projectID),
	}
}

// Invariant reports an enumerated value outside its closed set.
func Invariant(format string, args ...any) *AppError {
	return &AppError{
		Err:     ErrInvariant,
		Message: fmt.Sprintf(format, args...),
	}
}

// Remote wraps a failed API round-trip. The cause stays reachable through
// errors.Is/As on the returned error.
func Remote(op string, cause error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrRemote, cause),
		Message: fmt.Sprintf("%s: %v", op, cause),
	}
}
