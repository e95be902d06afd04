package usecase

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated indicates the request carries no usable identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the principal may not act on the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound covers absent and soft-deleted resources alike.
	ErrNotFound = errors.New("not found")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness violation such as a taken username.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates the identifier or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled indicates the account was deactivated.
	ErrAccountDisabled = errors.New("account is disabled")
	// ErrTokenInvalid indicates a malformed, forged or unverifiable token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired indicates a token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked indicates the token was logged out or rotated.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenStale indicates the token predates a credential or role change.
	ErrTokenStale = errors.New("token issued before credentials changed")
	// ErrTooManyAttempts is returned when a one-time code is exhausted.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrFeatureUnavailable indicates an optional collaborator is not configured.
	ErrFeatureUnavailable = errors.New("feature unavailable")
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string
	Message string
	Value   any
}

// ValidationError aggregates field level input errors.
type ValidationError struct {
	Message string
	Details []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Details) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, fmt.Sprintf("%s: %s", d.Field, d.Message))
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError names the field whose value is already taken.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// fieldErrors collects validation failures across a whole input.
type fieldErrors struct {
	details []FieldError
}

func (f *fieldErrors) add(field, message string, value any) {
	f.details = append(f.details, FieldError{Field: field, Message: message, Value: value})
}

func (f *fieldErrors) err() error {
	if len(f.details) == 0 {
		return nil
	}
	return &ValidationError{Message: "validation failed", Details: f.details}
}

func invalidField(field, message string, value any) error {
	return &ValidationError{
		Message: "validation failed",
		Details: []FieldError{{Field: field, Message: message, Value: value}},
	}
}
