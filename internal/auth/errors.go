package auth

import "errors"

// Expected, user-facing outcomes. Each is caught at the request boundary and
// turned into a flash + redirect or a 403; none propagates as a fault.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// Callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrAccountInactive means the credentials were correct but the account
	// was never activated.
	ErrAccountInactive = errors.New("auth: account not activated")

	// ErrInvalidOrExpiredToken is returned for a wrong, expired or already
	// consumed activation/reset token, indistinguishably.
	ErrInvalidOrExpiredToken = errors.New("auth: invalid or expired token")

	// ErrForbidden: authenticated but lacking the required permission.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrUnauthenticated: no session or an unreadable one.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrCsrfMismatch: missing or wrong csrf_token on a state-changing request.
	ErrCsrfMismatch = errors.New("auth: csrf token mismatch")

	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")
)

// ValidationError carries field-level messages for malformed form input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "auth: validation failed"
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}
