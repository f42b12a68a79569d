package shared

import "errors"

// Denial taxonomy for the access-control core. Every guarded request that is
// rejected maps to exactly one of these sentinels so that callers and the
// audit trail see the true cause.
var (
	// ErrTokenMalformed indicates the bearer token could not be parsed.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalid indicates the token signature did not verify.
	ErrTokenInvalid = errors.New("token signature invalid")
	// ErrTokenExpired indicates the token expiry claim is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionInvalid indicates the server-side session is revoked, expired or absent.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrInsufficientRole indicates the caller's role is not in the required set.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrPermissionDenied indicates the effective permission lacks the needed capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidCode indicates a one-time code mismatch.
	ErrInvalidCode = errors.New("invalid one-time code")
	// ErrTooManyAttempts indicates the one-time code attempt limit was reached.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
)

// DenyReason maps a denial error to the label recorded in the audit trail.
// Unrecognised errors are internal faults; they fail closed and are labelled
// as such rather than leaking details to the caller.
func DenyReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrSessionInvalid):
		return "session_invalid"
	case errors.Is(err, ErrInsufficientRole):
		return "insufficient_role"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "internal_error"
	}
}
