package httpx

import (
	"errors"
	"net/http"

	"github.com/atlas-erp/atlas-access/internal/shared"
)

// RespondError maps access-control denials to HTTP responses. Denial errors
// surface their own titles; anything unrecognised is an internal fault and
// returns an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrTokenMalformed),
		errors.Is(err, shared.ErrTokenInvalid),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrSessionInvalid),
		errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrInsufficientRole),
		errors.Is(err, shared.ErrPermissionDenied):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrInvalidCode):
		Problem(w, http.StatusBadRequest, "Invalid Code", err.Error())
	case errors.Is(err, shared.ErrTooManyAttempts):
		Problem(w, http.StatusTooManyRequests, "Too Many Attempts", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
