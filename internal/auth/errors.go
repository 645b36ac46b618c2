package auth

import "errors"

var (
	// ErrConfig is returned for missing or unsafe signing configuration.
	ErrConfig = errors.New("invalid auth config")

	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated is returned when a request carries no valid access token.
	// Expired and malformed tokens are not distinguished.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotAuthorized is returned when a valid identity lacks the clerk role.
	ErrNotAuthorized = errors.New("not authorized")
)

// Refresh failure causes. The HTTP boundary collapses all of them into the
// same error payload; they exist so logs, metrics and tests can tell them apart.
var (
	ErrNoCookie         = errors.New("refresh cookie missing")
	ErrBadSignature     = errors.New("refresh token signature or format invalid")
	ErrExpired          = errors.New("refresh token expired")
	ErrIdentityNotFound = errors.New("refresh token identity not found")
	ErrVersionMismatch  = errors.New("refresh token version mismatch")
)

// RefreshOutcome returns a short label for a Refresh result, used as a
// metrics label and log field.
func RefreshOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoCookie):
		return "no_cookie"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrIdentityNotFound):
		return "identity_not_found"
	case errors.Is(err, ErrVersionMismatch):
		return "version_mismatch"
	default:
		return "store_error"
	}
}
