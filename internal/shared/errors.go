package shared

import "errors"

var (
	// ErrNotFound indicates the target user or its role cannot be resolved.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the acting user may not edit the target user.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStoreUnavailable indicates the permission store could not be reached.
	ErrStoreUnavailable = errors.New("permission store unavailable")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps internal errors to text safe to show an operator.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested user could not be found."
	case errors.Is(err, ErrPermissionDenied):
		return "You are not allowed to edit this user."
	case errors.Is(err, ErrStoreUnavailable):
		return "The permission store is temporarily unavailable. Try again."
	case errors.Is(err, ErrInvalidCredentials):
		return "Email or password is incorrect."
	default:
		return "Something went wrong. Try again."
	}
}
