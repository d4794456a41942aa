package httpx

import (
	"errors"
	"net/http"

	"github.com/parleyhq/parley/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status := StatusFor(err)
	Problem(w, status, titleFor(status), shared.UserSafeMessage(err))
}

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func titleFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusServiceUnavailable:
		return "Store Unavailable"
	default:
		return "Internal Error"
	}
}
