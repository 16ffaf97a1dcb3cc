package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the admin domain layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
)

// RespondError maps domain errors onto the failure envelope. Unrecognized
// errors become an opaque internal error; their detail stays in the logs.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Error(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrDuplicate):
		Error(w, http.StatusConflict, "DUPLICATE", err.Error(), nil)
	case errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ErrForbidden):
		Error(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
