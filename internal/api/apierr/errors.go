package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nicpaesk/killer-game/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeInvalidState   = "INVALID_STATE"
	CodeConflict       = "CONFLICT"
	CodeReclaimFailed  = "RECLAIM_FAILED"
	CodeInternalError  = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var de *model.Error
	if !errors.As(err, &de) {
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}

	switch de.Kind {
	case model.KindValidation:
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, de.Message}}
	case model.KindNotFound:
		return &httpError{http.StatusNotFound, APIError{CodeNotFound, de.Message}}
	case model.KindUnauthorized:
		// A missing or stale session is 401; a valid one lacking rights is 403
		if errors.Is(err, model.ErrNotCreator) {
			return &httpError{http.StatusForbidden, APIError{CodeForbidden, de.Message}}
		}
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, de.Message}}
	case model.KindInvalidState:
		return &httpError{http.StatusConflict, APIError{CodeInvalidState, de.Message}}
	case model.KindConflict:
		return &httpError{http.StatusConflict, APIError{CodeConflict, de.Message}}
	case model.KindReclaimFailed:
		return &httpError{http.StatusUnauthorized, APIError{CodeReclaimFailed, de.Message}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
