package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-venstar/internal/bridges/venstar"
	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeDevice       = "device_error"
	ErrCodeTimeout      = "timeout"
	ErrCodeUnavailable  = "service_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeBridgeError maps a bridge or translator error onto an HTTP response.
//
// Validation failures are the caller's fault (400), mode conflicts are 409,
// and anything the thermostat itself got wrong is reported as 502.
func writeBridgeError(w http.ResponseWriter, err error) {
	status, code := bridgeErrorStatus(err)
	writeError(w, status, code, err.Error())
}

func bridgeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, venstar.ErrUnknownDevice):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, thermostat.ErrInvalidCommand):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, thermostat.ErrUnsupportedInMode):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	case errors.Is(err, thermostat.ErrNetwork),
		errors.Is(err, thermostat.ErrMalformedSnapshot),
		errors.Is(err, venstar.ErrWriteRejected):
		return http.StatusBadGateway, ErrCodeDevice
	case errors.Is(err, venstar.ErrStopped):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
