package utils

import (
	"encoding/json"
	"net/http"
)

const (
	// UnauthorizedMessage is the only message a rejected caller ever sees
	UnauthorizedMessage = "Authentication required"
	// InternalErrorMessage is the only message an unexpected failure ever shows
	InternalErrorMessage = "An internal error occurred"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with optional data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteUnauthorized writes a 401 Unauthorized response
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	if message == "" {
		message = UnauthorizedMessage
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="deploy-service"`)
	return WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
		Code:    "unauthorized",
		Message: message,
	})
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return WriteJSON(w, http.StatusNotFound, ErrorResponse{
		Code:    "not_found",
		Message: message,
	})
}

// WriteMethodNotAllowed writes a 405 Method Not Allowed response
func WriteMethodNotAllowed(w http.ResponseWriter) error {
	return WriteJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Code:    "method_not_allowed",
		Message: "Method not allowed",
	})
}

// WriteInternalServerError writes a 500 Internal Server Error response.
// The message is fixed so no failure detail reaches the caller.
func WriteInternalServerError(w http.ResponseWriter) error {
	return WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Code:    "internal_error",
		Message: InternalErrorMessage,
	})
}

// WriteError writes an error response based on the status code
func WriteError(w http.ResponseWriter, status int, message string, details map[string]interface{}) error {
	if status == http.StatusInternalServerError {
		return WriteInternalServerError(w)
	}

	return WriteJSON(w, status, ErrorResponse{
		Code:    ErrorCode(status),
		Message: message,
		Details: details,
	})
}

// ErrorCode returns the machine-readable code for an HTTP error status
func ErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limit_exceeded"
	case http.StatusBadGateway:
		return "bad_gateway"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}
