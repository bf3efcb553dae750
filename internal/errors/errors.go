package errors

import (
	"encoding/json"
	"net/http"
)

// Stable machine-readable error codes carried in API responses.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
)

// HTTPError is the error payload inside the response envelope.
type HTTPError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the JSON envelope written for every API error.
//
// The shape is part of the stable API contract; dashboard clients key off
// Error.Code, not the message text.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// WriteJSON writes an error envelope with the given status and code.
func WriteJSON(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
