package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/content"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/registration"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/senml"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/tlv"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeNotFound          = "not_found"
	ErrCodeInternal          = "internal_error"
	ErrCodeValidation        = "validation_error"
	ErrCodeMalformed         = "malformed_payload"
	ErrCodeUnsupportedFormat = "unsupported_format"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeForbidden         = "forbidden"
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
	w.Header().Set("WWW-Authenticate", `Bearer realm="lwm2md"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps directory, schema and codec errors to responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registration.ErrDeviceNotFound),
		errors.Is(err, content.ErrUnknownObject),
		errors.Is(err, schema.ErrObjectNotFound),
		errors.Is(err, content.ErrUnknownResource):
		writeNotFound(w, err.Error())
	case errors.Is(err, registration.ErrMissingEndpoint),
		errors.Is(err, registration.ErrInvalidParams),
		errors.Is(err, content.ErrInvalidPath):
		writeBadRequest(w, err.Error())
	case errors.Is(err, content.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, ErrCodeUnsupportedFormat, err.Error())
	case errors.Is(err, schema.ErrValidation):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, tlv.ErrMalformedTLV),
		errors.Is(err, tlv.ErrValueTooLarge),
		errors.Is(err, senml.ErrInvalidPayload),
		errors.Is(err, senml.ErrSchemaMismatch):
		writeError(w, http.StatusBadRequest, ErrCodeMalformed, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
