// Package response defines the JSON envelope shared by every HTTP response and
// helpers for writing it from plain net/http handlers.
package response

import (
	"encoding/json/v2"
	"errors"
	"log/slog"
	"net/http"

	"github.com/listenupapp/catalog-server/internal/consistency"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
)

// Version is the envelope format version sent as "v".
const Version = 1

// Envelope wraps a successful response.
type Envelope struct {
	Version  int                   `json:"v"`
	Success  bool                  `json:"success"`
	Data     any                   `json:"data,omitempty"`
	Warnings []consistency.Warning `json:"warnings,omitempty"`
}

// ErrorEnvelope wraps a failed response.
type ErrorEnvelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	ErrorID string `json:"error_id,omitempty"`
}

// Success builds the envelope for data.
func Success(data any, warnings []consistency.Warning) Envelope {
	return Envelope{Version: Version, Success: true, Data: data, Warnings: warnings}
}

// Failure builds the error envelope for a coded error.
func Failure(code domainerrors.Code, message string, details any) ErrorEnvelope {
	return ErrorEnvelope{Version: Version, Code: string(code), Message: message, Details: details}
}

// JSON writes v with the given status code using json/v2.
func JSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.MarshalWrite(w, v); err != nil && logger != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// OK writes data in a success envelope with 200.
func OK(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, Success(data, nil), logger)
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, status int, code domainerrors.Code, message string, logger *slog.Logger) {
	JSON(w, status, Failure(code, message, nil), logger)
}

// HandleError writes err as an error envelope. Coded errors keep their status;
// anything else is reported as an internal error.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var de *domainerrors.Error
	if errors.As(err, &de) {
		JSON(w, de.HTTPStatus(), Failure(de.Code, de.Message, de.Details), logger)
		return
	}
	if logger != nil {
		logger.Error("unhandled error", "error", err)
	}
	Error(w, http.StatusInternalServerError, domainerrors.CodeInternal, "Internal server error", logger)
}

// NotFound writes a 404 for an unknown route.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	Error(w, http.StatusNotFound, domainerrors.CodeNotFound, "Route not found", nil)
}

// MethodNotAllowed writes a 405 for a known route with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	Error(w, http.StatusMethodNotAllowed, domainerrors.CodeValidation, "Method not allowed", nil)
}

// TooManyRequests writes a 429.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	JSON(w, http.StatusTooManyRequests, Failure(domainerrors.CodeRateLimited, message, nil), logger)
}
