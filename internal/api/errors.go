package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/http/response"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
	ErrorID string `json:"error_id,omitempty" doc:"Identifier of the logged failure, set on internal errors"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

func (e *APIError) envelope() response.ErrorEnvelope {
	env := response.Failure(domainerrors.Code(e.Code), e.Message, e.Details)
	env.ErrorID = e.ErrorID
	return env
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler(logger *slog.Logger) {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		return newAPIError(logger, status, message, errs...)
	}
}

// newAPIError converts whatever a handler or huma produced into an APIError.
// Domain errors keep their code. A 5xx cause is logged under a fresh error id
// and only the id reaches the client.
func newAPIError(logger *slog.Logger, status int, message string, errs ...error) *APIError {
	for _, err := range errs {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) && domainErr.Code != domainerrors.CodeInternal {
			return &APIError{
				status:  domainErr.HTTPStatus(),
				Code:    string(domainErr.Code),
				Message: domainErr.Message,
				Details: domainErr.Details,
			}
		}
	}

	if status >= http.StatusInternalServerError || status == 0 {
		return internalError(logger, errs)
	}

	apiErr := &APIError{status: status, Code: statusToCode(status), Message: message}
	if fields := fieldErrors(errs); len(fields) > 0 {
		apiErr.Details = fields
	}
	// Schema violations are reported like every other validation failure.
	if status == http.StatusUnprocessableEntity {
		apiErr.status = http.StatusBadRequest
	}
	return apiErr
}

func internalError(logger *slog.Logger, errs []error) *APIError {
	id := uuid.NewString()
	if logger != nil {
		logger.Error("request failed", "error_id", id, "error", errors.Join(errs...))
	}
	return &APIError{
		status:  http.StatusInternalServerError,
		Code:    string(domainerrors.CodeInternal),
		Message: "Internal server error",
		ErrorID: id,
	}
}

// fieldErrors collects huma's per-location validation messages.
func fieldErrors(errs []error) map[string]string {
	fields := make(map[string]string)
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			fields[detail.Location] = detail.Message
		}
	}
	return fields
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusMethodNotAllowed:
		return string(domainerrors.CodeValidation)
	case http.StatusUnauthorized:
		return string(domainerrors.CodeUnauthorized)
	case http.StatusForbidden:
		return string(domainerrors.CodeForbidden)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeDuplicate)
	case http.StatusTooManyRequests:
		return string(domainerrors.CodeRateLimited)
	default:
		return string(domainerrors.CodeInternal)
	}
}
