// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"

	"github.com/doc2md/backend/internal/filecheck"
)

// APIError represents a structured API error response
type APIError struct {
	Status   int                   `json:"-"`
	Code     string                `json:"code"`
	Message  string                `json:"error"`
	Details  string                `json:"details,omitempty"`
	Rejected []filecheck.Rejection `json:"rejected,omitempty"`

	// cause is logged but never sent to the client
	cause error
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the logged cause.
func (e *APIError) Unwrap() error {
	return e.cause
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
		cause:   cause,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewFieldErrors turns ozzo validation errors into a single 400
func NewFieldErrors(fieldErrs validation.Errors) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fieldErrs.Error(),
		cause:   fieldErrs,
	}
}

// NewMissingCredentialsError creates a 400 for absent account id, token or key
func NewMissingCredentialsError(message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "MISSING_CREDENTIALS",
		Message: message,
	}
}

// NewRejectedFilesError creates a 400 that names every rejected file
func NewRejectedFilesError(batchErr *filecheck.BatchError) *APIError {
	return &APIError{
		Status:   http.StatusBadRequest,
		Code:     "UNSUPPORTED_FILES",
		Message:  batchErr.Error(),
		Rejected: batchErr.Rejected,
		cause:    batchErr,
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewUpstreamError relays a vendor failure with the vendor's status code
func NewUpstreamError(status int, body string, cause error) *APIError {
	if body == "" {
		body = http.StatusText(status)
	}
	return &APIError{
		Status:  status,
		Code:    "UPSTREAM_ERROR",
		Message: "upstream error: " + body,
		cause:   cause,
	}
}

// NewNotImplementedError creates a 501 Not Implemented error
func NewNotImplementedError(message string) *APIError {
	return &APIError{
		Status:  http.StatusNotImplemented,
		Code:    "NOT_IMPLEMENTED",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error. The cause is logged
// by ErrorHandler and not returned to the client.
func NewInternalError(message string, cause error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
		cause:   cause,
	}
}

// ErrorHandler returns the central error handler for Echo.
// Usage: e.HTTPErrorHandler = api.ErrorHandler(logger)
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError

		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = &APIError{
				Status:  httpErr.Code,
				Code:    "HTTP_ERROR",
				Message: fmt.Sprintf("%v", httpErr.Message),
			}
		default:
			apiErr = NewInternalError("an unexpected error occurred", err)
		}

		req := c.Request()
		if apiErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", req.Method,
				"path", req.URL.Path,
				"status", apiErr.Status,
				"code", apiErr.Code,
				"error", apiErr.cause,
			)
		} else {
			logger.Debug("request rejected",
				"method", req.Method,
				"path", req.URL.Path,
				"status", apiErr.Status,
				"code", apiErr.Code,
				"error", apiErr.Message,
			)
		}

		if req.Method == http.MethodHead {
			c.NoContent(apiErr.Status)
			return
		}
		c.JSON(apiErr.Status, apiErr)
	}
}
