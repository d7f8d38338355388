package errors

import (
	"net/http"
	"time"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrInvalidCredentials ErrorCode = "40101"
	ErrTokenExpired       ErrorCode = "40102"

	// Authorization errors (403xx)
	ErrForbidden     ErrorCode = "40301"
	ErrBrandNotOwned ErrorCode = "40302"

	// Resource errors (404xx)
	ErrBrandNotFound  ErrorCode = "40401"
	ErrSourceNotFound ErrorCode = "40402"
	ErrJobNotFound    ErrorCode = "40403"
	ErrUserNotFound   ErrorCode = "40404"

	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"

	// Conflict errors (409xx)
	ErrSyncInProgress ErrorCode = "40901"
	ErrDuplicate      ErrorCode = "40902"

	// Rate limit errors (429xx)
	ErrRateLimited ErrorCode = "42901"

	// Accepted-but-pending (202xx)
	ErrSummaryPending ErrorCode = "20201"

	// Server errors (500xx)
	ErrInternalServer      ErrorCode = "50001"
	ErrUpstreamUnavailable ErrorCode = "50301"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id"`
}

// Common errors
var (
	ErrInvalidCredentialsError = &APIError{
		Code:       ErrInvalidCredentials,
		Message:    "Invalid email or password",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpiredError = &APIError{
		Code:       ErrTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbiddenError = &APIError{
		Code:       ErrForbidden,
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
	}

	ErrBrandNotOwnedError = &APIError{
		Code:       ErrBrandNotOwned,
		Message:    "Brand does not belong to the authenticated user",
		HTTPStatus: http.StatusForbidden,
	}

	ErrBrandNotFoundError = &APIError{
		Code:       ErrBrandNotFound,
		Message:    "Brand not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrSourceNotFoundError = &APIError{
		Code:       ErrSourceNotFound,
		Message:    "Review source not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrJobNotFoundError = &APIError{
		Code:       ErrJobNotFound,
		Message:    "Sync job not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUserNotFoundError = &APIError{
		Code:       ErrUserNotFound,
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrSyncInProgressError = &APIError{
		Code:       ErrSyncInProgress,
		Message:    "A sync job is already active for this source",
		HTTPStatus: http.StatusConflict,
	}

	ErrSummaryPendingError = &APIError{
		Code:       ErrSummaryPending,
		Message:    "Summary generation in progress, retry later",
		HTTPStatus: http.StatusAccepted,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrUpstreamUnavailableError = &APIError{
		Code:       ErrUpstreamUnavailable,
		Message:    "Upstream service unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewRateLimitedError creates a rate limit error carrying the next-eligible time
func NewRateLimitedError(retryAt time.Time) *APIError {
	return &APIError{
		Code:       ErrRateLimited,
		Message:    "Manual sync rate limit exceeded",
		Details:    map[string]any{"retry_at": retryAt},
		HTTPStatus: http.StatusTooManyRequests,
	}
}
