package errors

import (
	"fmt"
	"net/http"
)

// AppError is the standard application error shape.
// Domain layers return these (or sentinel errors that controllers map into
// one); the HTTP layer serializes them with WriteError.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // original cause, logged but never sent to the client
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError.
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError converts a generic error into an AppError.
// Unknown errors become a generic internal error keeping the cause for logs.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// WithDetail returns a copy with an added detail. The predefined errors are
// package globals, so the copy protects them from mutation.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause returns a copy carrying the original error.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// Predefined errors. The codes mirror the service's error taxonomy: the
// callback state machine and the reconciliation engine map their sentinel
// errors onto these.

var (
	// 400
	ErrInvalidRequest = &AppError{
		Code:       "INVALID_REQUEST",
		Message:    "the request is missing required parameters or they are malformed",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrStateMismatch = &AppError{
		Code:       "STATE_MISMATCH",
		Message:    "oauth state does not match the stored session",
		HTTPStatus: http.StatusBadRequest,
	}

	// 401
	ErrUnauthenticated = &AppError{
		Code:       "UNAUTHENTICATED",
		Message:    "authentication required",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrReauthRequired = &AppError{
		Code:       "REAUTH_REQUIRED",
		Message:    "stored credentials could not be refreshed; the account must be reconnected",
		HTTPStatus: http.StatusUnauthorized,
	}

	// 404
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "the requested resource was not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrNoLinkedAccount = &AppError{
		Code:       "NO_LINKED_ACCOUNT",
		Message:    "no account is linked for this platform",
		HTTPStatus: http.StatusNotFound,
	}

	ErrNoCachedMetrics = &AppError{
		Code:       "NO_CACHED_METRICS",
		Message:    "no cached metrics are stored for this account",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUnknownPlatform = &AppError{
		Code:       "UNKNOWN_PLATFORM",
		Message:    "the platform is not supported",
		HTTPStatus: http.StatusNotFound,
	}

	// 405
	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "the HTTP method is not allowed for this resource",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	// 5xx
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrExchangeFailed = &AppError{
		Code:       "EXCHANGE_FAILED",
		Message:    "the authorization code could not be exchanged",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrStorageFailed = &AppError{
		Code:       "STORAGE_FAILED",
		Message:    "persisting the result failed",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrProviderUnavailable = &AppError{
		Code:       "PROVIDER_UNAVAILABLE",
		Message:    "the provider did not answer in time",
		HTTPStatus: http.StatusBadGateway,
	}
)
