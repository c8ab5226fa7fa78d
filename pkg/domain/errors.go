package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// AppErrorCode represents a machine-readable error code for API responses.
type AppErrorCode string

const (
	// ErrCodeBadRequest indicates a request carried nothing to store or was malformed.
	ErrCodeBadRequest AppErrorCode = "BAD_REQUEST"
	// ErrCodeRequestTooLarge indicates a size ceiling was crossed mid-stream.
	ErrCodeRequestTooLarge AppErrorCode = "REQUEST_TOO_LARGE"
	// ErrCodeCapacityExhausted indicates every access code is currently live.
	ErrCodeCapacityExhausted AppErrorCode = "CAPACITY_EXHAUSTED"
	// ErrCodeNotFound indicates an unknown, served or expired code.
	ErrCodeNotFound AppErrorCode = "NOT_FOUND"
	// ErrCodeTransferAborted indicates the peer went away mid-stream.
	ErrCodeTransferAborted AppErrorCode = "TRANSFER_ABORTED"
	// ErrCodeMethodNotAllowed indicates the route exists under another method.
	ErrCodeMethodNotAllowed AppErrorCode = "METHOD_NOT_ALLOWED"
	// ErrCodeInternal indicates a storage or registry fault.
	ErrCodeInternal AppErrorCode = "INTERNAL_ERROR"
)

// StatusClientClosedRequest is the non-standard status used when the client
// disconnected before the server could answer.
const StatusClientClosedRequest = 499

// Sentinels for errors.Is. They match any AppError carrying the same code.
var (
	ErrBadRequest        = &AppError{Code: ErrCodeBadRequest}
	ErrTooLarge          = &AppError{Code: ErrCodeRequestTooLarge}
	ErrCapacityExhausted = &AppError{Code: ErrCodeCapacityExhausted}
	ErrNotFound          = &AppError{Code: ErrCodeNotFound}
	ErrTransferAborted   = &AppError{Code: ErrCodeTransferAborted}
	ErrInternal          = &AppError{Code: ErrCodeInternal}
)

// AppError represents an application error with context for API responses.
type AppError struct {
	// Machine-readable error code
	Code AppErrorCode `json:"code"`

	// Human-readable error message, safe to show to clients
	Message string `json:"message"`

	// HTTP status code
	StatusCode int `json:"-"`

	// Additional error details
	Details map[string]interface{} `json:"details,omitempty"`

	// Original error, logged but never rendered
	Err error `json:"-"`
}

// NewAppError creates a new application error.
func NewAppError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: GetHTTPStatus(code),
		Details:    make(map[string]interface{}),
	}
}

// Error implements error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds additional details to error.
func (e *AppError) WithDetails(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	if e.Message == "" && err != nil {
		e.Message = err.Error()
	}
	return e
}

// GetHTTPStatus maps error code to HTTP status.
func GetHTTPStatus(code AppErrorCode) int {
	switch code {
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeCapacityExhausted:
		return http.StatusServiceUnavailable
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTransferAborted:
		return StatusClientClosedRequest
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AsAppError returns the first AppError in err's chain. Anything else is
// reported as an internal error wrapping err.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal server error", err)
}

// BadRequest reports a request that carried nothing usable.
func BadRequest(message string) *AppError {
	return NewAppError(ErrCodeBadRequest, message)
}

// TooLarge reports a crossed size ceiling.
func TooLarge(limit int64) *AppError {
	return NewAppError(ErrCodeRequestTooLarge, "upload exceeds the size limit").
		WithDetails("maxSize", limit)
}

// CapacityExhausted reports that no access code is free.
func CapacityExhausted(span int) *AppError {
	return NewAppError(ErrCodeCapacityExhausted, "no access code available, try again later").
		WithDetails("codeSpace", span)
}

// NotFound reports an unknown code. Unknown, served and expired codes are
// deliberately indistinguishable.
func NotFound() *AppError {
	return NewAppError(ErrCodeNotFound, "invalid code")
}

// TransferAborted reports a stream cut short by the peer.
func TransferAborted(err error) *AppError {
	return NewAppError(ErrCodeTransferAborted, "transfer aborted").WithError(err)
}

// Internal reports a storage or registry fault. The message is for logs;
// the HTTP layer replaces it with a generic one.
func Internal(message string, err error) *AppError {
	return NewAppError(ErrCodeInternal, message).WithError(err)
}
