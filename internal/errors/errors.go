// Package errors provides typed service errors shared by the FoodApp packages.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	CodeAuthFailed        ErrorCode = "AUTH_FAILED"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodeFetchFailed       ErrorCode = "FETCH_FAILED"
	CodeCreateFailed      ErrorCode = "CREATE_FAILED"
	CodeConnectivity      ErrorCode = "CONNECTIVITY"
	CodeOperationPending  ErrorCode = "OPERATION_PENDING"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal          ErrorCode = "INTERNAL"
)

// ServiceError is an error with a stable code and an HTTP mapping.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches another ServiceError by code so sentinel comparisons work
// through wrapping.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns a copy of the error with an extra detail attached.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func newError(code ErrorCode, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// AuthFailed reports bad credentials or a rejected signup.
func AuthFailed(message string, err error) *ServiceError {
	return newError(CodeAuthFailed, http.StatusUnauthorized, message, err)
}

// Unauthorized reports a missing session.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// ValidationFailed reports input rejected before any remote call.
func ValidationFailed(message string) *ServiceError {
	return newError(CodeValidationFailed, http.StatusBadRequest, message, nil)
}

// FetchFailed reports a failed record read.
func FetchFailed(message string, err error) *ServiceError {
	return newError(CodeFetchFailed, http.StatusBadGateway, message, err)
}

// CreateFailed reports a failed record write.
func CreateFailed(message string, err error) *ServiceError {
	return newError(CodeCreateFailed, http.StatusBadGateway, message, err)
}

// Connectivity reports that the backend could not be reached.
func Connectivity(message string, err error) *ServiceError {
	return newError(CodeConnectivity, http.StatusServiceUnavailable, message, err)
}

// OperationPending reports a mutation rejected because another is in flight.
func OperationPending() *ServiceError {
	return newError(CodeOperationPending, http.StatusConflict, "operation already in progress", nil)
}

// InvalidTransition reports an action that the current state does not allow.
func InvalidTransition(from, event string) *ServiceError {
	return newError(CodeInvalidTransition, http.StatusConflict, "invalid transition", nil).
		WithDetails("from", from).
		WithDetails("event", event)
}

// RateLimitExceeded reports a throttled client.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimitExceeded, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit of %d requests per %s exceeded", limit, window), nil)
}

// Internal reports an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError returns the first ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
