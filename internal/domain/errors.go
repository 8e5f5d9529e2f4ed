package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeUpstream          = "UPSTREAM_ERROR"
	ErrCodeEmptyResult       = "EMPTY_RESULT"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeTracingDegraded   = "TRACING_DEGRADED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// TimeoutError reports that an upstream operation exceeded its bound.
// Label identifies which operation timed out (e.g. "embedding", "scrape").
type TimeoutError struct {
	Label   string
	Timeout string
}

func (e *TimeoutError) Error() string {
	if e.Timeout != "" {
		return fmt.Sprintf("[%s] %s timed out after %s", ErrCodeTimeout, e.Label, e.Timeout)
	}
	return fmt.Sprintf("[%s] %s timed out", ErrCodeTimeout, e.Label)
}

// NewTimeoutError creates a labeled TimeoutError.
func NewTimeoutError(label, timeout string) *TimeoutError {
	return &TimeoutError{Label: label, Timeout: timeout}
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query cannot be empty")
)

// Not found errors
var (
	ErrArticleNotFound      = NewDomainError(ErrCodeNotFound, "article not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrOrganizationNotFound = NewDomainError(ErrCodeNotFound, "organization not found")
	ErrAPIKeyNotFound       = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Pipeline errors
var (
	ErrEmptyContent      = NewDomainError(ErrCodeEmptyResult, "generation produced no usable content")
	ErrInvalidTransition = NewDomainError(ErrCodeInvalidTransition, "conversation status transition not permitted")
)
