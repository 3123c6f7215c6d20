package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
)

// Machine-readable codes surfaced to HTTP callers.
const (
	CodeMissingCredential      = "MISSING_CREDENTIAL"
	CodeInvalidToken           = "INVALID_TOKEN"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeInvalidSignature       = "INVALID_SIGNATURE"
	CodeInsufficientRole       = "INSUFFICIENT_ROLE"
	CodeSubscriptionRequired   = "SUBSCRIPTION_REQUIRED"
	CodeEntitlementUnavailable = "ENTITLEMENT_CHECK_UNAVAILABLE"
	CodeCSRFValidationFailed   = "CSRF_VALIDATION_FAILED"
	CodeRateLimited            = "RATE_LIMITED"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	RetryAfter time.Duration
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewUnauthorized builds a 401 carrying the given code. The cause is kept for
// logging and never rendered.
func NewUnauthorized(code, message string, cause error) error {
	return &DomainError{Code: code, Message: message, HTTPStatus: http.StatusUnauthorized, Err: cause}
}

func NewForbidden(code, message string, cause error) error {
	return &DomainError{Code: code, Message: message, HTTPStatus: http.StatusForbidden, Err: cause}
}

func NewTooManyRequests(message string, retryAfter time.Duration) error {
	return &DomainError{
		Code:       CodeRateLimited,
		Message:    message,
		HTTPStatus: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}
