// Package errors defines the coded error type returned by services and the
// HTTP metadata the response layer derives from each code.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
)

// Metadata controls how a code is rendered to clients.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, public string, retryable, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, Retryable: retryable, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        meta(http.StatusBadRequest, "validation failed", false, true),
	CodeUnauthorized:      meta(http.StatusUnauthorized, "authentication required", false, false),
	CodeForbidden:         meta(http.StatusForbidden, "access denied", false, false),
	CodeNotFound:          meta(http.StatusNotFound, "resource not found", false, false),
	CodeConflict:          meta(http.StatusConflict, "conflict detected", false, false),
	CodeStateConflict:     meta(http.StatusUnprocessableEntity, "state transition disallowed", false, true),
	CodeIdempotency:       meta(http.StatusConflict, "idempotency key reused", false, true),
	CodeRateLimit:         meta(http.StatusTooManyRequests, "rate limit exceeded", false, false),
	CodeInsufficientStock: meta(http.StatusConflict, "insufficient stock", false, true),
	CodeInsufficientFunds: meta(http.StatusPaymentRequired, "insufficient wallet balance", false, true),
	CodeInternal:          meta(http.StatusInternalServerError, "internal server error", true, false),
	CodeDependency:        meta(http.StatusServiceUnavailable, "dependency unavailable", true, true),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error carries a code, a client-facing message, optional details and the
// underlying cause. All accessors are nil-safe.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches cause to a new coded error. A nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

// PublicCode satisfies the logger's coded error interface.
func (e *Error) PublicCode() string { return string(e.Code()) }

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
