package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies every failure the lifecycle engine reports to callers.
type ErrorCode string

const (
	CodeValidation              ErrorCode = "VALIDATION_ERROR"
	CodeAuthenticationRequired  ErrorCode = "AUTHENTICATION_REQUIRED"
	CodeForbidden               ErrorCode = "FORBIDDEN"
	CodeNotFound                ErrorCode = "NOT_FOUND"
	CodeProductNotFound         ErrorCode = "PRODUCT_NOT_FOUND"
	CodeOrderPersistenceFailure ErrorCode = "ORDER_PERSISTENCE_FAILURE"
	CodeInvalidTransition       ErrorCode = "INVALID_TRANSITION"
	CodeNoPendingOrders         ErrorCode = "NO_PENDING_ORDERS"
	CodeUpstreamFailure         ErrorCode = "UPSTREAM_FAILURE"
	CodeLedgerWriteFailure      ErrorCode = "LEDGER_WRITE_FAILURE"
)

// Error is the coded error type shared by business services and the HTTP layer.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Code == CodeUpstreamFailure {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code so callers can test with the sentinel values below.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Retryable reports whether nothing was applied and the whole call may be repeated.
// A ledger failure is not retryable: the payment already happened.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeUpstreamFailure, CodeOrderPersistenceFailure:
		return true
	default:
		return false
	}
}

var (
	ErrValidation              = &Error{Code: CodeValidation}
	ErrAuthenticationRequired  = &Error{Code: CodeAuthenticationRequired}
	ErrForbidden               = &Error{Code: CodeForbidden}
	ErrNotFound                = &Error{Code: CodeNotFound}
	ErrProductNotFound         = &Error{Code: CodeProductNotFound}
	ErrOrderPersistenceFailure = &Error{Code: CodeOrderPersistenceFailure}
	ErrInvalidTransition       = &Error{Code: CodeInvalidTransition}
	ErrNoPendingOrders         = &Error{Code: CodeNoPendingOrders}
	ErrUpstreamFailure         = &Error{Code: CodeUpstreamFailure}
	ErrLedgerWriteFailure      = &Error{Code: CodeLedgerWriteFailure}
)

func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func WrapError(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Upstream wraps a store or network failure, keeping already coded errors intact.
func Upstream(cause error, action string) error {
	var coded *Error
	if errors.As(cause, &coded) {
		return cause
	}
	return WrapError(CodeUpstreamFailure, cause, "failed to %s", action)
}

// CodeOf returns the code of a coded error, or CodeUpstreamFailure for anything else.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUpstreamFailure
}
