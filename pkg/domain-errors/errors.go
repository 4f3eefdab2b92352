// Package domainerrors defines the error taxonomy shared by services and transports.
//
// Services return *Error values carrying a Code. Transports map the Code to a
// status and decide whether the message is safe to show to a client.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"

	// Notarization pipeline failures.
	CodeStorageUnavailable     Code = "storage_unavailable"
	CodePriceUnavailable       Code = "price_unavailable"
	CodeInsufficientFunds      Code = "insufficient_funds"
	CodePlanNotPurchasable     Code = "plan_not_purchasable"
	CodeTreasuryTransferFailed Code = "treasury_transfer_failed"
	CodeSubmissionRejected     Code = "submission_rejected"
	CodeSubmissionTimeout      Code = "submission_timeout"
	CodeAuditWriteFailed       Code = "audit_write_failed"
	CodeRenderError            Code = "render_error"
	CodeInFlight               Code = "submission_in_flight"
)

// Error is a domain error with a stable code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, New(code, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a domain error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost domain message, or an empty string.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
