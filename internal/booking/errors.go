// Package booking implements the reservation lifecycle: creation with an
// atomic conflict check, the status state machine, and the no-show sweep.
package booking

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-checkable failure class returned to callers.
type ErrorCode string

const (
	CodeNotFound          ErrorCode = "not_found"
	CodeIneligible        ErrorCode = "ineligible"
	CodePastTime          ErrorCode = "past_time"
	CodeSlotConflict      ErrorCode = "slot_conflict"
	CodeForbidden         ErrorCode = "forbidden"
	CodeInvalidTransition ErrorCode = "invalid_transition"
	CodeValidation        ErrorCode = "validation"
)

// Error is a recoverable, caller-facing failure. Anything else that escapes
// the booking package is an infrastructure failure and fails the request.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes errors.Is match any *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinel values for errors.Is checks.
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrIneligible        = &Error{Code: CodeIneligible, Message: "practitioner does not offer this service"}
	ErrPastTime          = &Error{Code: CodePastTime, Message: "requested start is in the past"}
	ErrSlotConflict      = &Error{Code: CodeSlotConflict, Message: "slot unavailable"}
	ErrForbidden         = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition, Message: "invalid transition"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation failed"}
)

// CodeOf extracts the error code, or empty string for infrastructure errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
