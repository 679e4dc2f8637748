// Package apperrors provides the structured error type used outside the
// matching core: configuration failures, transport failures, and other
// conditions an operator needs a code and a caller location for. A
// RejectReason returned from Engine.SubmitOrder is never wrapped here — a
// rejection is an expected, synchronous outcome of a submission, not a
// system error.
package apperrors

import (
	"fmt"
	"runtime"
	"time"
)

// Code classifies an error for dashboards, alerting, and retry policy.
type Code string

const (
	// ErrConfigInvalid marks a configuration value that failed validation.
	ErrConfigInvalid Code = "CONFIG_INVALID"
	// ErrConfigReload marks a failure while hot-reloading configuration.
	ErrConfigReload Code = "CONFIG_RELOAD_FAILED"
	// ErrSymbolNotFound marks an engine lookup for an unconfigured symbol.
	ErrSymbolNotFound Code = "SYMBOL_NOT_FOUND"
	// ErrPublishFailed marks a failure delivering a fill to a downstream
	// collaborator (NATS, websocket fan-out).
	ErrPublishFailed Code = "PUBLISH_FAILED"
	// ErrCircuitOpen marks a call rejected by an open circuit breaker.
	ErrCircuitOpen Code = "CIRCUIT_OPEN"
	// ErrServiceUnavailable marks a downstream dependency that cannot be
	// reached at all (connection refused, DNS failure).
	ErrServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	// ErrTimeout marks an operation that exceeded its deadline.
	ErrTimeout Code = "TIMEOUT"
)

// Error is the structured error type: a code, a message, optional
// key/value details, the caller's file/line, and an optional wrapped cause.
type Error struct {
	Code      Code                   `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key/value pair to the error for structured logging.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New constructs an Error, capturing the caller's file and line.
func New(code Code, message string) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{Code: code, Message: message, Timestamp: time.Now(), File: file, Line: line}
}

// Newf constructs an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Timestamp: time.Now(), File: file, Line: line}
}

// Wrap constructs an Error around an existing cause. It returns nil if err
// is nil, so callers can write `return apperrors.Wrap(err, ...)` unconditionally.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &Error{Code: code, Message: message, Timestamp: time.Now(), File: file, Line: line, Cause: err}
}

// Wrapf wraps err with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Timestamp: time.Now(), File: file, Line: line, Cause: err}
}

// As finds the first *Error in err's chain and assigns it to target.
func As(err error, target **Error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*Error); ok {
		*target = appErr
		return true
	}
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return As(unwrapper.Unwrap(), target)
	}
	return false
}

// GetCode extracts the error code from err, or "" if err is not (or does
// not wrap) an *Error.
func GetCode(err error) Code {
	var appErr *Error
	if As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRetryable reports whether err's code represents a condition worth
// retrying (a transient downstream failure rather than a validation error).
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrTimeout, ErrServiceUnavailable, ErrCircuitOpen:
		return true
	default:
		return false
	}
}
