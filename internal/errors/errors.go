package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeTransient indicates a remote failure that is expected to clear
	// on its own (network error, timeout, 5xx, rate limiting).
	ErrCodeTransient ErrorCode = "transient_remote"
	// ErrCodeFatal indicates a remote failure that retrying cannot fix
	// (4xx other than 429, malformed payload, authentication failure).
	ErrCodeFatal ErrorCode = "fatal_remote"
	// ErrCodeCircuitOpen indicates the attempt was refused locally because
	// the endpoint's circuit breaker is open. No remote call was made.
	ErrCodeCircuitOpen ErrorCode = "circuit_open"
	// ErrCodeRetryExhausted indicates the retry budget (attempts or elapsed
	// time) was spent without a successful outcome.
	ErrCodeRetryExhausted ErrorCode = "retry_exhausted"
	// ErrCodeCanceled indicates the operation was canceled by the caller.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeValidation indicates invalid input or configuration.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Transient creates a new transient remote error.
func Transient(message string) *AppError {
	return &AppError{
		Code:    ErrCodeTransient,
		Message: message,
	}
}

// Transientf creates a new transient remote error with formatted message.
func Transientf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeTransient,
		Message: fmt.Sprintf(format, args...),
	}
}

// Fatal creates a new fatal remote error.
func Fatal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeFatal,
		Message: message,
	}
}

// Fatalf creates a new fatal remote error with formatted message.
func Fatalf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeFatal,
		Message: fmt.Sprintf(format, args...),
	}
}

// CircuitOpen creates the synthetic error raised when a breaker refuses an
// attempt. The endpoint is recorded in the message for log context.
func CircuitOpen(endpoint string) *AppError {
	return &AppError{
		Code:    ErrCodeCircuitOpen,
		Message: fmt.Sprintf("circuit open for endpoint %q", endpoint),
	}
}

// RetryExhausted creates the terminal error surfaced when the retry budget
// is spent. The last observed failure is preserved as the cause.
func RetryExhausted(attempts int, elapsed time.Duration, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeRetryExhausted,
		Message: fmt.Sprintf("retry budget exhausted after %d attempts in %s", attempts, elapsed.Round(time.Millisecond)),
		Cause:   cause,
	}
}

// Canceled creates a new Canceled error.
func Canceled(message string) *AppError {
	return &AppError{
		Code:    ErrCodeCanceled,
		Message: message,
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// MessageTemplate describes a lazily formatted error message used with Wrapf.
type MessageTemplate struct {
	format string
	args   []any
}

// Messagef creates a lazily formatted message template for Wrapf.
func Messagef(format string, args ...any) MessageTemplate {
	return MessageTemplate{
		format: format,
		args:   args,
	}
}

func (mt MessageTemplate) String() string {
	if len(mt.args) == 0 {
		return mt.format
	}
	return fmt.Sprintf(mt.format, mt.args...)
}

// WrapTemplate wraps an existing error with an AppError using a preconstructed message template.
func WrapTemplate(err error, code ErrorCode, template MessageTemplate) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: template.String(),
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return WrapTemplate(err, code, Messagef(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsTransient checks if an error is a transient remote error.
func IsTransient(err error) bool {
	return isCode(err, ErrCodeTransient)
}

// IsFatal checks if an error is a fatal remote error.
func IsFatal(err error) bool {
	return isCode(err, ErrCodeFatal)
}

// IsCircuitOpen checks if an error is a circuit-open refusal.
func IsCircuitOpen(err error) bool {
	return isCode(err, ErrCodeCircuitOpen)
}

// IsRetryExhausted checks if an error is a spent retry budget.
func IsRetryExhausted(err error) bool {
	return isCode(err, ErrCodeRetryExhausted)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool {
	return isCode(err, ErrCodeInternal)
}

// Retryable reports whether an error may be retried under a retry policy.
// Transient remote failures and circuit-open refusals are retryable; both
// draw down the same retry budget.
func Retryable(err error) bool {
	return IsTransient(err) || IsCircuitOpen(err)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
