package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatTransport  ErrorCategory = "transport"  // Non-2xx response or absent body
	ErrCatStream     ErrorCategory = "stream"     // In-band error event or broken stream
	ErrCatParse      ErrorCategory = "parse"      // Malformed frame
	ErrCatRecovery   ErrorCategory = "recovery"   // Draft or suggestion could not be loaded
	ErrCatValidation ErrorCategory = "validation" // Invalid input
	ErrCatState      ErrorCategory = "state"      // Session state conflict
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatCanceled   ErrorCategory = "canceled"   // Caller canceled the run
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
	Details  map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrTransport creates a transport error.
func ErrTransport(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatTransport,
		Code:     code,
		Message:  message,
	}
}

// ErrStream creates a stream error.
func ErrStream(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatStream,
		Code:     code,
		Message:  message,
	}
}

// ErrParse creates a parse error for a single frame.
func ErrParse(message string) *DomainError {
	return &DomainError{
		Category: ErrCatParse,
		Code:     CodeMalformedFrame,
		Message:  message,
	}
}

// ErrRecovery creates a recovery error carrying a user-facing message.
func ErrRecovery(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatRecovery,
		Code:     code,
		Message:  message,
	}
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  message,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatState,
		Code:     code,
		Message:  message,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// ErrCanceled creates a cancellation error.
func ErrCanceled(message string) *DomainError {
	return &DomainError{
		Category: ErrCatCanceled,
		Code:     CodeCanceled,
		Message:  message,
	}
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// UserMessage returns the message part of a domain error, suitable for
// display. Other errors yield their Error() text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Message
	}
	return err.Error()
}

// Predefined error codes
const (
	CodeHTTPStatus       = "HTTP_STATUS"
	CodeAbsentBody       = "ABSENT_BODY"
	CodeRequestFailed    = "REQUEST_FAILED"
	CodeStepFailed       = "STEP_FAILED"
	CodeStreamRead       = "STREAM_READ"
	CodeStreamIdle       = "STREAM_IDLE"
	CodeMalformedFrame   = "MALFORMED_FRAME"
	CodeCanceled         = "CANCELED"
	CodeAnalysisRunning  = "ANALYSIS_RUNNING"
	CodeAlreadySubmitted = "ALREADY_SUBMITTED"
	CodeForbidden        = "FORBIDDEN"
	CodeDraftNotFound    = "DRAFT_NOT_FOUND"
	CodeRecoveryFailed   = "RECOVERY_FAILED"
	CodeSuggestionFailed = "SUGGESTION_FAILED"
	CodeInvalidSnapshot  = "INVALID_SNAPSHOT"
	CodeInvalidDraftID   = "INVALID_DRAFT_ID"
	CodeMissingDraftID   = "MISSING_DRAFT_ID"
)
