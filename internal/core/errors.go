package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input
	ErrCatPolicy     ErrorCategory = "policy"     // Malformed or invalid policy
	ErrCatLedger     ErrorCategory = "ledger"     // Ledger-level failure
	ErrCatDetector   ErrorCategory = "detector"   // Detector execution failure
	ErrCatState      ErrorCategory = "state"      // Persistence corruption/conflict
	ErrCatConfig     ErrorCategory = "config"     // Application configuration
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
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

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrPolicy creates a policy load/validation error. Policy errors are
// fatal at load time and abort startup.
func ErrPolicy(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatPolicy,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrLedgerExhausted reports id-space exhaustion. Practically unreachable
// with 64-bit ids, but the ledger fails explicitly rather than wrapping.
func ErrLedgerExhausted() *DomainError {
	return &DomainError{
		Category:  ErrCatLedger,
		Code:      CodeLedgerExhausted,
		Message:   "handle id space exhausted",
		Retryable: false,
	}
}

// ErrDoubleRelease reports a second release of an already-released handle.
// Returned as data, not thrown: callers choose to log-and-continue or
// escalate, and the double-release detector consumes the event.
func ErrDoubleRelease(id HandleID) *DomainError {
	return &DomainError{
		Category:  ErrCatLedger,
		Code:      CodeDoubleRelease,
		Message:   fmt.Sprintf("handle %d already released", id),
		Retryable: false,
	}
}

// ErrUnknownHandle reports a release of an id the ledger never issued.
func ErrUnknownHandle(id HandleID) *DomainError {
	return &DomainError{
		Category:  ErrCatLedger,
		Code:      CodeUnknownHandle,
		Message:   fmt.Sprintf("unknown handle %d", id),
		Retryable: false,
	}
}

// ErrDetector wraps a detector failure. Isolated per detector: the run
// records it and continues with the remaining detectors.
func ErrDetector(name string, cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatDetector,
		Code:      CodeDetectorFailed,
		Message:   fmt.Sprintf("detector %s failed", name),
		Retryable: false,
		Cause:     cause,
	}
}

// ErrState creates a persistence error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrConfig creates a configuration error.
func ErrConfig(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatConfig,
		Code:      CodeInvalidConfig,
		Message:   message,
		Retryable: false,
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

// GetCode extracts the domain code, or empty for non-domain errors.
func GetCode(err error) string {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Code
	}
	return ""
}

// IsCode checks if an error carries a specific domain code.
func IsCode(err error, code string) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Code == code
	}
	return false
}

// Predefined error codes
const (
	CodeInvalidPolicy       = "INVALID_POLICY"
	CodeUnknownSeverity     = "UNKNOWN_SEVERITY"
	CodeInvalidResourceType = "INVALID_RESOURCE_TYPE"
	CodeLedgerExhausted     = "LEDGER_EXHAUSTED"
	CodeDoubleRelease       = "DOUBLE_RELEASE"
	CodeUnknownHandle       = "UNKNOWN_HANDLE"
	CodeLedgerClosed        = "LEDGER_CLOSED"
	CodeDetectorFailed      = "DETECTOR_FAILED"
	CodeStateCorrupted      = "STATE_CORRUPTED"
	CodeInvalidConfig       = "INVALID_CONFIG"
)
