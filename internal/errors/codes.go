package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for preference sync operations.
type ErrorCode string

const (
	// ErrCodeTransport indicates the remote endpoint was unreachable or
	// returned a non-2xx status.
	ErrCodeTransport ErrorCode = "TRANSPORT"
	// ErrCodeSchema indicates a wire payload that cannot be translated.
	ErrCodeSchema ErrorCode = "SCHEMA"
	// ErrCodeValidation indicates a delta that violates domain invariants.
	ErrCodeValidation ErrorCode = "VALIDATION"
	// ErrCodeStoreCorruption indicates an unreadable local snapshot.
	ErrCodeStoreCorruption ErrorCode = "STORE_CORRUPTION"
	// ErrCodeTimeout indicates a remote operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// SyncError represents a structured error for preference sync operations.
type SyncError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *SyncError) WithContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *SyncError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// Transport creates a transport error.
func Transport(msg string, cause error) *SyncError {
	return &SyncError{Code: ErrCodeTransport, Message: msg, Cause: cause}
}

// Schema creates a schema error.
func Schema(msg string, cause error) *SyncError {
	return &SyncError{Code: ErrCodeSchema, Message: msg, Cause: cause}
}

// Validation creates a validation error.
func Validation(msg string) *SyncError {
	return &SyncError{Code: ErrCodeValidation, Message: msg}
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...interface{}) *SyncError {
	return &SyncError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// StoreCorruption creates a store corruption error.
func StoreCorruption(msg string, cause error) *SyncError {
	return &SyncError{Code: ErrCodeStoreCorruption, Message: msg, Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string, cause error) *SyncError {
	return &SyncError{Code: ErrCodeTimeout, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *SyncError {
	return &SyncError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if syncErr, ok := err.(*SyncError); ok {
		return syncErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a SyncError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if syncErr, ok := err.(*SyncError); ok {
		return syncErr.Code
	}
	return defaultCode
}

// IsRecoverable reports whether the read path may recover the error from
// the local fallback snapshot. Transport, timeout and schema failures on
// read degrade to the cache; validation failures never do.
func IsRecoverable(err error) bool {
	switch GetCodeFromError(err, "") {
	case ErrCodeTransport, ErrCodeTimeout, ErrCodeSchema:
		return true
	}
	return false
}
