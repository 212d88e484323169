package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for orchestration operations.
type ErrorCode string

const (
	// ErrCodeExtractionFailed indicates the language-model extraction call failed or timed out.
	ErrCodeExtractionFailed ErrorCode = "EXTRACTION_FAILED"
	// ErrCodeLowConfidence indicates extraction succeeded but below the confidence threshold.
	ErrCodeLowConfidence ErrorCode = "LOW_CONFIDENCE"
	// ErrCodeNoProviderFound indicates no provider matched in any tier.
	ErrCodeNoProviderFound ErrorCode = "NO_PROVIDER_FOUND"
	// ErrCodeDeliveryFailed indicates an outbound notification delivery failure.
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"
	// ErrCodeDeliveryExhausted indicates delivery retries were exhausted.
	ErrCodeDeliveryExhausted ErrorCode = "DELIVERY_EXHAUSTED"
	// ErrCodeDuplicateAction indicates a retried action that was absorbed idempotently.
	ErrCodeDuplicateAction ErrorCode = "DUPLICATE_ACTION"
	// ErrCodeSessionCorrupted indicates persisted session state could not be parsed.
	ErrCodeSessionCorrupted ErrorCode = "SESSION_CORRUPTED"
	// ErrCodeStoreUnavailable indicates the persistence layer is unavailable.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// EngineError represents a structured error for orchestration operations.
type EngineError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Convenience constructors for common error types.

// ExtractionFailed creates an extraction failure error.
func ExtractionFailed(msg string, cause error) *EngineError {
	return &EngineError{Code: ErrCodeExtractionFailed, Message: msg, Cause: cause}
}

// NoProviderFound creates a no-provider-found error.
func NoProviderFound(category, location string) *EngineError {
	return &EngineError{
		Code:    ErrCodeNoProviderFound,
		Message: fmt.Sprintf("no provider found for %s in %s", category, location),
	}
}

// DeliveryFailed creates a delivery failure error.
func DeliveryFailed(channel string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeDeliveryFailed,
		Message: fmt.Sprintf("delivery via %s failed", channel),
		Cause:   cause,
	}
}

// SessionCorrupted creates a session corruption error.
func SessionCorrupted(userKey string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeSessionCorrupted,
		Message: fmt.Sprintf("session state for %s is unreadable", userKey),
		Cause:   cause,
	}
}

// StoreUnavailable creates a store unavailable error.
func StoreUnavailable(cause error) *EngineError {
	return &EngineError{Code: ErrCodeStoreUnavailable, Message: "persistence unavailable", Cause: cause}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *EngineError {
	return &EngineError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Timeout creates a timeout error.
func Timeout(msg string) *EngineError {
	return &EngineError{Code: ErrCodeTimeout, Message: msg}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if engineErr, ok := err.(*EngineError); ok {
		return engineErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an EngineError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if engineErr, ok := err.(*EngineError); ok {
		return engineErr.Code
	}
	return defaultCode
}
