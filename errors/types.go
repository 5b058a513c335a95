package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Action bus errors
	ErrCodeUnknownAction   ErrorCode = "UNKNOWN_ACTION"
	ErrCodeHandlerFailed   ErrorCode = "HANDLER_FAILED"
	ErrCodeDependencyCycle ErrorCode = "DEPENDENCY_CYCLE"
	ErrCodeQueueOverflow   ErrorCode = "QUEUE_OVERFLOW"

	// Presenter and tab errors
	ErrCodeTabConfig   ErrorCode = "TAB_CONFIG"
	ErrCodeTabDisabled ErrorCode = "TAB_DISABLED"

	// Collaborator errors
	ErrCodeFetchFailed   ErrorCode = "FETCH_FAILED"
	ErrCodeStorageFailed ErrorCode = "STORAGE_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error represents a structured error with context
type Error struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Fields returns the error as logrus-compatible fields.
func (e *Error) Fields() map[string]interface{} {
	fields := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		fields[k] = v
	}
	fields["code"] = string(e.Code)
	return fields
}

// ToJSON converts the error to JSON
func (e *Error) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new Error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an Error
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific Error code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	e, ok := err.(*Error)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return e.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	e, ok := err.(*Error)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return e.Code
}
