package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an error category with a stable string for tests
// and scripted consumers.
type ErrorCode string

const (
	// General errors
	ErrUnknown  ErrorCode = "UNKNOWN"
	ErrInternal ErrorCode = "INTERNAL"

	// Configuration errors
	ErrConfigLoad     ErrorCode = "CONFIG_LOAD"
	ErrConfigParse    ErrorCode = "CONFIG_PARSE"
	ErrConfigValid    ErrorCode = "CONFIG_INVALID"
	ErrFileUnknown    ErrorCode = "FILE_UNKNOWN"
	ErrGlobInvalid    ErrorCode = "GLOB_INVALID"
	ErrFilesetUnknown ErrorCode = "FILESET_UNKNOWN"

	// Secret errors
	ErrSecretParse    ErrorCode = "SECRET_PARSE"
	ErrSecretResolve  ErrorCode = "SECRET_RESOLVE"
	ErrSecretConflict ErrorCode = "SECRET_CONFLICT"
	ErrSecretEngine   ErrorCode = "SECRET_ENGINE"

	// Pipeline errors
	ErrRender        ErrorCode = "RENDER"
	ErrStageDrift    ErrorCode = "STAGE_DRIFT"
	ErrPipelineBatch ErrorCode = "PIPELINE_BATCH"

	// Filesystem errors
	ErrFileNotFound  ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess    ErrorCode = "FILE_ACCESS"
	ErrFileWrite     ErrorCode = "FILE_WRITE"
	ErrSymlinkCreate ErrorCode = "SYMLINK_CREATE"
	ErrDirCreate     ErrorCode = "DIR_CREATE"

	// State store errors
	ErrStateLoad       ErrorCode = "STATE_LOAD"
	ErrStateSave       ErrorCode = "STATE_SAVE"
	ErrStateTransition ErrorCode = "STATE_TRANSITION"

	// Sync errors
	ErrSyncConflict ErrorCode = "SYNC_CONFLICT"

	// Locking errors
	ErrLockHeld ErrorCode = "LOCK_HELD"
)

// JanusError is a structured error carrying a code, a message, and
// optional key/value details for diagnostics.
type JanusError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface.
func (e *JanusError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface.
func (e *JanusError) Unwrap() error {
	return e.Wrapped
}

// Is matches two JanusErrors by code.
func (e *JanusError) Is(target error) bool {
	var targetErr *JanusError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new JanusError with the given code and message.
func New(code ErrorCode, message string) *JanusError {
	return &JanusError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new JanusError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *JanusError {
	return &JanusError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error. Returns nil if err is nil.
func Wrap(err error, code ErrorCode, message string) *JanusError {
	if err == nil {
		return nil
	}
	return &JanusError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *JanusError {
	if err == nil {
		return nil
	}
	return &JanusError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail attaches a detail to the error and returns it.
func (e *JanusError) WithDetail(key string, value interface{}) *JanusError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	var janusErr *JanusError
	if errors.As(err, &janusErr) {
		return janusErr.Code == code
	}
	return false
}

// GetErrorCode returns the code from err, or ErrUnknown for foreign errors.
func GetErrorCode(err error) ErrorCode {
	var janusErr *JanusError
	if errors.As(err, &janusErr) {
		return janusErr.Code
	}
	return ErrUnknown
}
