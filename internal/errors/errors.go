package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a hindsight error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrToolDisabled    ErrorCode = "TOOL_DISABLED"    // 403
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrTimeout         ErrorCode = "TIMEOUT"          // 408
	ErrUnreadableStore ErrorCode = "UNREADABLE_STORE" // 422
	ErrCommandFailed   ErrorCode = "COMMAND_FAILED"   // 422
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// RecallError represents a structured error with code, status, and details.
type RecallError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *RecallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *RecallError {
	return &RecallError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewToolDisabled creates a 403 error for tools gated off by configuration.
func NewToolDisabled(tool string) *RecallError {
	return &RecallError{
		Code:    ErrToolDisabled,
		Status:  403,
		Message: fmt.Sprintf("tool is disabled by configuration: %s", tool),
		Details: map[string]any{"tool": tool},
	}
}

// NewNotFound creates a 404 error for a path or resource that does not exist.
func NewNotFound(identifier string) *RecallError {
	return &RecallError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewTimeout creates a 408 error for an operation that exceeded its deadline.
func NewTimeout(operation string, seconds float64) *RecallError {
	return &RecallError{
		Code:    ErrTimeout,
		Status:  408,
		Message: fmt.Sprintf("%s timed out after %.1fs", operation, seconds),
		Details: map[string]any{"operation": operation, "timeout_seconds": seconds},
	}
}

// NewUnreadableStore creates a 422 error for a conversation store that could
// not be opened or parsed. The cause is kept in Details for logging.
func NewUnreadableStore(path string, cause error) *RecallError {
	details := map[string]any{"path": path}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &RecallError{
		Code:    ErrUnreadableStore,
		Status:  422,
		Message: fmt.Sprintf("conversation store could not be read: %s", path),
		Details: details,
	}
}

// NewCommandFailed creates a 422 error for a subprocess that could not run.
func NewCommandFailed(command string, cause error) *RecallError {
	details := map[string]any{"command": command}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &RecallError{
		Code:    ErrCommandFailed,
		Status:  422,
		Message: fmt.Sprintf("command failed: %s", command),
		Details: details,
	}
}

// NewInternal creates a 500 error for unexpected internal errors. The message
// is deliberately generic; the original error is stored in Details for logging.
func NewInternal(err error) *RecallError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &RecallError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is a RecallError with the given code, unwrapping as needed.
func Is(err error, code ErrorCode) bool {
	var rErr *RecallError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}
