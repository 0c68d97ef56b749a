package core

import (
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, assertion_failure, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error

	// Hierarchy is the view tree captured when the failure happened.
	Hierarchy *TreeNode
	// DebugMessage carries remediation hints for the user.
	DebugMessage string
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches any ExecutionError with the same code, so copies derived from a
// sentinel still compare equal to it.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *ExecutionError) clone() *ExecutionError {
	c := *e
	return &c
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithMessagef is WithMessage with formatting.
func (e *ExecutionError) WithMessagef(format string, args ...interface{}) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithHierarchy returns a copy carrying a view-tree snapshot.
func (e *ExecutionError) WithHierarchy(root *TreeNode) *ExecutionError {
	c := e.clone()
	c.Hierarchy = root
	return c
}

// WithDebugMessage returns a copy carrying a debug hint.
func (e *ExecutionError) WithDebugMessage(msg string) *ExecutionError {
	c := e.clone()
	c.DebugMessage = msg
	return c
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	c := e.clone()
	c.Details = merged
	return c
}

// Predefined errors
var (
	// Assertion errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrAssertionFailure = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "assertion_failure",
		Message:  "assertion failed",
	}
	ErrUnableToCopyText = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "unable_to_copy_text",
		Message:  "unable to copy text",
	}

	// App errors
	ErrUnableToLaunchApp = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     "unable_to_launch_app",
		Message:  "unable to launch app",
	}
	ErrUnableToSetPermissions = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     "unable_to_set_permissions",
		Message:  "unable to set permissions",
	}
	ErrUnableToClearState = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     "unable_to_clear_state",
		Message:  "unable to clear state",
	}

	// Device capability errors
	ErrUnicodeNotSupported = &ExecutionError{
		Category: ErrCategoryDevice,
		Code:     "unicode_not_supported",
		Message:  "unicode input is not supported",
	}
	ErrDestinationNotWritable = &ExecutionError{
		Category: ErrCategoryDevice,
		Code:     "destination_not_writable",
		Message:  "destination is not writable",
	}

	// Config errors
	ErrInvalidCommand = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_command",
		Message:  "invalid command",
	}
	ErrSelectorCycle = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "selector_cycle",
		Message:  "selector references itself",
	}
	ErrAINotConfigured = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "ai_not_configured",
		Message:  "AI engine is not configured",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// ElementNotFound builds an ElementNotFound error for a selector description.
func ElementNotFound(message string, root *TreeNode, debug string) *ExecutionError {
	return ErrElementNotFound.WithMessage(message).WithHierarchy(root).WithDebugMessage(debug)
}

// AssertionFailure builds an AssertionFailure error.
func AssertionFailure(message string, root *TreeNode, debug string) *ExecutionError {
	return ErrAssertionFailure.WithMessage(message).WithHierarchy(root).WithDebugMessage(debug)
}
