package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	err := &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "test_error",
		Message:  "test message",
	}

	if got := err.Error(); got != "test message" {
		t.Errorf("Error() = %q, want %q", got, "test message")
	}
}

func TestExecutionError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := ErrUnableToLaunchApp.WithMessage("Unable to launch app com.example").WithCause(cause)

	got := err.Error()
	if !strings.Contains(got, "Unable to launch app com.example") {
		t.Errorf("Error() = %q, should contain the message", got)
	}
	if !strings.Contains(got, "underlying error") {
		t.Errorf("Error() = %q, should contain the cause", got)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}
}

func TestExecutionError_CopiesDoNotMutateSentinel(t *testing.T) {
	root := &TreeNode{Attributes: map[string]string{"text": "root"}}
	err := ErrElementNotFound.
		WithMessage("Element not found: Text matching regex: Login").
		WithHierarchy(root).
		WithDebugMessage("check the hierarchy").
		WithDetails(map[string]interface{}{"selector": "Login"})

	if err.Hierarchy != root {
		t.Error("WithHierarchy() did not set hierarchy")
	}
	if err.DebugMessage != "check the hierarchy" {
		t.Errorf("DebugMessage = %q, want %q", err.DebugMessage, "check the hierarchy")
	}
	if ErrElementNotFound.Message != "element not found" {
		t.Errorf("sentinel message changed to %q", ErrElementNotFound.Message)
	}
	if ErrElementNotFound.Hierarchy != nil || ErrElementNotFound.DebugMessage != "" {
		t.Error("sentinel was modified")
	}
	if _, ok := ErrElementNotFound.Details["selector"]; ok {
		t.Error("WithDetails() modified original error")
	}
}

func TestExecutionError_IsMatchesByCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target *ExecutionError
		want   bool
	}{
		{"derived copy", ErrElementNotFound.WithMessage("x"), ErrElementNotFound, true},
		{"wrapped copy", fmt.Errorf("lookup: %w", AssertionFailure("Assertion is false: x", nil, "")), ErrAssertionFailure, true},
		{"other code", ErrUnableToClearState.WithMessage("x"), ErrUnableToLaunchApp, false},
		{"plain error", errors.New("boom"), ErrElementNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err      *ExecutionError
		category ErrorCategory
		code     string
	}{
		{ErrElementNotFound, ErrCategoryAssertion, "element_not_found"},
		{ErrAssertionFailure, ErrCategoryAssertion, "assertion_failure"},
		{ErrUnableToCopyText, ErrCategoryAssertion, "unable_to_copy_text"},
		{ErrUnableToLaunchApp, ErrCategoryApp, "unable_to_launch_app"},
		{ErrUnableToSetPermissions, ErrCategoryApp, "unable_to_set_permissions"},
		{ErrUnableToClearState, ErrCategoryApp, "unable_to_clear_state"},
		{ErrUnicodeNotSupported, ErrCategoryDevice, "unicode_not_supported"},
		{ErrDestinationNotWritable, ErrCategoryDevice, "destination_not_writable"},
		{ErrInvalidCommand, ErrCategoryConfig, "invalid_command"},
		{ErrSelectorCycle, ErrCategoryConfig, "selector_cycle"},
		{ErrAINotConfigured, ErrCategoryConfig, "ai_not_configured"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("Category = %s, want %s", tt.err.Category, tt.category)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNewExecutionError(t *testing.T) {
	err := NewExecutionError(ErrCategoryApp, "custom_error", "custom message")

	if err.Category != ErrCategoryApp {
		t.Errorf("Category = %s, want %s", err.Category, ErrCategoryApp)
	}
	if err.Code != "custom_error" {
		t.Errorf("Code = %s, want 'custom_error'", err.Code)
	}
	if err.Message != "custom message" {
		t.Errorf("Message = %s, want 'custom message'", err.Message)
	}
}
