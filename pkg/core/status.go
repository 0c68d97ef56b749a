package core

import "fmt"

// CommandStatus represents the execution status of a command
type CommandStatus int

const (
	StatusPending   CommandStatus = iota // Not yet started
	StatusRunning                        // Currently executing
	StatusCompleted                      // Completed successfully
	StatusFailed                         // Failed and the failure was not downgraded
	StatusWarned                         // Optional command failed (non-blocking)
	StatusSkipped                        // Guard was false, loop ran zero times, or run was cancelled
)

// String returns the string representation of CommandStatus
func (s CommandStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusWarned:
		return "warned"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name in reports.
func (s CommandStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *CommandStatus) UnmarshalText(text []byte) error {
	for c := StatusPending; c <= StatusSkipped; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown command status %q", text)
}

// IsTerminal returns true if the status is a final state
func (s CommandStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (completed or warned)
func (s CommandStatus) IsSuccess() bool {
	return s == StatusCompleted || s == StatusWarned
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone      ErrorCategory = iota // No error
	ErrCategoryAssertion                      // Element not found, assertion false, nothing to copy
	ErrCategoryApp                            // Launch, permission or state failures
	ErrCategoryDevice                         // Device capability or output destination problems
	ErrCategoryConfig                         // Invalid command or selector, missing collaborator
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryApp:
		return "app"
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ErrorCategory) UnmarshalText(text []byte) error {
	for v := ErrCategoryNone; v <= ErrCategoryConfig; v++ {
		if v.String() == string(text) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown error category %q", text)
}
