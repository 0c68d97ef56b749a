package core

import (
	"time"
)

// CommandResult captures the outcome of one dispatched command
type CommandResult struct {
	// Identity
	Description string `json:"description"`
	Depth       int    `json:"depth"` // 0 for top-level commands, +1 per composite level

	// Status
	Status   CommandStatus `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Error details
	Error        string `json:"error,omitempty"`
	DebugMessage string `json:"debugMessage,omitempty"`

	// Execution annotations
	NumberOfRuns *int         `json:"numberOfRuns,omitempty"`
	Insight      *Insight     `json:"insight,omitempty"`
	AIReasoning  string       `json:"aiReasoning,omitempty"`
	Logs         []string     `json:"logs,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// FlowResult captures the complete outcome of executing a flow
type FlowResult struct {
	// Identity
	Name     string   `json:"name"`
	FilePath string   `json:"filePath"`
	Tags     []string `json:"tags,omitempty"`
	ShardID  string   `json:"shardId,omitempty"`

	// Platform info (captured once per flow)
	PlatformInfo *PlatformInfo `json:"platformInfo,omitempty"`

	// Status (aggregated from commands)
	Status CommandStatus `json:"status"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Commands []CommandResult `json:"commands"`

	// Summary (computed)
	TotalCommands     int `json:"totalCommands"`
	CompletedCommands int `json:"completedCommands"`
	FailedCommands    int `json:"failedCommands"`
	SkippedCommands   int `json:"skippedCommands"`
	WarnedCommands    int `json:"warnedCommands"`

	// Error info (if flow failed)
	Error string `json:"error,omitempty"`
}

// ComputeSummary calculates command counts from the Commands slice
func (f *FlowResult) ComputeSummary() {
	f.TotalCommands = len(f.Commands)
	f.CompletedCommands = 0
	f.FailedCommands = 0
	f.SkippedCommands = 0
	f.WarnedCommands = 0

	for _, c := range f.Commands {
		switch c.Status {
		case StatusCompleted:
			f.CompletedCommands++
		case StatusFailed:
			f.FailedCommands++
		case StatusSkipped:
			f.SkippedCommands++
		case StatusWarned:
			f.WarnedCommands++
		}
	}
}

// SuiteResult captures the outcome of executing multiple flows
type SuiteResult struct {
	RunID string `json:"runId"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Flows []FlowResult `json:"flows"`

	TotalFlows   int `json:"totalFlows"`
	PassedFlows  int `json:"passedFlows"`
	FailedFlows  int `json:"failedFlows"`
	SkippedFlows int `json:"skippedFlows"`
}

// ComputeSummary calculates flow counts from the Flows slice
func (s *SuiteResult) ComputeSummary() {
	s.TotalFlows = len(s.Flows)
	s.PassedFlows = 0
	s.FailedFlows = 0
	s.SkippedFlows = 0

	for _, flow := range s.Flows {
		switch flow.Status {
		case StatusCompleted, StatusWarned:
			s.PassedFlows++
		case StatusFailed:
			s.FailedFlows++
		case StatusSkipped:
			s.SkippedFlows++
		}
	}
}

// Success returns true if all flows passed (including warned)
func (s *SuiteResult) Success() bool {
	for _, flow := range s.Flows {
		if !flow.Status.IsSuccess() {
			return false
		}
	}
	return len(s.Flows) > 0
}
