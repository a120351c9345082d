// Package domain defines the request and result types shared across the agent.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RunRequest is the body of a run invocation. It is immutable for the
// duration of one run.
type RunRequest struct {
	Prompt          string     `json:"prompt,omitempty"`
	TestDescription string     `json:"test_description,omitempty"`
	Steps           StepsField `json:"steps,omitempty"`
	MaxIterations   int        `json:"max_iterations,omitempty"`
	RecordVideo     bool       `json:"record_video,omitempty"`
	VideoPath       string     `json:"video_path,omitempty"`
}

// StepsField accepts either a newline-delimited string or an array of step
// strings in the request body. It normalizes to a single string.
type StepsField string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StepsField) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*s = StepsField(asString)
		return nil
	}

	var asList []string
	if err := json.Unmarshal(data, &asList); err == nil {
		*s = StepsField(strings.Join(asList, "\n"))
		return nil
	}

	return fmt.Errorf("steps must be a string or an array of strings")
}

// String returns the normalized step text.
func (s StepsField) String() string { return string(s) }

// ActionEntry is one attempted tool invocation, recorded in issue order.
type ActionEntry struct {
	Iteration int    `json:"iteration"`
	Tool      string `json:"tool"`
	Args      string `json:"args,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TranscriptEntry is one conversation message in the run transcript.
type TranscriptEntry struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ExecutionResult is the outcome of one run, returned to the caller.
// Automation flakiness is always reported as data here, never as an
// opaque server error.
type ExecutionResult struct {
	Success        bool              `json:"success"`
	Message        string            `json:"message,omitempty"`
	Error          string            `json:"error,omitempty"`
	Iterations     int               `json:"iterations"`
	ActionsTaken   string            `json:"actions_taken"`
	Actions        []ActionEntry     `json:"actions,omitempty"`
	Transcript     []TranscriptEntry `json:"transcript,omitempty"`
	CompletedSteps int               `json:"completed_steps"`
	TotalSteps     int               `json:"total_steps"`
	StepCoverage   float64           `json:"step_coverage,omitempty"`
	VideoSaved     bool              `json:"video_saved"`
	VideoPath      string            `json:"video_path,omitempty"`
}
