package agent

import (
	"fmt"
	"strings"

	"github.com/testflow/automation-agent/domain"
	"github.com/testflow/automation-agent/internal/llm"
)

// BuildActionLog renders the ordered tool-invocation log as human-readable
// lines, one per attempted call.
func BuildActionLog(actions []domain.ActionEntry) string {
	var b strings.Builder
	for i, a := range actions {
		if i > 0 {
			b.WriteByte('\n')
		}
		args := a.Args
		if args == "" {
			args = "{}"
		}
		fmt.Fprintf(&b, "iteration %d: %s %s", a.Iteration, a.Tool, args)
		if a.Error != "" {
			fmt.Fprintf(&b, " error: %s", a.Error)
		}
	}
	return b.String()
}

// BuildTranscript converts the conversation history into the caller-facing
// transcript. Assistant tool calls are rendered into the content so the
// transcript stays plain text.
func BuildTranscript(messages []llm.ChatMessage) []domain.TranscriptEntry {
	transcript := make([]domain.TranscriptEntry, 0, len(messages))
	for _, msg := range messages {
		content := msg.Content
		if len(msg.ToolCalls) > 0 {
			var calls []string
			for _, tc := range msg.ToolCalls {
				calls = append(calls, fmt.Sprintf("%s(%s)", tc.Function.Name, tc.Function.Arguments))
			}
			if content != "" {
				content += "\n"
			}
			content += "tool calls: " + strings.Join(calls, ", ")
		}
		transcript = append(transcript, domain.TranscriptEntry{
			Role:       msg.Role,
			Content:    content,
			ToolCallID: msg.ToolCallID,
		})
	}
	return transcript
}

// StepCoverage returns the completed/total ratio, or 0 when no step count
// was ever derivable.
func StepCoverage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total)
}
