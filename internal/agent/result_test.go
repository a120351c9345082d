package agent

import (
	"testing"

	"github.com/testflow/automation-agent/domain"
	"github.com/testflow/automation-agent/internal/llm"
)

func TestBuildActionLog(t *testing.T) {
	actions := []domain.ActionEntry{
		{Iteration: 1, Tool: "browser_navigate", Args: `{"url":"https://x.test"}`},
		{Iteration: 2, Tool: "browser_click", Args: `{"element":"Sign in"}`, Error: "element not found"},
		{Iteration: 0, Tool: "browser_close"},
	}

	got := BuildActionLog(actions)
	want := `iteration 1: browser_navigate {"url":"https://x.test"}` + "\n" +
		`iteration 2: browser_click {"element":"Sign in"} error: element not found` + "\n" +
		`iteration 0: browser_close {}`
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}

	if BuildActionLog(nil) != "" {
		t.Fatalf("expected empty log for no actions")
	}
}

func TestBuildTranscriptRendersToolCalls(t *testing.T) {
	messages := []llm.ChatMessage{
		{Role: "system", Content: "rules"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{
			{ID: "c1", Type: "function", Function: llm.ToolCallFunction{Name: "browser_click", Arguments: `{"element":"OK"}`}},
		}},
		{Role: "tool", ToolCallID: "c1", Content: "ok"},
	}

	transcript := BuildTranscript(messages)
	if len(transcript) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(transcript))
	}
	if transcript[1].Content != `tool calls: browser_click({"element":"OK"})` {
		t.Fatalf("unexpected rendered tool calls: %q", transcript[1].Content)
	}
	if transcript[2].ToolCallID != "c1" {
		t.Fatalf("tool call id lost: %+v", transcript[2])
	}
}

func TestStepCoverage(t *testing.T) {
	if got := StepCoverage(3, 4); got != 0.75 {
		t.Fatalf("got %v", got)
	}
	if got := StepCoverage(0, 0); got != 0 {
		t.Fatalf("expected 0 for unknown total, got %v", got)
	}
}
