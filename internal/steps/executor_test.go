package steps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/testflow/automation-agent/domain"
	"github.com/testflow/automation-agent/internal/mcp"
)

type recordedCall struct {
	name string
	args map[string]interface{}
}

// scriptedBackend serves a fixed snapshot and records every tool call.
type scriptedBackend struct {
	tools    []mcp.ToolDefinition
	snapshot string
	clickErr string
	calls    []recordedCall
}

func (b *scriptedBackend) ListTools(ctx context.Context) ([]mcp.ToolDefinition, error) {
	return b.tools, nil
}

func (b *scriptedBackend) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	b.calls = append(b.calls, recordedCall{name: name, args: args})

	text := "ok"
	isError := false
	switch name {
	case "browser_snapshot":
		text = b.snapshot
	case "browser_click":
		if b.clickErr != "" {
			text = b.clickErr
			isError = true
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: text}},
		IsError: isError,
	}, nil
}

func (b *scriptedBackend) called(name string) int {
	n := 0
	for _, c := range b.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func fullToolset() []mcp.ToolDefinition {
	return []mcp.ToolDefinition{
		{Name: "browser_navigate"},
		{Name: "browser_click"},
		{Name: "browser_snapshot"},
		{Name: "browser_wait_for"},
		{Name: "browser_close"},
	}
}

func newTestExecutor(backend *scriptedBackend) *Executor {
	return NewExecutor(backend, NewMatcher(), Options{SettleDelay: time.Millisecond})
}

func TestExecutorHappyPath(t *testing.T) {
	backend := &scriptedBackend{
		tools:    fullToolset(),
		snapshot: loginSnapshot,
	}
	executor := newTestExecutor(backend)

	result := executor.Run(context.Background(), domain.RunRequest{
		Steps: "1. Open https://x.test/login\n2. Click \"Sign in\"",
	})

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.CompletedSteps)
	assert.Equal(t, 2, result.TotalSteps)
	assert.Equal(t, 1.0, result.StepCoverage)

	assert.Equal(t, 1, backend.called("browser_navigate"))
	assert.Equal(t, 1, backend.called("browser_click"))

	// The click carries the element phrase and the ref resolved from the
	// snapshot.
	for _, c := range backend.calls {
		if c.name == "browser_click" {
			assert.Equal(t, "Sign in", c.args["element"])
			assert.Equal(t, "e12", c.args["ref"])
		}
	}
}

func TestExecutorFailsFastOnUnresolvableTarget(t *testing.T) {
	backend := &scriptedBackend{
		tools:    fullToolset(),
		snapshot: `- heading "Totally different page" [ref=e1]`,
	}
	executor := newTestExecutor(backend)

	result := executor.Run(context.Background(), domain.RunRequest{
		Steps: "1. Open https://x.test/login\n2. Click \"Sign in\"\n3. Verify the dashboard",
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.CompletedSteps)
	assert.Equal(t, 3, result.TotalSteps)
	assert.Contains(t, result.Message, `no element matching "Sign in"`)

	// The action log holds exactly the navigation and the failed click.
	// The resolution snapshot is an internal lookup and is not recorded.
	assert.Len(t, result.Actions, 2)
	assert.Equal(t, "browser_navigate", result.Actions[0].Tool)
	assert.Empty(t, result.Actions[0].Error)
	assert.Equal(t, "browser_click", result.Actions[1].Tool)
	assert.Contains(t, result.Actions[1].Error, "no element matching")

	// Step 3 never ran.
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 0, backend.called("browser_click"))
}

func TestExecutorSingleNavigation(t *testing.T) {
	backend := &scriptedBackend{tools: fullToolset(), snapshot: loginSnapshot}
	executor := newTestExecutor(backend)

	result := executor.Run(context.Background(), domain.RunRequest{
		Steps: "1. Open https://a.test/start\n2. Go to https://b.test/other",
	})

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.CompletedSteps)
	// Only the first URL is navigated to; the later URL step is satisfied
	// by that same navigation.
	assert.Equal(t, 1, backend.called("browser_navigate"))
	assert.Equal(t, "https://a.test/start", backend.calls[0].args["url"])
}

func TestExecutorWaitStep(t *testing.T) {
	backend := &scriptedBackend{tools: fullToolset(), snapshot: loginSnapshot}
	executor := newTestExecutor(backend)

	result := executor.Run(context.Background(), domain.RunRequest{
		Steps: "1. Wait 3 seconds",
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.CompletedSteps)
	assert.Equal(t, 1, backend.called("browser_wait_for"))
	assert.Equal(t, 3, backend.calls[0].args["time"])
}

func TestExecutorObserveStepTakesSnapshot(t *testing.T) {
	backend := &scriptedBackend{tools: fullToolset(), snapshot: loginSnapshot}
	executor := newTestExecutor(backend)

	result := executor.Run(context.Background(), domain.RunRequest{
		Steps: "1. Verify the dashboard shows three widgets",
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, backend.called("browser_snapshot"))
	assert.Len(t, result.Actions, 1)
	assert.Equal(t, "browser_snapshot", result.Actions[0].Tool)
}

func TestExecutorClosesRecording(t *testing.T) {
	backend := &scriptedBackend{tools: fullToolset(), snapshot: loginSnapshot}
	executor := newTestExecutor(backend)

	result := executor.Run(context.Background(), domain.RunRequest{
		Steps:       "1. Verify the page",
		RecordVideo: true,
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, backend.called("browser_close"))
}

func TestExecutorRequiresCoreTools(t *testing.T) {
	backend := &scriptedBackend{
		tools: []mcp.ToolDefinition{{Name: "browser_navigate"}},
	}
	executor := newTestExecutor(backend)

	result := executor.Run(context.Background(), domain.RunRequest{Steps: "1. Click \"Go\""})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "missing required tools")
}

func TestExecutorNoSteps(t *testing.T) {
	backend := &scriptedBackend{tools: fullToolset()}
	executor := newTestExecutor(backend)

	result := executor.Run(context.Background(), domain.RunRequest{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no steps")
}
