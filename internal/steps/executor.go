package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/testflow/automation-agent/domain"
	"github.com/testflow/automation-agent/internal/agent"
	"github.com/testflow/automation-agent/internal/mcp"
)

// Options holds the executor's timing knobs.
type Options struct {
	// SettleDelay is the pause issued after navigation and clicks.
	SettleDelay time.Duration
}

// Executor runs numbered steps against the tool backend without LLM
// reasoning. Unlike the agent loop it fails fast: an unresolvable element
// stops all remaining steps.
type Executor struct {
	backend agent.ToolBackend
	matcher Matcher
	opts    Options
}

// NewExecutor creates an executor over one backend connection.
func NewExecutor(backend agent.ToolBackend, matcher Matcher, opts Options) *Executor {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = time.Second
	}
	if matcher == nil {
		matcher = NewMatcher()
	}
	return &Executor{backend: backend, matcher: matcher, opts: opts}
}

// toolNames holds the backend tools resolved for this run.
type toolNames struct {
	navigate string
	click    string
	snapshot string
	wait     string
	close    string
}

// Run executes the request's steps in order and reports how many of the
// total steps were attempted, regardless of where it stopped.
func (e *Executor) Run(ctx context.Context, req domain.RunRequest) *domain.ExecutionResult {
	parsed := ParseSteps(req.Steps.String())
	total := len(parsed)
	if total == 0 {
		return &domain.ExecutionResult{
			Success: false,
			Error:   "no steps to execute",
		}
	}

	tools, err := e.backend.ListTools(ctx)
	if err != nil {
		return &domain.ExecutionResult{
			Success:    false,
			Error:      fmt.Sprintf("failed to list backend tools: %v", err),
			TotalSteps: total,
		}
	}

	names := resolveTools(tools)
	if names.navigate == "" || names.click == "" || names.snapshot == "" {
		return &domain.ExecutionResult{
			Success:    false,
			Error:      "backend is missing required tools (navigate/click/snapshot)",
			TotalSteps: total,
		}
	}

	firstURL := FirstURL(parsed)
	navigated := false
	completed := 0
	attempted := 0
	var actions []domain.ActionEntry

	for _, step := range parsed {
		attempted++

		switch {
		case containsURL(step.Text):
			// Only one navigation per run; later URL-bearing steps are
			// already satisfied by it.
			if !navigated && firstURL != "" {
				entry, err := e.invoke(ctx, step.Number, names.navigate, map[string]interface{}{"url": firstURL})
				actions = append(actions, entry)
				if err != nil {
					return e.finish(req, actions, names, completed, total, attempted,
						fmt.Sprintf("navigation to %s failed", firstURL))
				}
				navigated = true
				e.pause(ctx, names, 1)
			}
			completed++

		case hasKeyword(step.Text, "wait"):
			secs := parseWaitSeconds(step.Text)
			entry, _ := e.waitFor(ctx, step.Number, names, secs)
			actions = append(actions, entry)
			completed++

		case hasKeyword(step.Text, "click", "press", "tap", "open", "select", "tick", "check"):
			// The resolution snapshot is an internal lookup, not a browser
			// action, so it is not recorded in the action log.
			target := extractTarget(step.Text)
			snapshotText, err := e.takeSnapshot(ctx, names)
			if err != nil {
				actions = append(actions, domain.ActionEntry{
					Iteration: step.Number,
					Tool:      names.snapshot,
					Error:     err.Error(),
				})
				return e.finish(req, actions, names, completed, total, attempted,
					fmt.Sprintf("snapshot failed before resolving %q", target))
			}

			line, ok := e.matcher.Match(snapshotText, target)
			if !ok {
				// Fatal to the remaining steps, but reported as data.
				actions = append(actions, domain.ActionEntry{
					Iteration: step.Number,
					Tool:      names.click,
					Error:     fmt.Sprintf("no element matching %q found on the page", target),
				})
				return e.finish(req, actions, names, completed, total, attempted,
					fmt.Sprintf("stopped at step %d: no element matching %q", step.Number, target))
			}

			args := map[string]interface{}{"element": target}
			if ref := ExtractRef(line); ref != "" {
				args["ref"] = ref
			}
			clickEntry, err := e.invoke(ctx, step.Number, names.click, args)
			actions = append(actions, clickEntry)
			if err != nil {
				return e.finish(req, actions, names, completed, total, attempted,
					fmt.Sprintf("click on %q failed", target))
			}
			e.pause(ctx, names, 1)
			completed++

		default:
			// Observe/verify/assert/expect and anything unmatched: no
			// assertion primitive exists, so take a snapshot and move on.
			entry := domain.ActionEntry{Iteration: step.Number, Tool: names.snapshot, Args: "{}"}
			if _, err := e.takeSnapshot(ctx, names); err != nil {
				entry.Error = err.Error()
				actions = append(actions, entry)
				return e.finish(req, actions, names, completed, total, attempted,
					"snapshot failed")
			}
			actions = append(actions, entry)
			completed++
		}
	}

	return e.finish(req, actions, names, completed, total, attempted,
		fmt.Sprintf("completed %d of %d steps", completed, total))
}

func (e *Executor) finish(req domain.RunRequest, actions []domain.ActionEntry, names toolNames, completed, total, attempted int, message string) *domain.ExecutionResult {
	e.closeRecording(req, names, &actions)
	return &domain.ExecutionResult{
		Success:        completed == total,
		Message:        fmt.Sprintf("%s (attempted %d of %d)", message, attempted, total),
		Iterations:     attempted,
		Actions:        actions,
		ActionsTaken:   agent.BuildActionLog(actions),
		CompletedSteps: completed,
		TotalSteps:     total,
		StepCoverage:   agent.StepCoverage(completed, total),
	}
}

// invoke calls one tool and records the attempt. Backend-reported tool
// errors are returned so callers can stop, but the entry is always
// produced.
func (e *Executor) invoke(ctx context.Context, stepNumber int, tool string, args map[string]interface{}) (domain.ActionEntry, error) {
	argsJSON, _ := json.Marshal(args)
	entry := domain.ActionEntry{Iteration: stepNumber, Tool: tool, Args: string(argsJSON)}

	result, err := e.backend.CallTool(ctx, tool, args)
	if err != nil {
		entry.Error = err.Error()
		return entry, err
	}
	if result.IsError {
		text := agent.ToResultText(result)
		entry.Error = text
		return entry, fmt.Errorf("%s", text)
	}
	return entry, nil
}

func (e *Executor) takeSnapshot(ctx context.Context, names toolNames) (string, error) {
	result, err := e.backend.CallTool(ctx, names.snapshot, map[string]interface{}{})
	if err != nil {
		return "", err
	}
	return agent.ToResultText(result), nil
}

// waitFor issues a timed pause through the backend's wait tool when it has
// one, falling back to a local sleep.
func (e *Executor) waitFor(ctx context.Context, stepNumber int, names toolNames, secs int) (domain.ActionEntry, error) {
	if names.wait != "" {
		return e.invoke(ctx, stepNumber, names.wait, map[string]interface{}{"time": secs})
	}
	select {
	case <-time.After(time.Duration(secs) * time.Second):
	case <-ctx.Done():
	}
	return domain.ActionEntry{Iteration: stepNumber, Tool: "wait", Args: fmt.Sprintf(`{"time":%d}`, secs)}, nil
}

// pause is the short settle wait after navigation and clicks.
func (e *Executor) pause(ctx context.Context, names toolNames, secs int) {
	if names.wait != "" {
		if _, err := e.backend.CallTool(ctx, names.wait, map[string]interface{}{"time": secs}); err != nil {
			log.Printf("WARN: settle wait failed: %v", err)
		}
		return
	}
	select {
	case <-time.After(e.opts.SettleDelay):
	case <-ctx.Done():
	}
}

func (e *Executor) closeRecording(req domain.RunRequest, names toolNames, actions *[]domain.ActionEntry) {
	if !req.RecordVideo || names.close == "" {
		return
	}
	if _, err := e.backend.CallTool(context.Background(), names.close, map[string]interface{}{}); err != nil {
		log.Printf("WARN: close tool call failed: %v", err)
		return
	}
	*actions = append(*actions, domain.ActionEntry{Iteration: 0, Tool: names.close, Args: "{}"})
}

func resolveTools(tools []mcp.ToolDefinition) toolNames {
	var names toolNames
	for _, t := range tools {
		lower := strings.ToLower(t.Name)
		switch {
		case names.navigate == "" && strings.Contains(lower, "navigate"):
			names.navigate = t.Name
		case names.click == "" && strings.Contains(lower, "click"):
			names.click = t.Name
		case names.snapshot == "" && strings.Contains(lower, "snapshot"):
			names.snapshot = t.Name
		case names.wait == "" && strings.Contains(lower, "wait"):
			names.wait = t.Name
		case names.close == "" && strings.Contains(lower, "close"):
			names.close = t.Name
		}
	}
	return names
}
