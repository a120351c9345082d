package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/testflow/automation-agent/domain"
	"github.com/testflow/automation-agent/internal/llm"
	"github.com/testflow/automation-agent/internal/mcp"
)

// ToolBackend is the connection the loop drives. *mcp.Client satisfies it.
type ToolBackend interface {
	ListTools(ctx context.Context) ([]mcp.ToolDefinition, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// Options bound the loop's total work. The loop has no wall-clock cutoff of
// its own; callers impose request-level timeouts.
type Options struct {
	Model            string
	MaxIterations    int
	MaxToolCallsPer  int
	MarkerRetryLimit int
}

// Runner drives the completion service through tool calls until the model
// proves every requested step was performed, or the iteration budget runs
// out.
type Runner struct {
	client llm.CompletionClient
	opts   Options
}

// NewRunner creates a runner with the given completion client and bounds.
func NewRunner(client llm.CompletionClient, opts Options) *Runner {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 30
	}
	if opts.MaxToolCallsPer <= 0 {
		opts.MaxToolCallsPer = 5
	}
	if opts.MarkerRetryLimit <= 0 {
		opts.MarkerRetryLimit = 2
	}
	return &Runner{client: client, opts: opts}
}

const systemPromptBase = `You are a browser automation agent. You control a real browser through the provided tools.

Rules:
- Perform EVERY step you are given, in order. Do not skip, merge, or reorder steps.
- Use tools for every browser interaction. Never claim an action happened without calling a tool for it.
- When, and only when, all steps are done, reply WITHOUT tool calls. Your final reply MUST begin with:
  DONE (completed_steps=X total_steps=Y)
  where X is the number of steps you actually completed and Y is the total number of steps.`

const recordingPrompt = `- A video of this session is being recorded. Before your final DONE reply you MUST explicitly close the browser context with the close tool so the recording is flushed to disk.`

// Run executes one agent-driven run against the given backend connection.
// Every failure mode is reported in the returned result, never as an
// opaque error.
func (r *Runner) Run(ctx context.Context, backend ToolBackend, req domain.RunRequest) *domain.ExecutionResult {
	maxIterations := r.opts.MaxIterations
	if req.MaxIterations > 0 {
		maxIterations = req.MaxIterations
	}

	tools, err := backend.ListTools(ctx)
	if err != nil {
		return &domain.ExecutionResult{
			Success:      false,
			Error:        fmt.Sprintf("failed to list backend tools: %v", err),
			ActionsTaken: "",
		}
	}
	callSchema := ToCallSchema(tools)

	messages := []llm.ChatMessage{
		{Role: "system", Content: buildSystemPrompt(req.RecordVideo)},
		{Role: "user", Content: buildUserMessage(req)},
	}

	totalSteps := CountSteps(req.Steps.String())
	completedSteps := 0
	markerRetries := 0

	var actions []domain.ActionEntry
	var finalMessage string
	done := false
	iterations := 0

	for iteration := 1; iteration <= maxIterations; iteration++ {
		iterations = iteration

		resp, err := r.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
			Model:    r.opts.Model,
			Messages: messages,
			Tools:    callSchema,
		})
		if err != nil {
			// Transport failure to the completion service fails the whole
			// run, but the transcript and action log are still returned
			// for diagnosis.
			res := r.buildResult(req, actions, messages, iterations, completedSteps, totalSteps, false)
			res.Error = fmt.Sprintf("completion request failed: %v", err)
			r.closeRecording(ctx, backend, tools, req, &actions)
			return res
		}

		reply := assistantMessage(resp)

		if len(reply.ToolCalls) > 0 {
			if dropped := len(reply.ToolCalls) - r.opts.MaxToolCallsPer; dropped > 0 {
				// Deliberate cost bound: excess calls are dropped, and the
				// recorded assistant message is truncated with them so every
				// remaining call still pairs with exactly one tool message.
				log.Printf("WARN: dropping %d tool call(s) beyond the per-iteration cap", dropped)
				reply.ToolCalls = reply.ToolCalls[:r.opts.MaxToolCallsPer]
			}
			messages = append(messages, reply)
			messages = append(messages, r.executeToolCalls(ctx, backend, reply.ToolCalls, iteration, &actions)...)
			continue
		}

		messages = append(messages, reply)
		finalMessage = reply.Content

		marker := ParseMarker(reply.Content)
		if marker.HasTotal && marker.Total > totalSteps {
			// total_steps never decreases once known.
			totalSteps = marker.Total
		}

		if totalSteps == 0 {
			// Free-form run: any non-tool reply ends it.
			done = true
			break
		}

		if !marker.HasCompleted {
			if markerRetries < r.opts.MarkerRetryLimit {
				markerRetries++
				messages = append(messages, llm.ChatMessage{
					Role: "user",
					Content: fmt.Sprintf("Your reply is missing the completion marker. Reply again and begin with exactly: DONE (completed_steps=X total_steps=%d)", totalSteps),
				})
				continue
			}
			// Retry budget spent: terminate and report the coverage we
			// could prove instead of looping forever.
			break
		}

		completedSteps = marker.Completed
		if completedSteps > totalSteps {
			completedSteps = totalSteps
		}

		if completedSteps < totalSteps {
			messages = append(messages, llm.ChatMessage{
				Role: "user",
				Content: fmt.Sprintf("You completed %d of %d steps. Continue with step %d and perform all remaining steps using tools.", completedSteps, totalSteps, completedSteps+1),
			})
			continue
		}

		done = true
		break
	}

	if !done && totalSteps == 0 {
		completedSteps = 0
	}

	r.closeRecording(ctx, backend, tools, req, &actions)

	success := done && (totalSteps == 0 || completedSteps >= totalSteps)
	res := r.buildResult(req, actions, messages, iterations, completedSteps, totalSteps, success)
	res.Message = finalMessage
	if !done {
		if res.Message == "" {
			res.Message = fmt.Sprintf("stopped after %d iterations without completing all steps", iterations)
		} else if markerRetries >= r.opts.MarkerRetryLimit {
			res.Message = fmt.Sprintf("stopped: model did not report the completion marker after %d retries", markerRetries)
		}
	}
	return res
}

// executeToolCalls runs the truncated tool-call batch sequentially and
// returns one tool message per call, in issue order. Tool calls mutate
// shared browser state, so they are never parallelized.
func (r *Runner) executeToolCalls(ctx context.Context, backend ToolBackend, calls []llm.ToolCall, iteration int, actions *[]domain.ActionEntry) []llm.ChatMessage {
	results := make([]llm.ChatMessage, 0, len(calls))

	for _, call := range calls {
		name := call.Function.Name
		if name == "" {
			log.Printf("WARN: assistant emitted a tool call without a name")
			*actions = append(*actions, domain.ActionEntry{
				Iteration: iteration,
				Tool:      "invalid_tool_call",
				Error:     "tool call missing a name",
			})
			results = append(results, llm.ChatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    "invalid_tool_call: the tool call had no name and was not executed",
			})
			continue
		}

		entry := domain.ActionEntry{Iteration: iteration, Tool: name, Args: call.Function.Arguments}

		args, err := parseArguments(call.Function.Arguments)
		var text string
		if err != nil {
			text = fmt.Sprintf("invalid tool arguments for %s: %v", name, err)
			entry.Error = text
		} else if result, callErr := backend.CallTool(ctx, name, args); callErr != nil {
			// Tool failures become descriptive text; the run never aborts
			// on a tool error.
			text = fmt.Sprintf("tool %s failed: %v", name, callErr)
			entry.Error = callErr.Error()
		} else {
			text = ToResultText(result)
			if result.IsError {
				entry.Error = text
			}
		}

		*actions = append(*actions, entry)
		results = append(results, llm.ChatMessage{
			Role:       "tool",
			ToolCallID: call.ID,
			Content:    text,
		})
	}

	return results
}

// closeRecording issues a best-effort close so the backend flushes the
// recording to disk before the watcher searches for it. Errors are ignored.
func (r *Runner) closeRecording(ctx context.Context, backend ToolBackend, tools []mcp.ToolDefinition, req domain.RunRequest, actions *[]domain.ActionEntry) {
	if !req.RecordVideo {
		return
	}
	name := findCloseTool(tools)
	if name == "" {
		return
	}
	if _, err := backend.CallTool(ctx, name, map[string]interface{}{}); err != nil {
		log.Printf("WARN: close tool call failed: %v", err)
		return
	}
	*actions = append(*actions, domain.ActionEntry{Iteration: 0, Tool: name, Args: "{}"})
}

func findCloseTool(tools []mcp.ToolDefinition) string {
	for _, t := range tools {
		if strings.Contains(strings.ToLower(t.Name), "close") {
			return t.Name
		}
	}
	return ""
}

func (r *Runner) buildResult(req domain.RunRequest, actions []domain.ActionEntry, messages []llm.ChatMessage, iterations, completed, total int, success bool) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		Success:        success,
		Iterations:     iterations,
		Actions:        actions,
		ActionsTaken:   BuildActionLog(actions),
		Transcript:     BuildTranscript(messages),
		CompletedSteps: completed,
		TotalSteps:     total,
		StepCoverage:   StepCoverage(completed, total),
	}
}

func assistantMessage(resp *llm.ChatCompletionResponse) llm.ChatMessage {
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return llm.ChatMessage{Role: "assistant", Content: ""}
	}
	msg := *resp.Choices[0].Message
	msg.Role = "assistant"
	return msg
}

func parseArguments(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func buildSystemPrompt(recordVideo bool) string {
	if recordVideo {
		return systemPromptBase + "\n" + recordingPrompt
	}
	return systemPromptBase
}

func buildUserMessage(req domain.RunRequest) string {
	var parts []string
	if req.Prompt != "" {
		parts = append(parts, req.Prompt)
	}
	if req.TestDescription != "" {
		parts = append(parts, "Test description:\n"+req.TestDescription)
	}
	if steps := req.Steps.String(); steps != "" {
		parts = append(parts, "Steps to perform:\n"+steps)
	}
	if len(parts) == 0 {
		parts = append(parts, "No task was provided.")
	}
	return strings.Join(parts, "\n\n")
}
