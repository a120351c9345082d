// Package agent implements the conversational loop that drives the
// completion service to control a browser through the tool backend.
package agent

import (
	"strings"

	"github.com/testflow/automation-agent/internal/llm"
	"github.com/testflow/automation-agent/internal/mcp"
)

// emptyObjectSchema is used when the backend provides no input schema.
var emptyObjectSchema = map[string]interface{}{
	"type":       "object",
	"properties": map[string]interface{}{},
}

// ToCallSchema converts the backend's tool catalog into the function-calling
// shape the completion API expects.
func ToCallSchema(tools []mcp.ToolDefinition) []llm.Tool {
	schema := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		params := interface{}(t.InputSchema)
		if t.InputSchema == nil {
			params = emptyObjectSchema
		}
		schema = append(schema, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return schema
}

// ToResultText flattens a tool result's content blocks into a single string
// usable as conversation content. Non-text blocks are serialized to their
// JSON representation rather than dropped. A result is never empty: failures
// and blank results become descriptive text.
func ToResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return "(no result)"
	}

	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
			continue
		}
		if raw := block.Raw(); len(raw) > 0 {
			parts = append(parts, string(raw))
		}
	}

	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		if result.IsError {
			return "tool reported an error with no content"
		}
		return "(empty result)"
	}

	if result.IsError {
		return "tool error: " + text
	}
	return text
}
