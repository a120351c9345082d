package llm

import (
	"context"
	"fmt"
	"time"
)

// MockClient is a mock implementation of CompletionClient for offline smoke
// testing of the HTTP surface. It never requests tool calls and immediately
// declares the run complete.
type MockClient struct{}

// NewMockClient creates a new mock completion client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements CompletionClient interface.
var _ CompletionClient = (*MockClient)(nil)

// CreateChatCompletion returns a canned completion-marker response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	total := 0
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			total = countEnumeratedLines(msg.Content)
			break
		}
	}

	content := fmt.Sprintf("[MOCK] DONE (completed_steps=%d total_steps=%d)", total, total)

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
	}, nil
}

// ListModels returns a list of mock models.
func (m *MockClient) ListModels(ctx context.Context) ([]Model, error) {
	return []Model{
		{
			ID:      "mock-gpt-4o",
			Object:  "model",
			Created: time.Now().Unix(),
			OwnedBy: "mock",
		},
	}, nil
}

func countEnumeratedLines(text string) int {
	count := 0
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			line := text[start:i]
			if len(line) > 2 && line[0] >= '1' && line[0] <= '9' {
				count++
			}
			start = i + 1
		}
	}
	return count
}
