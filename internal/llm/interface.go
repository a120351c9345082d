package llm

import "context"

// CompletionClient defines the interface for completion-service operations.
type CompletionClient interface {
	// CreateChatCompletion sends a chat completion request.
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

	// ListModels retrieves the list of available models.
	ListModels(ctx context.Context) ([]Model, error)
}

// Ensure Client implements CompletionClient interface.
var _ CompletionClient = (*Client)(nil)
