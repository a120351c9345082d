package llm

import (
	"log"
	"os"
	"time"
)

const (
	// EnvAgentMode is the environment variable name for mode selection.
	EnvAgentMode = "AGENT_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewCompletionClient creates a completion client based on the AGENT_MODE
// environment variable. If AGENT_MODE=MOCK, returns a MockClient; otherwise
// returns a real Client.
func NewCompletionClient(baseURL, apiKey string, timeout time.Duration) CompletionClient {
	mode := os.Getenv(EnvAgentMode)

	if mode == ModeMock {
		log.Println("AGENT_MODE=MOCK detected, using mock completion client")
		return NewMockClient()
	}

	return NewClient(baseURL, apiKey, timeout)
}
