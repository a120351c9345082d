// Package api provides the HTTP handlers for the automation agent.
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/testflow/automation-agent/config"
	"github.com/testflow/automation-agent/internal/llm"
	"github.com/testflow/automation-agent/internal/mcp"
	"github.com/testflow/automation-agent/internal/video"
)

// Handler handles HTTP requests.
type Handler struct {
	config  *config.Config
	llm     llm.CompletionClient
	pool    *mcp.Pool
	watcher *video.Watcher
}

// NewHandler creates a new handler.
func NewHandler(cfg *config.Config, llmClient llm.CompletionClient, pool *mcp.Pool, watcher *video.Watcher) *Handler {
	return &Handler{
		config:  cfg,
		llm:     llmClient,
		pool:    pool,
		watcher: watcher,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/execute-test", h.ExecuteTest)
	e.POST("/execute-steps", h.ExecuteSteps)
	e.GET("/videos/:filename", h.GetVideo)
	e.GET("/health", h.Health)
}
