package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/testflow/automation-agent/domain"
	"github.com/testflow/automation-agent/internal/agent"
	"github.com/testflow/automation-agent/internal/mcp"
	"github.com/testflow/automation-agent/internal/steps"
)

// maxIterationsCap bounds caller-supplied max_iterations.
const maxIterationsCap = 50

// ExecuteTest runs the conversational agent loop.
// POST /execute-test
func (h *Handler) ExecuteTest(c echo.Context) error {
	req, runID, err := h.bindRunRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.Prompt == "" && req.TestDescription == "" && req.Steps.String() == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "one of prompt, test_description or steps is required",
		})
	}

	log.Printf("run %s: agent loop started (record_video=%v)", runID, req.RecordVideo)

	// An abandoned caller must not cancel server-side work; the loop's
	// iteration caps bound total work instead.
	ctx := context.Background()
	runStart := time.Now()

	conn := h.pool.Acquire()
	if err := conn.Connect(ctx); err != nil {
		// Connection failure is a whole-run failure, returned as a normal
		// response for diagnosis.
		return c.JSON(http.StatusOK, &domain.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("failed to connect to tool backend %s: %v", conn.Endpoint(), err),
		})
	}
	defer conn.Close(ctx)

	runner := agent.NewRunner(h.llm, agent.Options{
		Model:            h.config.LLMModel,
		MaxIterations:    h.config.MaxIterations,
		MaxToolCallsPer:  h.config.MaxToolCallsPer,
		MarkerRetryLimit: h.config.MarkerRetryLimit,
	})
	result := runner.Run(ctx, conn, *req)

	h.resolveVideo(ctx, req, runID, runStart, result)

	log.Printf("run %s: finished success=%v iterations=%d coverage=%d/%d video_saved=%v",
		runID, result.Success, result.Iterations, result.CompletedSteps, result.TotalSteps, result.VideoSaved)

	return c.JSON(http.StatusOK, result)
}

// ExecuteSteps runs the deterministic step executor. No LLM calls are made.
// POST /execute-steps
func (h *Handler) ExecuteSteps(c echo.Context) error {
	req, runID, err := h.bindRunRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.Steps.String() == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "steps is required"})
	}

	log.Printf("run %s: step executor started (record_video=%v)", runID, req.RecordVideo)

	ctx := context.Background()
	runStart := time.Now()

	conn := h.pool.Acquire()
	if err := conn.Connect(ctx); err != nil {
		return c.JSON(http.StatusOK, &domain.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("failed to connect to tool backend %s: %v", conn.Endpoint(), err),
		})
	}
	defer conn.Close(ctx)

	executor := steps.NewExecutor(conn, steps.NewMatcher(), steps.Options{})
	result := executor.Run(ctx, *req)

	h.resolveVideo(ctx, req, runID, runStart, result)

	log.Printf("run %s: finished success=%v coverage=%d/%d video_saved=%v",
		runID, result.Success, result.CompletedSteps, result.TotalSteps, result.VideoSaved)

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) bindRunRequest(c echo.Context) (*domain.RunRequest, string, error) {
	var req domain.RunRequest
	if err := c.Bind(&req); err != nil {
		return nil, "", fmt.Errorf("invalid request body")
	}
	if req.MaxIterations < 0 || req.MaxIterations > maxIterationsCap {
		return nil, "", fmt.Errorf("max_iterations must be between 1 and %d", maxIterationsCap)
	}
	if req.VideoPath != "" && !validVideoPath(req.VideoPath) {
		return nil, "", fmt.Errorf("video_path must be a plain relative filename")
	}

	runID := "run_" + uuid.New().String()[:8]
	if req.RecordVideo && req.VideoPath == "" {
		req.VideoPath = fmt.Sprintf("%s_%d.webm", runID, time.Now().Unix())
	}
	return &req, runID, nil
}

// resolveVideo invokes the finalization watcher when recording was
// requested. Failure to capture the artifact never fails the run.
func (h *Handler) resolveVideo(ctx context.Context, req *domain.RunRequest, runID string, runStart time.Time, result *domain.ExecutionResult) {
	if !req.RecordVideo {
		return
	}

	res := h.watcher.Resolve(ctx, runStart, req.VideoPath, h.config.VideoTimeout)
	result.VideoSaved = res.Saved
	if res.Saved {
		result.VideoPath = res.Path
	} else {
		log.Printf("WARN: run %s: no stable video found within %s", runID, h.config.VideoTimeout)
	}
}

// validVideoPath accepts plain relative filenames only, rejecting path
// separators and traversal.
func validVideoPath(p string) bool {
	if p == "" || strings.ContainsAny(p, `/\`) || strings.Contains(p, "..") {
		return false
	}
	return true
}

// Ensure mcp.Client implements the agent's backend interface.
var _ agent.ToolBackend = (*mcp.Client)(nil)
