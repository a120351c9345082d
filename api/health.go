package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const healthCheckTimeout = 2 * time.Second

// DependencyStatus describes one dependency's health.
type DependencyStatus struct {
	Status         string  `json:"status"`
	Message        string  `json:"message"`
	ResponseTimeMs float64 `json:"response_time_ms"`
	URL            string  `json:"url,omitempty"`
}

// Health reports reachability of the completion service and the tool
// backend, including whether the minimal tool set is present.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	dependencies := map[string]DependencyStatus{
		"completion_service": h.checkCompletionService(ctx),
		"tool_backend":       h.checkToolBackend(ctx),
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       aggregateStatus(dependencies),
		"service":      "automation-agent",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"dependencies": dependencies,
		"video_retention": map[string]interface{}{
			"retention_days":   h.config.VideoRetentionDays,
			"videos_directory": h.config.VideosDir,
		},
	})
}

func (h *Handler) checkCompletionService(ctx context.Context) DependencyStatus {
	start := time.Now()
	models, err := h.llm.ListModels(ctx)
	elapsed := roundMs(time.Since(start))

	if err != nil {
		return DependencyStatus{
			Status:         "unhealthy",
			Message:        fmt.Sprintf("completion service error: %v", err),
			ResponseTimeMs: elapsed,
			URL:            h.config.LLMBaseURL,
		}
	}
	if len(models) == 0 {
		return DependencyStatus{
			Status:         "degraded",
			Message:        "completion service reachable but no models are installed",
			ResponseTimeMs: elapsed,
			URL:            h.config.LLMBaseURL,
		}
	}
	return DependencyStatus{
		Status:         "healthy",
		Message:        fmt.Sprintf("completion service available with %d model(s)", len(models)),
		ResponseTimeMs: elapsed,
		URL:            h.config.LLMBaseURL,
	}
}

// requiredToolKinds are the tool-name fragments a usable backend must offer.
var requiredToolKinds = []string{"navigate", "click", "snapshot"}

func (h *Handler) checkToolBackend(ctx context.Context) DependencyStatus {
	start := time.Now()
	conn := h.pool.Acquire()

	status := func(s, msg string) DependencyStatus {
		return DependencyStatus{
			Status:         s,
			Message:        msg,
			ResponseTimeMs: roundMs(time.Since(start)),
			URL:            conn.Endpoint(),
		}
	}

	if err := conn.Connect(ctx); err != nil {
		return status("unhealthy", fmt.Sprintf("tool backend error: %v", err))
	}
	defer conn.Close(ctx)

	tools, err := conn.ListTools(ctx)
	if err != nil {
		return status("unhealthy", fmt.Sprintf("tool backend error: %v", err))
	}

	var missing []string
	for _, kind := range requiredToolKinds {
		found := false
		for _, t := range tools {
			if strings.Contains(strings.ToLower(t.Name), kind) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, kind)
		}
	}
	if len(missing) > 0 {
		return status("degraded", fmt.Sprintf("tool backend reachable but missing required tools: %s", strings.Join(missing, ", ")))
	}

	return status("healthy", fmt.Sprintf("tool backend available with %d tool(s)", len(tools)))
}

// aggregateStatus mirrors the platform convention: healthy only when every
// dependency is healthy, degraded when any is unhealthy.
func aggregateStatus(deps map[string]DependencyStatus) string {
	allHealthy := true
	anyUnhealthy := false
	for _, d := range deps {
		if d.Status != "healthy" {
			allHealthy = false
		}
		if d.Status == "unhealthy" {
			anyUnhealthy = true
		}
	}
	switch {
	case allHealthy:
		return "healthy"
	case anyUnhealthy:
		return "degraded"
	default:
		return "unknown"
	}
}

func roundMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
