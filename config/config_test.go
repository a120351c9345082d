package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != 3000 {
		t.Fatalf("unexpected port: %d", cfg.HTTPPort)
	}
	if cfg.LLMModel != "gpt-4o" {
		t.Fatalf("unexpected model: %s", cfg.LLMModel)
	}
	if len(cfg.BackendEndpoints) != 1 || cfg.BackendEndpoints[0] != "http://playwright-mcp:8931/mcp" {
		t.Fatalf("unexpected endpoints: %v", cfg.BackendEndpoints)
	}
	if cfg.MaxIterations != 30 || cfg.MaxToolCallsPer != 5 || cfg.MarkerRetryLimit != 2 {
		t.Fatalf("unexpected loop bounds: %+v", cfg)
	}
	if cfg.VideoRetentionDays != 30 || cfg.CleanupInterval != 24*time.Hour {
		t.Fatalf("unexpected retention settings: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("MCP_ENDPOINTS", "http://a:8931/mcp, http://b:8931/mcp,")
	t.Setenv("MAX_ITERATIONS", "10")
	t.Setenv("VIDEO_TIMEOUT_MS", "5000")

	cfg := Load()

	if cfg.HTTPPort != 8080 {
		t.Fatalf("unexpected port: %d", cfg.HTTPPort)
	}
	if len(cfg.BackendEndpoints) != 2 || cfg.BackendEndpoints[1] != "http://b:8931/mcp" {
		t.Fatalf("unexpected endpoints: %v", cfg.BackendEndpoints)
	}
	if cfg.MaxIterations != 10 {
		t.Fatalf("unexpected max iterations: %d", cfg.MaxIterations)
	}
	if cfg.VideoTimeout != 5*time.Second {
		t.Fatalf("unexpected video timeout: %s", cfg.VideoTimeout)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("MAX_ITERATIONS", "not-a-number")
	if got := getEnvInt("MAX_ITERATIONS", 30); got != 30 {
		t.Fatalf("expected fallback, got %d", got)
	}
}
