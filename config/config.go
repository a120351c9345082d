// Package config provides configuration for the automation agent.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the agent configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Completion service (OpenAI-compatible)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Tool backend endpoints (comma-separated in env)
	BackendEndpoints []string
	BackendTimeout   time.Duration

	// Agent loop bounds
	MaxIterations    int
	MaxToolCallsPer  int
	MarkerRetryLimit int

	// Video capture
	VideosDir           string
	VideoTimeout        time.Duration
	VideoPollInterval   time.Duration
	VideoSettleDelay    time.Duration
	VideoMinStableBytes int64
	VideoRetentionDays  int
	CleanupInterval     time.Duration

	// Rate limiting (requests per second per client)
	RateLimit float64
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 3000),
		LLMBaseURL:          getEnv("LLM_BASE_URL", "http://litellm:4000"),
		LLMAPIKey:           getEnv("LLM_API_KEY", ""),
		LLMModel:            getEnv("LLM_MODEL", "gpt-4o"),
		LLMTimeout:          time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		BackendEndpoints:    getEnvList("MCP_ENDPOINTS", "http://playwright-mcp:8931/mcp"),
		BackendTimeout:      time.Duration(getEnvInt("MCP_TIMEOUT_MS", 60000)) * time.Millisecond,
		MaxIterations:       getEnvInt("MAX_ITERATIONS", 30),
		MaxToolCallsPer:     getEnvInt("MAX_TOOL_CALLS_PER_ITERATION", 5),
		MarkerRetryLimit:    getEnvInt("MARKER_RETRY_LIMIT", 2),
		VideosDir:           getEnv("VIDEOS_DIR", "/videos"),
		VideoTimeout:        time.Duration(getEnvInt("VIDEO_TIMEOUT_MS", 30000)) * time.Millisecond,
		VideoPollInterval:   time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_MS", 250)) * time.Millisecond,
		VideoSettleDelay:    time.Duration(getEnvInt("VIDEO_SETTLE_DELAY_MS", 750)) * time.Millisecond,
		VideoMinStableBytes: int64(getEnvInt("VIDEO_MIN_STABLE_BYTES", 50*1024)),
		VideoRetentionDays:  getEnvInt("VIDEO_RETENTION_DAYS", 30),
		CleanupInterval:     time.Duration(getEnvInt("CLEANUP_INTERVAL_HOURS", 24)) * time.Hour,
		RateLimit:           float64(getEnvInt("RATE_LIMIT_RPS", 20)),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvList(key, defaultVal string) []string {
	raw := getEnv(key, defaultVal)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
