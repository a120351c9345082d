package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/time/rate"

	"github.com/testflow/automation-agent/api"
	"github.com/testflow/automation-agent/config"
	"github.com/testflow/automation-agent/internal/llm"
	"github.com/testflow/automation-agent/internal/mcp"
	"github.com/testflow/automation-agent/internal/video"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting automation agent...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Completion service: %s (model %s)", cfg.LLMBaseURL, cfg.LLMModel)
	log.Printf("Tool backend endpoints: %v", cfg.BackendEndpoints)
	log.Printf("Videos directory: %s (retention %dd)", cfg.VideosDir, cfg.VideoRetentionDays)

	if err := os.MkdirAll(cfg.VideosDir, 0o755); err != nil {
		log.Fatalf("Failed to create videos directory: %v", err)
	}

	// Initialize completion client
	llmClient := llm.NewCompletionClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)

	// Initialize tool-backend pool
	pool := mcp.NewPool(cfg.BackendEndpoints, cfg.BackendTimeout)

	// Initialize video watcher
	watcher := video.NewWatcher(video.Options{
		Dir:            cfg.VideosDir,
		PollInterval:   cfg.VideoPollInterval,
		SettleDelay:    cfg.VideoSettleDelay,
		MinStableBytes: cfg.VideoMinStableBytes,
	})

	// Initialize handler
	h := api.NewHandler(cfg, llmClient, pool, watcher)

	// Start video retention janitor
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	janitor := video.NewJanitor(cfg.VideosDir, cfg.VideoRetentionDays, cfg.CleanupInterval)
	go janitor.Run(janitorCtx)

	// Create Echo server
	server := echo.New()
	server.HideBanner = true

	// Middleware
	server.Use(middleware.Logger())
	server.Use(middleware.Recover())
	server.Use(middleware.CORS())
	server.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))

	// Register routes
	h.RegisterRoutes(server)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Automation agent started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down automation agent...")
	stopJanitor()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Automation agent stopped")
}
