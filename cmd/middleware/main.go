package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/liliang-cn/ragchat/internal/api"
	"github.com/liliang-cn/ragchat/internal/config"
	"github.com/liliang-cn/ragchat/internal/llm"
	"github.com/liliang-cn/ragchat/internal/logging"
	"github.com/liliang-cn/ragchat/internal/service"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Backend client; the backend timeout bounds every proxied call
	backend := llm.NewClient(llm.Config{
		BaseURL: cfg.Backend.BaseURL,
		Model:   cfg.Backend.Model,
		Timeout: cfg.Backend.Timeout,
	})
	proxyService := service.NewProxyService(backend, logger.Named("proxy"))

	// Setup router
	router := api.SetupRouter(proxyService, logger, api.RouterConfig{
		APIKey:            cfg.Proxy.APIKey,
		AllowOrigins:      cfg.Proxy.AllowOrigins,
		MaskBackendErrors: cfg.Proxy.MaskBackendErrors,
	})

	// Create HTTP server. Writes may wait on the backend for the full backend timeout.
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Backend.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting ragchat middleware",
			zap.String("address", cfg.Address()),
			zap.String("backend", cfg.Backend.BaseURL),
			zap.String("model", cfg.Backend.Model),
			zap.Bool("mask_backend_errors", cfg.Proxy.MaskBackendErrors),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
