package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"xflow.dev/assistant/internal/api"
	"xflow.dev/assistant/internal/auth"
	"xflow.dev/assistant/internal/config"
	"xflow.dev/assistant/internal/core"
	"xflow.dev/assistant/internal/logging"
	"xflow.dev/assistant/internal/store"
	"xflow.dev/assistant/internal/xclient"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logging
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()
	sugar.Debugf("Service starting in %s mode", cfg.LogLevel)

	ctx := context.Background()

	// Initialize generative backends
	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.TextModel, sugar)
	if err != nil {
		sugar.Fatalf("Failed to initialize text model: %v", err)
	}
	defer llmService.Close()

	imageService, err := core.NewImageService(ctx, cfg.GeminiAPIKey, cfg.ImageModel, sugar)
	if err != nil {
		sugar.Fatalf("Failed to initialize image model: %v", err)
	}

	// Initialize session registry and domain services
	sessions := store.NewSessions(cfg.SessionTTL, sugar)
	apiHandler := api.NewAPIHandler(api.Services{
		Content:  core.NewContentService(llmService, sugar),
		Media:    core.NewMediaService(imageService, cfg.GiphyAPIKey, sugar),
		Profiles: core.NewProfileService(cfg.ProfileLookupURL, sugar),
		Sessions: sessions,
		Tokens:   auth.NewSessionTokens(cfg.SessionSecret, cfg.SessionTTL),
		X:        xclient.New(cfg.XAPIBaseURL, cfg.XBearerToken, cfg.XAPIRPS),
	}, sugar)
	router := api.NewRouter(apiHandler, logger, cfg.RequestTimeout)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second, // image generation can take a while
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sugar.Infof("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("Server forced to shutdown: %v", err)
	}

	sugar.Infof("Server exiting gracefully, dropping %d sessions", sessions.Count())
}
