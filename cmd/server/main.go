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

	"go.uber.org/zap"

	"github.com/rehabfit/backend/internal/api"
	"github.com/rehabfit/backend/internal/auth"
	"github.com/rehabfit/backend/internal/config"
	"github.com/rehabfit/backend/internal/core"
	"github.com/rehabfit/backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Relational store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalw("failed to initialize database", "error", err)
	}
	defer dbStore.Close()

	ctx := context.Background()

	// Leaf clients
	embedder := core.NewEmbeddingClient(cfg.EmbeddingServiceURL, cfg.EmbeddingDimension, sugar)
	vectorIndex := core.NewPineconeClient(cfg.PineconeBaseURL(), cfg.PineconeAPIKey, sugar)

	videoSearch, err := core.NewYouTubeClient(ctx, cfg.YouTubeAPIKey, sugar)
	if err != nil {
		sugar.Fatalw("failed to initialize youtube client", "error", err)
	}

	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, sugar)
	if err != nil {
		sugar.Fatalw("failed to initialize LLM client", "error", err)
	}
	defer llmService.Close()

	// Orchestrator
	ragService := core.NewRAGService(embedder, vectorIndex, videoSearch, llmService, dbStore, sugar)

	// HTTP surface
	jwtManager := auth.NewJWTManager(cfg.JWTSecret)
	googleVerifier := auth.NewGoogleVerifier(cfg.GoogleClientID)
	apiHandler := api.NewAPIHandler(dbStore, jwtManager, googleVerifier, ragService, cfg.AdminToken, sugar)
	router := api.NewRouter(apiHandler, sugar)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming responses manage their own lifetime
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sugar.Infow("starting server", "addr", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "addr", serverAddr, "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Fatalw("server forced to shutdown", "error", err)
	}
	sugar.Info("server exited gracefully")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "DEBUG" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
