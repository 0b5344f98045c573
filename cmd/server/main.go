package main

import (
	"alcyxob/fitness-coach/internal/api"
	"alcyxob/fitness-coach/internal/app"
	"alcyxob/fitness-coach/internal/config"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// @title Fitness Coach API
// @version 1.0
// @description Exercise retrieval and workout plan generation.
// @host localhost:8080
// @BasePath /api/v1
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Could not load .env file")
	}

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	if err := app.ConfigureLogging(cfg.Log); err != nil {
		log.Fatalf("FATAL: Invalid log configuration: %v", err)
	}
	log.Info("Starting Fitness Coach Server...")
	log.WithFields(log.Fields{
		"catalog":   cfg.Catalog.Source,
		"embedding": cfg.Embedding.Provider,
		"model":     cfg.Embedding.Model,
		"backend":   cfg.Index.Backend,
	}).Info("Configuration loaded.")

	// --- Initialize Services ---
	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("FATAL: Could not initialize services: %v", err)
	}
	defer application.Close()

	if cfg.Retrieval.Warmup {
		go func() {
			log.Info("Warming up exercise retrieval...")
			if err := application.Retrieval.Warmup(ctx); err != nil {
				log.WithError(err).Warn("Warmup failed; retrieval will be initialized on first request")
			}
		}()
	}

	// --- Initialize Gin Engine ---
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	// --- Setup Routes ---
	log.Info("Setting up API routes...")
	api.SetupRoutes(router, application.Retrieval, application.Planner, application.Metrics)

	// --- Start HTTP Server ---
	// Plan generation waits on the chat model, so writes get a long timeout.
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Infof("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exiting.")
}
