package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/BerylCAtieno/document-task-extractor/internal/analyzer"
	"github.com/BerylCAtieno/document-task-extractor/internal/config"
	"github.com/BerylCAtieno/document-task-extractor/internal/db"
	"github.com/BerylCAtieno/document-task-extractor/internal/llm"
	"github.com/BerylCAtieno/document-task-extractor/internal/metrics"
	"github.com/BerylCAtieno/document-task-extractor/internal/repository"
	"github.com/BerylCAtieno/document-task-extractor/internal/router"
	"github.com/BerylCAtieno/document-task-extractor/internal/services"
	"github.com/BerylCAtieno/document-task-extractor/internal/storage"
	"github.com/BerylCAtieno/document-task-extractor/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, closeLog := utils.NewFileLogger(cfg.LogLevel, cfg.LogFile)
	defer closeLog()

	// Run migrations before the long-lived connection is opened
	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	database, err := db.NewSQLiteDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to open database", "error", err, "path", cfg.DatabaseURL)
	}
	defer database.Close()

	store, err := storage.NewS3Storage(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to initialize S3 storage", "error", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	pipelineCfg := cfg.Pipeline()
	client := llm.NewOpenRouterClient(llm.NewClientConfig(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, pipelineCfg), logger, m)
	pipeline := analyzer.NewPipeline(pipelineCfg, client, logger, m)

	docRepo := repository.NewRepository(database)
	docService := services.NewService(docRepo, store, pipeline, logger)

	handler := router.NewRouter(docService, logger, router.Options{
		MaxFileSize: cfg.MaxFileSize,
		Gatherer:    registry,
	})

	// A multi-chunk analysis makes several sequential model calls
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "model", pipelineCfg.Model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
