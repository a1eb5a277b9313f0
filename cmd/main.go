package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/telemetry"
	"docqa-platform/middleware"
	"docqa-platform/routes"
	"docqa-platform/services"

	"github.com/gin-gonic/gin"
)

const serviceName = "docqa-platform"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	engineCfg, err := config.LoadEngineConfig(cfg.EngineConfigFile)
	if err != nil {
		log.Fatal("Failed to load engine config:", err)
	}

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.OTLPEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
		metrics = nil
	}

	// Redis is optional; without it requests are not rate limited
	rdb, err := config.NewRedisClient(context.Background(), cfg)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	gemini, err := ai.NewGeminiClient(context.Background(), ai.GeminiOptions{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		EmbeddingModel: cfg.GeminiEmbeddingModel,
		Tier:           cfg.GeminiTier,
		Timeout:        cfg.LLMTimeout,
	}, metrics)
	if err != nil {
		log.Fatal("Failed to create Gemini client:", err)
	}
	defer gemini.Close()

	sessions := services.NewSessionManager(engineCfg.Memory)
	svc := services.NewDocumentService(engineCfg, services.DocumentServiceDeps{
		Sessions:  sessions,
		Generator: gemini,
		Embedder:  gemini,
		Extractor: services.NewPDFExtractor(cfg.MaxFileSize),
		Metrics:   metrics,
	})

	janitor := services.NewSessionJanitor(sessions, engineCfg.Memory.CleanupInterval, metrics)
	if err := janitor.Start(); err != nil {
		log.Fatal("Failed to schedule session cleanup:", err)
	}
	defer janitor.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	var limiters []gin.HandlerFunc
	if rdb != nil {
		limiters = append(limiters, middleware.RateLimitMiddleware(rdb, "pdf", cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second))
	}
	routes.SetupPDFRoutes(router, cfg, svc, limiters...)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "model", cfg.GeminiModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
