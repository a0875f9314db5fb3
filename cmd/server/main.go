package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hatespeech-annotation/internal/config"
	"hatespeech-annotation/internal/handler"
	"hatespeech-annotation/internal/llm"
	"hatespeech-annotation/internal/metrics"
	"hatespeech-annotation/internal/repository"
	"hatespeech-annotation/internal/scoring"
	"hatespeech-annotation/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting hate speech annotation service...")

	llmClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
		Providers:   cfg.Providers,
		MaxFailures: cfg.MaxFailuresBeforeSwitch,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize LLM providers", zap.Error(err))
	}
	defer llmClient.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	repo, err := repository.NewAnnotationRepository(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewMetrics(registry)
	if err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	annotator, err := service.NewAnnotator(llmClient, repo, m, service.Options{
		Workers:     cfg.Inference.Workers,
		Timeout:     cfg.Inference.Timeout,
		CacheSize:   cfg.Inference.CacheSize,
		DeriveLabel: cfg.Inference.DeriveLabel,
		OverallMode: scoring.OverallMode(cfg.Evaluation.OverallMode),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize annotator", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	handler.NewHandler(annotator, logger).RegisterRoutes(router)
	handler.RegisterMetrics(router, registry)

	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	modelName := "unknown"
	if name, ok := llmClient.GetModelInfo()["model"].(string); ok {
		modelName = name
	}
	logger.Info("Annotation service is running",
		zap.String("address", serverAddr),
		zap.String("model", modelName),
		zap.Int("workers", cfg.Inference.Workers))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	annotator.Close()

	logger.Info("Server exited")
}
