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

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/activities"
	"github.com/orchardai/orchestrator/internal/cache"
	"github.com/orchardai/orchestrator/internal/config"
	"github.com/orchardai/orchestrator/internal/db"
	"github.com/orchardai/orchestrator/internal/health"
	"github.com/orchardai/orchestrator/internal/knowledge"
	"github.com/orchardai/orchestrator/internal/llm"
	"github.com/orchardai/orchestrator/internal/metrics"
	"github.com/orchardai/orchestrator/internal/server"
	"github.com/orchardai/orchestrator/internal/tracing"
	"github.com/orchardai/orchestrator/internal/websearch"
	"github.com/orchardai/orchestrator/internal/workflows"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	shutdownTracing, err := tracing.Initialize(cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// Admin endpoints (health, metrics) come up first so probes respond
	// while the rest of the service is still starting.
	healthMgr := health.NewManager(logger, 5*time.Second, 30*time.Second)
	adminMux := http.NewServeMux()
	healthMgr.RegisterRoutes(adminMux)
	adminMux.Handle("/metrics", metrics.Handler())
	adminSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Service.AdminPort),
		Handler:      adminMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("Admin HTTP server listening", zap.Int("port", cfg.Service.AdminPort))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin HTTP server failed", zap.Error(err))
		}
	}()

	// Run history store (optional). A missing store disables persistence
	// and the history endpoint; it never blocks answering questions.
	var store *db.Client
	if cfg.Postgres.Enabled {
		store, err = db.NewClient(db.Config{
			Host:         cfg.Postgres.Host,
			Port:         cfg.Postgres.Port,
			User:         cfg.Postgres.User,
			Password:     cfg.Postgres.Password,
			Database:     cfg.Postgres.Database,
			SSLMode:      cfg.Postgres.SSLMode,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
		}, logger)
		if err != nil {
			logger.Warn("Run history store unavailable, continuing without persistence", zap.Error(err))
			store = nil
		} else {
			defer store.Close()
			healthMgr.Register(health.NewChecker("postgres", false, store.HealthCheck))
		}
	}

	// Answer cache (optional).
	var answerCache *cache.Client
	if cfg.Redis.Enabled {
		answerCache, err = cache.NewClient(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, logger)
		if err != nil {
			logger.Warn("Answer cache unavailable, continuing without caching", zap.Error(err))
			answerCache = nil
		} else {
			defer answerCache.Close()
			healthMgr.Register(health.NewChecker("redis", false, answerCache.HealthCheck))
		}
	}

	healthMgr.Register(health.NewHTTPChecker("llm", cfg.LLM.BaseURL+"/health", true))
	if cfg.Knowledge.BaseURL != "" {
		healthMgr.Register(health.NewHTTPChecker("knowledge", cfg.Knowledge.BaseURL+"/health", false))
	}
	healthMgr.Start(ctx)

	// Downstream clients behind the activities.
	gateway := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	graph := knowledge.NewClient(knowledge.Config{
		BaseURL: cfg.Knowledge.BaseURL,
		Timeout: cfg.Knowledge.Timeout,
	}, logger)
	web := websearch.NewClient(websearch.Config{
		BaseURL: cfg.WebSearch.BaseURL,
		APIKey:  cfg.WebSearch.APIKey,
		Timeout: cfg.WebSearch.Timeout,
	}, logger)

	var runStore activities.RunStore
	if store != nil {
		runStore = store
	}
	acts := activities.NewActivities(gateway, graph, web, runStore, logger)

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.AnswerQuestionWorkflow)
	w.RegisterActivity(acts)
	if err := w.Start(); err != nil {
		logger.Fatal("Failed to start Temporal worker", zap.Error(err))
	}
	defer w.Stop()
	logger.Info("Temporal worker started", zap.String("task_queue", cfg.Temporal.TaskQueue))

	// API service with hot-reloaded workflow defaults.
	var cacheDep server.AnswerCache
	if answerCache != nil {
		cacheDep = answerCache
	}
	var historyDep server.RunHistory
	if store != nil {
		historyDep = store
	}
	svc := server.NewService(temporalClient, cfg, cacheDep, historyDep, logger)

	if configPath != "" {
		watcher, werr := config.NewWatcher(configPath, cfg, logger)
		if werr != nil {
			logger.Warn("Config hot reload disabled", zap.Error(werr))
		} else {
			watcher.OnReload(func(updated *config.Config) {
				svc.UpdateDefaults(updated.Workflow)
			})
			go watcher.Run(ctx)
		}
	}

	apiMux := http.NewServeMux()
	svc.RegisterRoutes(apiMux)
	apiSrv := server.NewHTTPServer(fmt.Sprintf(":%d", cfg.Service.Port), apiMux, cfg.Service)
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Service.Port))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Service.GracefulTimeout)
	defer cancel()
	if err := apiSrv.Shutdown(sctx); err != nil {
		logger.Warn("API server shutdown", zap.Error(err))
	}
	if err := adminSrv.Shutdown(sctx); err != nil {
		logger.Warn("Admin server shutdown", zap.Error(err))
	}
}
