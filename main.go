package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/open-democracy/em/go/orchestrator/internal/agent"
	"github.com/open-democracy/em/go/orchestrator/internal/config"
	"github.com/open-democracy/em/go/orchestrator/internal/db"
	"github.com/open-democracy/em/go/orchestrator/internal/httpapi"
	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	_ "github.com/open-democracy/em/go/orchestrator/internal/metrics" // register collectors
	"github.com/open-democracy/em/go/orchestrator/internal/roster"
	"github.com/open-democracy/em/go/orchestrator/internal/tracing"
	"github.com/open-democracy/em/go/orchestrator/internal/vectordb"
	"github.com/open-democracy/em/go/orchestrator/internal/websearch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Observability)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Observability.Tracing.Enabled,
		ServiceName:  cfg.Observability.Tracing.ServiceName,
		OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	repo, err := db.Connect(db.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxConnections:  cfg.Database.MaxConnections,
		IdleConnections: cfg.Database.IdleConnections,
		MaxLifetime:     cfg.Database.MaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer repo.Close()

	completion := llm.NewOpenAI(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		StreamModel: cfg.LLM.StreamModel,
		Timeout:     cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
	}, logger)

	var vector vectordb.Searcher
	if cfg.VectorDB.Enabled {
		vector = vectordb.New(vectordb.Config{
			Enabled:    true,
			Host:       cfg.VectorDB.Host,
			Port:       cfg.VectorDB.Port,
			Collection: cfg.VectorDB.Collection,
			Timeout:    cfg.VectorDB.Timeout,
			TopK:       cfg.VectorDB.TopK,
			EmbedModel: cfg.VectorDB.EmbedModel,
		}, completion, logger)
	}

	var web websearch.Searcher
	if cfg.WebSearch.Enabled {
		web = websearch.New(websearch.Config{
			APIKey:            cfg.WebSearch.APIKey,
			BaseURL:           cfg.WebSearch.BaseURL,
			Model:             cfg.WebSearch.Model,
			Timeout:           cfg.WebSearch.Timeout,
			RequestsPerMinute: cfg.WebSearch.RequestsPerMinute,
		}, logger)
	}

	policy, err := roster.Load(cfg.Agent.RosterPolicyPath)
	if err != nil {
		logger.Fatal("Failed to load roster policy", zap.Error(err))
	}

	engine := agent.NewEngine(agent.Services{
		Completion: completion,
		Vector:     vector,
		Web:        web,
		Roster:     policy,
	}, agent.Config{
		MaxFanout:     cfg.Agent.MaxFanout,
		StageTimeout:  cfg.Agent.StageTimeout,
		RetrievalTopK: cfg.Agent.RetrievalTopK,
	}, logger)

	stopWatcher := watchConfig(engine, logger)
	defer stopWatcher()

	mux := http.NewServeMux()
	httpapi.NewChatHandler(engine, repo, logger).RegisterRoutes(mux)
	httpapi.RegisterHealth(mux, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return repo.Ping(ctx) == nil
	})

	server := &http.Server{
		Addr:        ":" + strconv.Itoa(cfg.Server.Port),
		Handler:     mux,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("Chat HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Chat HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

func buildLogger(obs config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(obs.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	if obs.Logging.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// watchConfig hot-reloads the config file and reapplies the parts that can
// change at runtime, currently the roster expansion policy.
func watchConfig(engine *agent.Engine, logger *zap.Logger) func() {
	watcher, err := config.NewWatcher(config.Path(), logger)
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
		return func() {}
	}
	watcher.OnChange(func(cfg *config.Config) {
		policy, err := roster.Load(cfg.Agent.RosterPolicyPath)
		if err != nil {
			logger.Error("Roster policy reload failed", zap.Error(err))
			return
		}
		engine.SetRosterPolicy(policy)
	})
	watcher.Start()
	return watcher.Stop
}
