package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/agents/llm"
	"github.com/veritas-ai/veritas/api"
	"github.com/veritas-ai/veritas/api/handlers"
	"github.com/veritas-ai/veritas/config"
	"github.com/veritas-ai/veritas/humanloop"
	"github.com/veritas-ai/veritas/internal/cache"
	"github.com/veritas-ai/veritas/internal/metrics"
	"github.com/veritas-ai/veritas/internal/server"
	"github.com/veritas-ai/veritas/orchestrator"
	"github.com/veritas-ai/veritas/retrieval"
)

// buildServer wires every collaborator from configuration and returns
// the HTTP server manager ready to start.
func buildServer(cfg *config.Config, logger *zap.Logger) (*server.Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	collector := metrics.NewCollector("veritas", logger)
	agent := llm.NewClient(cfg.Agents, logger)

	retriever, err := buildRetriever(cfg.Retrieval, logger)
	if err != nil {
		return nil, err
	}

	resultCache, err := buildCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	hlStore, err := buildValidationStore(cfg.HumanLoop)
	if err != nil {
		return nil, err
	}
	hl := humanloop.NewManager(cfg.HumanLoop, hlStore, logger)
	hl.StartSweeper(context.Background())

	pipeline, err := orchestrator.New(orchestrator.Config{
		MaxIterations:       cfg.Pipeline.MaxIterations,
		HumanLoopEnabled:    cfg.Pipeline.HumanLoopEnabled,
		RetrievalTimeout:    cfg.Pipeline.RetrievalTimeout,
		GenerationTimeout:   cfg.Pipeline.GenerationTimeout,
		VerificationTimeout: cfg.Pipeline.VerificationTimeout,
		TranslationTimeout:  cfg.Pipeline.TranslationTimeout,
		RequestTimeout:      cfg.Pipeline.RequestTimeout,
		RetrievalRetries:    cfg.Pipeline.RetrievalRetries,
		CacheTTL:            cfg.Pipeline.CacheTTL,
		HistorySize:         cfg.Pipeline.HistorySize,
	}, orchestrator.Deps{
		Agent:     agent,
		Retriever: retriever,
		Cache:     resultCache,
		HumanLoop: hl,
		Metrics:   collector,
	}, logger)
	if err != nil {
		return nil, err
	}

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		APIKey:         cfg.Server.APIKey,
	}, api.Deps{
		Pipeline:  pipeline,
		HumanLoop: hl,
		Metrics:   collector,
		Checks: []handlers.HealthCheck{
			handlers.HealthCheckFunc{
				CheckName: "cache",
				Fn: func(ctx context.Context) error {
					_, err := resultCache.Len(ctx)
					return err
				},
			},
		},
	}, logger)

	return server.NewManager(router, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger), nil
}

// buildRetriever creates the in-memory retriever and indexes the
// corpus directory when configured.
func buildRetriever(cfg config.RetrievalConfig, logger *zap.Logger) (retrieval.Retriever, error) {
	retriever := retrieval.NewMemoryRetriever(nil, logger,
		retrieval.WithTopK(cfg.TopK),
		retrieval.WithMinScore(cfg.MinScore),
	)
	if cfg.CorpusDir == "" {
		return retriever, nil
	}

	entries, err := os.ReadDir(cfg.CorpusDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus dir %s: %w", cfg.CorpusDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(cfg.CorpusDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus file %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if err := retriever.Index(context.Background(), retrieval.Document{
			Name:    name,
			Content: string(raw),
		}); err != nil {
			return nil, err
		}
	}
	logger.Info("corpus indexed",
		zap.String("dir", cfg.CorpusDir),
		zap.Int("documents", retriever.Len()),
	)
	return retriever, nil
}

func buildCache(cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "redis":
		redisCfg := cfg.Cache.Redis
		redisCfg.DefaultTTL = cfg.Pipeline.CacheTTL
		return cache.NewRedisStore(redisCfg, logger)
	default:
		return cache.NewMemoryStore(cfg.Pipeline.CacheTTL, logger), nil
	}
}

func buildValidationStore(cfg humanloop.Config) (humanloop.Store, error) {
	if cfg.StorePath == "" {
		return humanloop.NewMemoryStore(), nil
	}
	return humanloop.NewSQLiteStore(cfg.StorePath)
}
