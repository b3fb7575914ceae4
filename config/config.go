// Package config provides unified configuration loading: defaults,
// then YAML file, then environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("VERITAS").
//	    Load()
package config

import (
	"fmt"
	"time"

	"github.com/veritas-ai/veritas/agents/llm"
	"github.com/veritas-ai/veritas/humanloop"
	"github.com/veritas-ai/veritas/internal/cache"
)

// Config is the complete service configuration.
type Config struct {
	// Server HTTP surface
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Pipeline orchestration knobs
	Pipeline PipelineConfig `yaml:"pipeline" env:"PIPELINE"`

	// Agents credential and endpoint for the agent collaborator
	Agents llm.Config `yaml:"agents" env:"AGENTS"`

	// Retrieval in-memory document store settings
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Cache result cache backend selection
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// HumanLoop escalation knobs and keyword tables
	HumanLoop humanloop.Config `yaml:"human_loop" env:"HUMAN_LOOP"`

	// Log logging configuration
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTP port
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Per-client request rate
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// Per-client burst
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// Optional API key required on the X-API-Key header
	APIKey string `yaml:"api_key" env:"API_KEY"`
}

// PipelineConfig holds the orchestration knobs.
type PipelineConfig struct {
	// Reform loop bound
	MaxIterations int `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	// Human-loop escalation toggle
	HumanLoopEnabled bool `yaml:"human_loop_enabled" env:"HUMAN_LOOP_ENABLED"`
	// Per-stage deadlines
	RetrievalTimeout    time.Duration `yaml:"retrieval_timeout" env:"RETRIEVAL_TIMEOUT"`
	GenerationTimeout   time.Duration `yaml:"generation_timeout" env:"GENERATION_TIMEOUT"`
	VerificationTimeout time.Duration `yaml:"verification_timeout" env:"VERIFICATION_TIMEOUT"`
	TranslationTimeout  time.Duration `yaml:"translation_timeout" env:"TRANSLATION_TIMEOUT"`
	// Overall request deadline
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	// Retrieval retry budget
	RetrievalRetries int `yaml:"retrieval_retries" env:"RETRIEVAL_RETRIES"`
	// Result cache TTL
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	// Workflow history bound
	HistorySize int `yaml:"history_size" env:"HISTORY_SIZE"`
}

// RetrievalConfig configures the in-memory document store.
type RetrievalConfig struct {
	// Directory of .txt/.md documents indexed at startup
	CorpusDir string `yaml:"corpus_dir" env:"CORPUS_DIR"`
	// Sources returned per query
	TopK int `yaml:"top_k" env:"TOP_K"`
	// Score floor below which sources are dropped
	MinScore float64 `yaml:"min_score" env:"MIN_SCORE"`
}

// CacheConfig selects and configures the result cache backend.
type CacheConfig struct {
	// Backend: memory or redis
	Backend string `yaml:"backend" env:"BACKEND"`
	// Redis settings when backend is redis
	Redis cache.RedisConfig `yaml:"redis" env:"REDIS"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    10,
			RateLimitBurst:  20,
		},
		Pipeline: PipelineConfig{
			MaxIterations:       3,
			HumanLoopEnabled:    true,
			RetrievalTimeout:    15 * time.Second,
			GenerationTimeout:   20 * time.Second,
			VerificationTimeout: 10 * time.Second,
			TranslationTimeout:  10 * time.Second,
			RequestTimeout:      60 * time.Second,
			RetrievalRetries:    3,
			CacheTTL:            time.Hour,
			HistorySize:         100,
		},
		Agents:    llm.DefaultConfig(),
		Retrieval: RetrievalConfig{TopK: 5, MinScore: 0.05},
		Cache:     CacheConfig{Backend: "memory", Redis: cache.DefaultRedisConfig()},
		HumanLoop: humanloop.DefaultConfig(),
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Validate range-checks the knobs that have hard requirements.
func (c *Config) Validate() error {
	if c.Pipeline.MaxIterations < 1 {
		return fmt.Errorf("pipeline.max_iterations must be >= 1, got %d", c.Pipeline.MaxIterations)
	}
	if c.Pipeline.CacheTTL <= 0 {
		return fmt.Errorf("pipeline.cache_ttl must be positive, got %s", c.Pipeline.CacheTTL)
	}
	if c.Pipeline.RequestTimeout <= 0 {
		return fmt.Errorf("pipeline.request_timeout must be positive, got %s", c.Pipeline.RequestTimeout)
	}
	if c.Pipeline.RetrievalRetries < 0 {
		return fmt.Errorf("pipeline.retrieval_retries must be >= 0, got %d", c.Pipeline.RetrievalRetries)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}
	return nil
}
