package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/types"
)

// RedisConfig configures the redis-backed store.
type RedisConfig struct {
	// Redis address
	Addr string `yaml:"addr" env:"ADDR"`
	// Password
	Password string `yaml:"password" env:"PASSWORD"`
	// Database number
	DB int `yaml:"db" env:"DB"`
	// Default TTL when Set receives ttl <= 0
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
	// Connection pool size
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// Key prefix
	Prefix string `yaml:"prefix" env:"PREFIX"`
}

// DefaultRedisConfig returns defaults for a local redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       "localhost:6379",
		DefaultTTL: time.Hour,
		PoolSize:   10,
		Prefix:     "veritas:result:",
	}
}

// RedisStore keeps results in redis as JSON so multiple service
// instances share one cache.
type RedisStore struct {
	client *redis.Client
	cfg    RedisConfig
	logger *zap.Logger
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultRedisConfig().DefaultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisConfig().Prefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger = logger.With(zap.String("component", "cache"))
	logger.Info("redis cache connected", zap.String("addr", cfg.Addr))

	return &RedisStore{client: client, cfg: cfg, logger: logger}, nil
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) key(k string) string { return s.cfg.Prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) (*types.Result, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var result types.Result
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		// A corrupt slot behaves like a miss and gets dropped.
		s.logger.Warn("evicting unreadable cache entry", zap.String("key", key), zap.Error(err))
		s.client.Del(ctx, s.key(key))
		return nil, ErrCacheMiss
	}
	return &result, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, result *types.Result, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if err := s.client.Set(ctx, s.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.client.Keys(ctx, s.cfg.Prefix+"*").Result()
	if err != nil {
		return 0, fmt.Errorf("cache len failed: %w", err)
	}
	return len(keys), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
