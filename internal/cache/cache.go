// Package cache is the Redis-backed answer cache. Identical questions with
// identical run options hit the cache and skip the workflow entirely.
// Cache failures degrade to a normal run.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/metrics"
	"github.com/orchardai/orchestrator/internal/workflows"
)

// Config holds cache connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Client wraps the Redis connection.
type Client struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewClient connects to Redis and verifies the connection.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	logger.Info("Connected to answer cache", zap.String("addr", cfg.Addr))
	return &Client{rdb: rdb, ttl: ttl, logger: logger}, nil
}

// Key derives the cache key from the question and the options that affect
// the answer. Any option change misses the cache.
func Key(question string, opts workflows.RunOptions) string {
	payload, _ := json.Marshal(struct {
		Question string               `json:"q"`
		Options  workflows.RunOptions `json:"o"`
	}{question, opts})
	sum := sha256.Sum256(payload)
	return "orchard:answer:" + hex.EncodeToString(sum[:])
}

// GetResult returns the cached result for key, if any. Errors are treated
// as misses.
func (c *Client) GetResult(ctx context.Context, key string) (*workflows.QuestionResult, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Answer cache read failed", zap.Error(err))
		}
		metrics.CacheMisses.Inc()
		return nil, false
	}

	var res workflows.QuestionResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Warn("Answer cache entry corrupt, dropping", zap.Error(err))
		c.rdb.Del(ctx, key)
		metrics.CacheMisses.Inc()
		return nil, false
	}
	metrics.CacheHits.Inc()
	return &res, true
}

// SetResult stores a result under key. Best-effort results are not cached;
// a later run may do better.
func (c *Client) SetResult(ctx context.Context, key string, res *workflows.QuestionResult) {
	if res == nil || res.BestEffort {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Answer cache write failed", zap.Error(err))
	}
}

// HealthCheck pings Redis.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
