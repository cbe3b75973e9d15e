package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/infrastructure/config"
)

// SuppressionCache is a Redis read-through cache over the suppression
// projection. Entries are best effort: the engine recomputes from the
// judgment log on any miss or error, so a cold or unavailable cache only
// costs queries, never correctness.
type SuppressionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSuppressionCache connects to Redis and verifies the connection
func NewSuppressionCache(cfg *config.RedisConfig, logger *zap.Logger) (*SuppressionCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.URL,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("suppression cache initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB),
		zap.Duration("ttl", cfg.CacheTTL))

	return &SuppressionCache{
		client: client,
		ttl:    cfg.CacheTTL,
		logger: logger,
	}, nil
}

// Get returns the cached suppression state and whether the key was present
func (c *SuppressionCache) Get(ctx context.Context, tenantID, entity string, module drift.Module) (*drift.SuppressionState, bool, error) {
	data, err := c.client.Get(ctx, suppressionKey(tenantID, entity, module)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var state drift.SuppressionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, false, fmt.Errorf("corrupt suppression cache entry: %w", err)
	}
	return &state, true, nil
}

// Set stores the suppression state with the configured TTL
func (c *SuppressionCache) Set(ctx context.Context, tenantID, entity string, module drift.Module, state *drift.SuppressionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal suppression state: %w", err)
	}
	if err := c.client.Set(ctx, suppressionKey(tenantID, entity, module), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached state. Called after every new judgment so the
// next detection run recomputes from the log.
func (c *SuppressionCache) Invalidate(ctx context.Context, tenantID, entity string, module drift.Module) error {
	if err := c.client.Del(ctx, suppressionKey(tenantID, entity, module)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *SuppressionCache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("redis close failed: %w", err)
	}
	c.logger.Info("suppression cache connection closed")
	return nil
}

func suppressionKey(tenantID, entity string, module drift.Module) string {
	return fmt.Sprintf("suppression:%s:%s:%s", tenantID, entity, module)
}
