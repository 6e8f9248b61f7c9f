package database

import (
	"context"
	"fmt"
	"time"

	"inquiry-core/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the session store, the graph/diagnosis caches and assessment history.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
		PoolSize:     poolSize,
		MinIdleConns: poolSize / 5,
	})

	return &RedisClient{Client: rdb}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Purge deletes every key under prefix. Used by maintenance tooling to drop
// cached graph lookups after a knowledge base change.
func (c *RedisClient) Purge(ctx context.Context, prefix string) (int, error) {
	var deleted int
	iter := c.Client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.Client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("redis purge %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis purge scan: %w", err)
	}
	return deleted, nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
