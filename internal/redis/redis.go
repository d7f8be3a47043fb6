package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"flashsale/internal/config"
	"flashsale/pkg/log"
)

// NewClient creates a Redis client from configuration
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetAddr(),
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
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"addr": cfg.GetAddr(),
		"db":   cfg.DB,
	}).Info("redis connected")

	return client, nil
}
