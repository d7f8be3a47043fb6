package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"flashsale/internal/monitor"
	"flashsale/pkg/lock"
	"flashsale/pkg/log"
)

// Loader fetches the entity from the source of truth. A nil result
// with a nil error means the entity does not exist.
type Loader[T any] func(ctx context.Context) (*T, error)

const (
	mutexRetryInterval = 50 * time.Millisecond
	mutexMaxRetries    = 100
)

// QueryWithPassThrough reads through the cache and caches confirmed
// absence as a null marker, so lookups for ids that do not exist stop
// at Redis.
func QueryWithPassThrough[T any](ctx context.Context, c *Client, key string, ttl time.Duration, loader Loader[T]) (*T, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if raw == nullValue {
			return nil, ErrNotFound
		}
		var value T
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached value: %w", err)
		}
		return &value, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if value == nil {
		c.cacheNull(ctx, key)
		return nil, ErrNotFound
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to populate cache")
	}
	return value, nil
}

// QueryWithMutex rebuilds a missing entry under a per-key lock so a
// hot key expiring does not send every request to the database at
// once. Losers of the lock race sleep briefly and re-read the cache.
func QueryWithMutex[T any](ctx context.Context, c *Client, key, lockKey string, ttl time.Duration, loader Loader[T]) (*T, error) {
	for i := 0; i < mutexMaxRetries; i++ {
		raw, err := c.client.Get(ctx, key).Result()
		if err == nil {
			if raw == nullValue {
				return nil, ErrNotFound
			}
			var value T
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				return nil, fmt.Errorf("failed to unmarshal cached value: %w", err)
			}
			return &value, nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("cache read failed: %w", err)
		}

		mutex := lock.NewRedisLock(c.client, lockKey, c.lockTTL)
		acquired, err := mutex.TryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("rebuild lock failed: %w", err)
		}
		if !acquired {
			select {
			case <-time.After(mutexRetryInterval):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		value, err := func() (*T, error) {
			defer func() {
				if err := mutex.Unlock(ctx); err != nil {
					log.WithError(err).WithField("key", lockKey).Warn("failed to release rebuild lock")
				}
			}()

			// Another holder may have rebuilt while we waited for
			// the lock, check before hitting the database.
			raw, err := c.client.Get(ctx, key).Result()
			if err == nil {
				if raw == nullValue {
					return nil, ErrNotFound
				}
				var value T
				if err := json.Unmarshal([]byte(raw), &value); err != nil {
					return nil, fmt.Errorf("failed to unmarshal cached value: %w", err)
				}
				return &value, nil
			}

			value, err := loader(ctx)
			if err != nil {
				return nil, err
			}
			if value == nil {
				c.cacheNull(ctx, key)
				return nil, ErrNotFound
			}
			if err := c.Set(ctx, key, value, ttl); err != nil {
				log.WithError(err).WithField("key", key).Warn("failed to populate cache")
			}
			return value, nil
		}()
		return value, err
	}
	return nil, fmt.Errorf("cache rebuild for %s did not settle", key)
}

// QueryWithLogicalExpire serves whatever is cached, stale or not, and
// triggers an asynchronous rebuild when the logical expiry has
// passed. A cache miss means the key was never warmed up and is
// treated as not found.
func QueryWithLogicalExpire[T any](ctx context.Context, c *Client, key, lockKey string, ttl time.Duration, loader Loader[T]) (*T, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	var wrapped redisData
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("failed to unwrap cached value: %w", err)
	}
	var value T
	if err := json.Unmarshal(wrapped.Data, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	if time.Now().Before(wrapped.ExpireTime) {
		return &value, nil
	}

	mutex := lock.NewRedisLock(c.client, lockKey, c.lockTTL)
	acquired, err := mutex.TryLock(ctx)
	if err != nil {
		log.WithError(err).WithField("key", lockKey).Warn("rebuild lock failed")
		return &value, nil
	}
	if acquired {
		monitor.CacheRebuildTotal.Inc()
		submitted := c.pool.Submit(func() {
			rebuildCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			defer func() {
				if err := mutex.Unlock(rebuildCtx); err != nil {
					log.WithError(err).WithField("key", lockKey).Warn("failed to release rebuild lock")
				}
			}()

			fresh, err := loader(rebuildCtx)
			if err != nil {
				log.WithError(err).WithField("key", key).Error("cache rebuild failed")
				return
			}
			if fresh == nil {
				if err := c.Delete(rebuildCtx, key); err != nil {
					log.WithError(err).WithField("key", key).Warn("failed to evict vanished entity")
				}
				return
			}
			if err := c.SetWithLogicalExpire(rebuildCtx, key, fresh, ttl); err != nil {
				log.WithError(err).WithField("key", key).Error("failed to refresh cache")
			}
		})
		if !submitted {
			// Pool is saturated, give the lock back so another
			// request can retry the rebuild.
			if err := mutex.Unlock(ctx); err != nil {
				log.WithError(err).WithField("key", lockKey).Warn("failed to release rebuild lock")
			}
			log.WithField("key", key).Warn("rebuild pool saturated, serving stale value")
		}
	}

	// Stale data is acceptable while the rebuild runs elsewhere.
	return &value, nil
}
