package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"flashsale/pkg/log"
)

// ErrNotFound the entity does not exist, either confirmed by the
// database or remembered by a cached null marker.
var ErrNotFound = errors.New("record not found")

// nullValue marks a confirmed-absent entity so repeated lookups for
// bogus ids stop at the cache instead of hammering the database.
const nullValue = ""

// redisData wraps a payload with a logical expiry timestamp. The
// Redis key itself never expires; staleness is decided by ExpireTime.
type redisData struct {
	ExpireTime time.Time       `json:"expire_time"`
	Data       json.RawMessage `json:"data"`
}

// Options cache client options
type Options struct {
	NullTTL        time.Duration
	LockTTL        time.Duration
	RebuildWorkers int
}

// Client implements cache-aside reads over Redis with three rebuild
// strategies: pass-through with null caching, mutex rebuild, and
// logical expiry with asynchronous rebuild.
type Client struct {
	client  *redis.Client
	nullTTL time.Duration
	lockTTL time.Duration
	pool    *RebuildPool
}

// NewClient creates a cache client
func NewClient(client *redis.Client, opts Options) *Client {
	if opts.NullTTL <= 0 {
		opts.NullTTL = 2 * time.Minute
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.RebuildWorkers <= 0 {
		opts.RebuildWorkers = 10
	}
	return &Client{
		client:  client,
		nullTTL: opts.NullTTL,
		lockTTL: opts.LockTTL,
		pool:    NewRebuildPool(opts.RebuildWorkers),
	}
}

// Set writes a value with a physical TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// SetWithLogicalExpire writes a value that never physically expires
// but carries a logical expiry timestamp.
func (c *Client) SetWithLogicalExpire(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	wrapped, err := json.Marshal(redisData{
		ExpireTime: time.Now().Add(ttl),
		Data:       payload,
	})
	if err != nil {
		return fmt.Errorf("failed to wrap cache value: %w", err)
	}
	return c.client.Set(ctx, key, wrapped, 0).Err()
}

// Delete evicts a key
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Close stops the rebuild worker pool
func (c *Client) Close() {
	c.pool.Close()
}

func (c *Client) cacheNull(ctx context.Context, key string) {
	if err := c.client.Set(ctx, key, nullValue, c.nullTTL).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to cache null marker")
	}
}
