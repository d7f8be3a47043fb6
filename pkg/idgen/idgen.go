package idgen

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Epoch is 2022-01-01 00:00:00 UTC in seconds. IDs carry seconds since
	// this epoch in their high bits.
	Epoch int64 = 1640995200

	// SeqBits holds the number of bits used by the sequence counter.
	SeqBits uint8 = 32

	seqMask = int64(-1) ^ (int64(-1) << SeqBits)
)

// Generator produces globally unique, roughly time-ordered 64-bit IDs.
// The sequence counter lives in Redis under a per-category-per-day key, so
// IDs are never reused across process restarts. Layout:
// timestamp (seconds since Epoch) << 32 | daily sequence.
type Generator struct {
	client *redis.Client
}

// NewGenerator creates an ID generator backed by the given Redis client.
func NewGenerator(client *redis.Client) *Generator {
	return &Generator{client: client}
}

// NextID generates a new ID for the category. It fails only when the
// counter store is unreachable and never blocks beyond one atomic
// increment.
func (g *Generator) NextID(ctx context.Context, category string) (int64, error) {
	now := time.Now()
	timestamp := now.Unix() - Epoch

	day := now.UTC().Format("2006:01:02")
	seq, err := g.client.Incr(ctx, fmt.Sprintf("icr:%s:%s", category, day)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment id counter: %w", err)
	}

	return timestamp<<SeqBits | (seq & seqMask), nil
}

// ParseID extracts the timestamp and sequence parts of an ID.
func ParseID(id int64) (timestamp int64, seq int64) {
	seq = id & seqMask
	timestamp = (id >> SeqBits) + Epoch
	return
}

// GetTimestamp returns the Unix timestamp an ID was issued at.
func GetTimestamp(id int64) int64 {
	return (id >> SeqBits) + Epoch
}
