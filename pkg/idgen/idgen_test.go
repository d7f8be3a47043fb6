package idgen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGenerator(t *testing.T) *Generator {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		client.Close()
		s.Close()
	})

	return NewGenerator(client)
}

func TestNextIDUnique(t *testing.T) {
	g := setupGenerator(t)
	ctx := context.Background()

	const n = 500
	const workers = 10

	var mu sync.Mutex
	seen := make(map[int64]struct{}, n*workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				id, err := g.NextID(ctx, "order")
				assert.NoError(t, err)

				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n*workers, "all IDs must be distinct")
}

func TestNextIDMonotonicWithinSecond(t *testing.T) {
	g := setupGenerator(t)
	ctx := context.Background()

	prev, err := g.NextID(ctx, "order")
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 100; i++ {
		id, err := g.NextID(ctx, "order")
		require.NoError(t, err)
		if time.Since(start) < 500*time.Millisecond {
			assert.Greater(t, id, prev, "IDs within the same time unit are strictly increasing")
		}
		prev = id
	}
}

func TestNextIDCategoriesIsolated(t *testing.T) {
	g := setupGenerator(t)
	ctx := context.Background()

	a, err := g.NextID(ctx, "order")
	require.NoError(t, err)
	b, err := g.NextID(ctx, "shop")
	require.NoError(t, err)

	// Separate categories start their own sequences.
	_, seqA := ParseID(a)
	_, seqB := ParseID(b)
	assert.Equal(t, int64(1), seqA)
	assert.Equal(t, int64(1), seqB)
}

func TestParseID(t *testing.T) {
	g := setupGenerator(t)
	ctx := context.Background()

	before := time.Now().Unix()
	id, err := g.NextID(ctx, "order")
	require.NoError(t, err)
	after := time.Now().Unix()

	ts, seq := ParseID(id)
	assert.GreaterOrEqual(t, ts, before)
	assert.LessOrEqual(t, ts, after)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, ts, GetTimestamp(id))
}

func TestNextIDStoreUnreachable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	g := NewGenerator(client)

	s.Close()

	_, err = g.NextID(context.Background(), "order")
	assert.Error(t, err)
}
