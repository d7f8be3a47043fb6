package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"flashsale/internal/model"
)

// StreamQueue is the Redis Stream transport. Messages fetched through
// a consumer group stay in the pending entries list until acked, so a
// crashed consumer picks its backlog back up on restart.
type StreamQueue struct {
	client    *redis.Client
	stream    string
	group     string
	consumer  string
	blockTime time.Duration
}

// NewStreamQueue creates a stream-backed queue and ensures the
// consumer group exists.
func NewStreamQueue(client *redis.Client, stream, group, consumer string, blockTime time.Duration) (*StreamQueue, error) {
	if blockTime <= 0 {
		blockTime = 2 * time.Second
	}

	err := client.XGroupCreateMkStream(context.Background(), stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &StreamQueue{
		client:    client,
		stream:    stream,
		group:     group,
		consumer:  consumer,
		blockTime: blockTime,
	}, nil
}

// Enqueue appends the ticket to the stream
func (q *StreamQueue) Enqueue(ctx context.Context, ticket *model.OrderTicket) error {
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"orderId":   ticket.OrderID,
			"userId":    ticket.UserID,
			"voucherId": ticket.VoucherID,
		},
	}).Err()
}

// Fetch reads one new message for this consumer, blocking up to the
// configured window.
func (q *StreamQueue) Fetch(ctx context.Context) (*Message, error) {
	return q.read(ctx, ">", q.blockTime)
}

// FetchPending reads one delivered-but-unacked message from this
// consumer's backlog.
func (q *StreamQueue) FetchPending(ctx context.Context) (*Message, error) {
	msg, err := q.read(ctx, "0", 0)
	if err == ErrNoMessage {
		return nil, ErrNoPending
	}
	return msg, err
}

func (q *StreamQueue) read(ctx context.Context, cursor string, block time.Duration) (*Message, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, cursor},
		Count:    1,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, ErrNoMessage
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, ErrNoMessage
	}

	entry := streams[0].Messages[0]
	ticket, err := parseTicket(entry.Values)
	if err != nil {
		// A malformed entry can never succeed, ack it away so it does
		// not wedge the pending backlog forever.
		_ = q.client.XAck(ctx, q.stream, q.group, entry.ID).Err()
		return nil, fmt.Errorf("malformed stream entry %s: %w", entry.ID, err)
	}

	return &Message{ID: entry.ID, Ticket: ticket}, nil
}

// Ack removes the message from the pending entries list
func (q *StreamQueue) Ack(ctx context.Context, id string) error {
	return q.client.XAck(ctx, q.stream, q.group, id).Err()
}

// Close is a no-op, the Redis client is owned by the caller
func (q *StreamQueue) Close() error {
	return nil
}

func parseTicket(values map[string]interface{}) (*model.OrderTicket, error) {
	orderID, err := parseIntField(values, "orderId")
	if err != nil {
		return nil, err
	}
	userID, err := parseIntField(values, "userId")
	if err != nil {
		return nil, err
	}
	voucherID, err := parseIntField(values, "voucherId")
	if err != nil {
		return nil, err
	}
	return &model.OrderTicket{OrderID: orderID, UserID: userID, VoucherID: voucherID}, nil
}

func parseIntField(values map[string]interface{}, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing field %s", key)
	}
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected type for field %s", key)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid field %s: %w", key, err)
	}
	return n, nil
}
