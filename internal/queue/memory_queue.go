package queue

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"flashsale/internal/model"
)

// MemoryQueue is the in-process transport backed by a buffered
// channel. Delivery is at-most-once: tickets still in the buffer are
// lost when the process dies, which single-node deployments accept in
// exchange for zero infrastructure.
type MemoryQueue struct {
	ch        chan *Message
	blockTime time.Duration
	seq       atomic.Int64

	mu     sync.Mutex
	closed bool
}

// NewMemoryQueue creates an in-process queue
func NewMemoryQueue(bufferSize int, blockTime time.Duration) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if blockTime <= 0 {
		blockTime = 2 * time.Second
	}
	return &MemoryQueue{
		ch:        make(chan *Message, bufferSize),
		blockTime: blockTime,
	}
}

// Enqueue puts a ticket on the channel. A full buffer is reported as
// ErrQueueFull so the gate can reject instead of blocking request
// threads. The mutex is held across the send; it cannot race Close.
func (q *MemoryQueue) Enqueue(ctx context.Context, ticket *model.OrderTicket) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	msg := &Message{
		ID:     strconv.FormatInt(q.seq.Add(1), 10),
		Ticket: ticket,
	}

	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Fetch waits up to the blocking window for a message
func (q *MemoryQueue) Fetch(ctx context.Context) (*Message, error) {
	timer := time.NewTimer(q.blockTime)
	defer timer.Stop()

	select {
	case msg, ok := <-q.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return msg, nil
	case <-timer.C:
		return nil, ErrNoMessage
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FetchPending always reports a clean backlog. The channel transport
// has no redelivery, so there is never anything to recover.
func (q *MemoryQueue) FetchPending(ctx context.Context) (*Message, error) {
	return nil, ErrNoPending
}

// Ack is a no-op for the channel transport
func (q *MemoryQueue) Ack(ctx context.Context, id string) error {
	return nil
}

// Close closes the queue. Fetch drains buffered messages first.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}
