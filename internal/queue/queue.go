package queue

import (
	"context"
	"errors"

	"flashsale/internal/model"
)

// Queue errors
var (
	// ErrNoMessage no new message arrived within the blocking window
	ErrNoMessage = errors.New("no message available")
	// ErrNoPending no delivered-but-unacknowledged message remains
	ErrNoPending = errors.New("no pending message")
	// ErrQueueClosed the queue was closed
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueFull the transport buffer has no room for the ticket
	ErrQueueFull = errors.New("queue is full")
)

// Message is a delivered order ticket. ID is the transport-level
// delivery id used for acknowledgement.
type Message struct {
	ID     string
	Ticket *model.OrderTicket
}

// OrderQueue decouples admission from durable order writing. The gate
// enqueues tickets, the consumer fetches, processes and acknowledges
// them. Transports differ only in delivery guarantees: the in-process
// transport loses unprocessed tickets on crash, the stream transport
// keeps them pending until acked.
type OrderQueue interface {
	Enqueue(ctx context.Context, ticket *model.OrderTicket) error
	// Fetch blocks for a bounded time waiting for a new message and
	// returns ErrNoMessage when none arrives.
	Fetch(ctx context.Context) (*Message, error)
	// FetchPending returns a previously delivered but unacknowledged
	// message, or ErrNoPending when the backlog is clean.
	FetchPending(ctx context.Context) (*Message, error)
	Ack(ctx context.Context, id string) error
	Close() error
}
