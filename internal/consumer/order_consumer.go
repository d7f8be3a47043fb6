package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"flashsale/internal/monitor"
	"flashsale/internal/queue"
	"flashsale/internal/service/order"
	"flashsale/pkg/lock"
	"flashsale/pkg/log"
)

const processTimeout = 5 * time.Second

// OrderConsumer drains the ingest queue and writes orders. It is the
// only component that touches the database on the flash-sale path, so
// request latency never depends on the write.
type OrderConsumer struct {
	queue        queue.OrderQueue
	orderService *order.Service
	redisClient  *redis.Client
	lockTTL      time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewOrderConsumer creates an order consumer
func NewOrderConsumer(q queue.OrderQueue, orderService *order.Service, redisClient *redis.Client, lockTTL time.Duration) *OrderConsumer {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &OrderConsumer{
		queue:        q,
		orderService: orderService,
		redisClient:  redisClient,
		lockTTL:      lockTTL,
		stopCh:       make(chan struct{}),
	}
}

// Start launches the consume loop. The loop survives every per-message
// failure; a broken message re-enters the pending backlog and the loop
// keeps going.
func (c *OrderConsumer) Start() {
	c.wg.Add(1)
	go c.run()
	log.Info("order consumer started")
}

// Stop signals the loop to exit and waits for the in-flight message
func (c *OrderConsumer) Stop() {
	close(c.stopCh)
	c.wg.Wait()
	log.Info("order consumer stopped")
}

func (c *OrderConsumer) run() {
	defer c.wg.Done()

	// Replay whatever a previous incarnation fetched but never acked
	// before touching new messages.
	c.drainPending()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		msg, err := c.queue.Fetch(ctx)
		cancel()

		if err != nil {
			if errors.Is(err, queue.ErrNoMessage) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			log.WithError(err).Error("failed to fetch order message")
			time.Sleep(time.Second)
			continue
		}

		if err := c.handle(msg); err != nil {
			log.WithError(err).WithField("message_id", msg.ID).Error("failed to process order message")
			// The unacked message is now pending, recover it before
			// moving on so ordering per user is preserved.
			c.drainPending()
		}
	}
}

func (c *OrderConsumer) drainPending() {
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		msg, err := c.queue.FetchPending(ctx)
		cancel()

		if err != nil {
			if errors.Is(err, queue.ErrNoPending) {
				return
			}
			log.WithError(err).Error("failed to fetch pending message")
			time.Sleep(time.Second)
			continue
		}

		monitor.PendingRecoveredTotal.Inc()
		if err := c.handle(msg); err != nil {
			log.WithError(err).WithField("message_id", msg.ID).Error("failed to process pending message")
			time.Sleep(time.Second)
		}
	}
}

// handle writes one order under the per-user lock and acks on every
// outcome except a write error.
func (c *OrderConsumer) handle(msg *queue.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	ticket := msg.Ticket
	userLock := lock.NewRedisLock(c.redisClient, userLockKey(ticket.UserID), c.lockTTL)

	acquired, err := userLock.TryLock(ctx)
	if err != nil {
		return fmt.Errorf("user lock failed: %w", err)
	}
	if !acquired {
		// Another worker holds this user's lock. The gate admits one
		// ticket per user, so a contended duplicate is safe to drop.
		log.WithFields(map[string]interface{}{
			"user_id":  ticket.UserID,
			"order_id": ticket.OrderID,
		}).Warn("user lock contended, dropping ticket")
		monitor.TicketsDroppedTotal.WithLabelValues("lock_contention").Inc()
		return c.queue.Ack(ctx, msg.ID)
	}
	defer func() {
		if err := userLock.Unlock(ctx); err != nil {
			log.WithError(err).WithField("user_id", ticket.UserID).Warn("failed to release user lock")
		}
	}()

	if err := c.orderService.CreateVoucherOrder(ctx, ticket); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	monitor.OrdersPersistedTotal.Inc()

	return c.queue.Ack(ctx, msg.ID)
}

func userLockKey(userID int64) string {
	return fmt.Sprintf("lock:order:%d", userID)
}
