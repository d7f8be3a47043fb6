package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"flashsale/internal/model"
	"flashsale/internal/queue"
	"flashsale/internal/repository"
	"flashsale/internal/service/order"
	"flashsale/pkg/lock"
)

func setupOrderService(t *testing.T) (*order.Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return order.NewService(gormDB,
		repository.NewOrderRepository(gormDB),
		repository.NewVoucherRepository(gormDB)), mock
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func expectFullWrite(mock sqlmock.Sqlmock, userID, voucherID int64) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count").
		WithArgs(userID, voucherID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE `vouchers` SET `stock`=stock").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `voucher_orders`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestConsumerWritesOrder(t *testing.T) {
	_, client := setupRedis(t)
	svc, mock := setupOrderService(t)

	q, err := queue.NewStreamQueue(client, "stream:orders", "g1", "c1", 50*time.Millisecond)
	require.NoError(t, err)

	expectFullWrite(mock, 1001, 7)

	c := NewOrderConsumer(q, svc, client, time.Second)
	c.Start()
	defer c.Stop()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &model.OrderTicket{OrderID: 1, UserID: 1001, VoucherID: 7}))

	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 3*time.Second, 20*time.Millisecond)

	// Once written the message is acked, nothing stays pending.
	assert.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, "stream:orders", "g1").Result()
		return err == nil && pending.Count == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestConsumerReplaysPendingOnStart(t *testing.T) {
	_, client := setupRedis(t)
	svc, mock := setupOrderService(t)

	q, err := queue.NewStreamQueue(client, "stream:orders", "g1", "c1", 50*time.Millisecond)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &model.OrderTicket{OrderID: 2, UserID: 1002, VoucherID: 7}))

	// Fetch without ack simulates a consumer that died mid-write.
	_, err = q.Fetch(ctx)
	require.NoError(t, err)

	expectFullWrite(mock, 1002, 7)

	c := NewOrderConsumer(q, svc, client, time.Second)
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 3*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, "stream:orders", "g1").Result()
		return err == nil && pending.Count == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestConsumerDropsTicketOnLockContention(t *testing.T) {
	_, client := setupRedis(t)
	svc, _ := setupOrderService(t)

	q, err := queue.NewStreamQueue(client, "stream:orders", "g1", "c1", 50*time.Millisecond)
	require.NoError(t, err)

	ctx := context.Background()

	// Hold the user's lock so the consumer cannot take it.
	held := lock.NewRedisLock(client, "lock:order:1003", time.Minute)
	acquired, err := held.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, q.Enqueue(ctx, &model.OrderTicket{OrderID: 3, UserID: 1003, VoucherID: 7}))

	c := NewOrderConsumer(q, svc, client, time.Second)
	c.Start()
	defer c.Stop()

	// The ticket is dropped and acked; no database expectations were
	// registered, so a write attempt would fail the test.
	assert.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, "stream:orders", "g1").Result()
		return err == nil && pending.Count == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestConsumerStopIsIdempotentlySafe(t *testing.T) {
	_, client := setupRedis(t)
	svc, _ := setupOrderService(t)

	q := queue.NewMemoryQueue(16, 20*time.Millisecond)
	c := NewOrderConsumer(q, svc, client, time.Second)
	c.Start()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
