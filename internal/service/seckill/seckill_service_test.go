package seckill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"flashsale/internal/cache"
	"flashsale/internal/model"
	"flashsale/internal/queue"
	"flashsale/internal/redis"
	"flashsale/internal/repository"
	"flashsale/pkg/idgen"
	"flashsale/pkg/utils"
)

type fakeVoucherRepo struct {
	vouchers map[int64]*model.Voucher
}

func (f *fakeVoucherRepo) GetByID(ctx context.Context, id int64) (*model.Voucher, error) {
	v, ok := f.vouchers[id]
	if !ok {
		return nil, repository.ErrVoucherNotFound
	}
	return v, nil
}

func (f *fakeVoucherRepo) Create(ctx context.Context, v *model.Voucher) error {
	f.vouchers[v.ID] = v
	return nil
}

func (f *fakeVoucherRepo) ListActive(ctx context.Context) ([]*model.Voucher, error) {
	var out []*model.Voucher
	for _, v := range f.vouchers {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeVoucherRepo) DecrementStock(ctx context.Context, voucherID int64) (int64, error) {
	v, ok := f.vouchers[voucherID]
	if !ok || v.Stock <= 0 {
		return 0, nil
	}
	v.Stock--
	return 1, nil
}

func (f *fakeVoucherRepo) WithTx(tx *gorm.DB) repository.VoucherRepository {
	return f
}

type fixture struct {
	svc    *Service
	queue  *queue.MemoryQueue
	client *goredis.Client
	mr     *miniredis.Miniredis
	repo   *fakeVoucherRepo
}

func activeVoucher(id int64, stock int) *model.Voucher {
	now := time.Now()
	return &model.Voucher{
		ID:        id,
		ShopID:    1,
		Title:     "coffee voucher",
		Stock:     stock,
		BeginTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cacheClient := cache.NewClient(client, cache.Options{})
	t.Cleanup(cacheClient.Close)

	prefilter, err := NewPrefilter(time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { prefilter.Close() })

	q := queue.NewMemoryQueue(64, 50*time.Millisecond)
	t.Cleanup(func() { q.Close() })

	repo := &fakeVoucherRepo{vouchers: map[int64]*model.Voucher{}}

	svc := NewService(repo, cacheClient, redis.NewAdmitter(client), idgen.NewGenerator(client), q, prefilter, 10*time.Minute)
	return &fixture{svc: svc, queue: q, client: client, mr: mr, repo: repo}
}

func TestSeckillHappyPath(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.repo.vouchers[7] = activeVoucher(7, 10)
	require.NoError(t, f.svc.Prewarm(ctx, 7))

	orderID, err := f.svc.Seckill(ctx, 1001, 7)
	require.NoError(t, err)
	assert.Positive(t, orderID)

	msg, err := f.queue.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, orderID, msg.Ticket.OrderID)
	assert.Equal(t, int64(1001), msg.Ticket.UserID)
	assert.Equal(t, int64(7), msg.Ticket.VoucherID)

	stock, err := f.client.Get(ctx, redis.StockKey(7)).Int()
	require.NoError(t, err)
	assert.Equal(t, 9, stock)
}

func TestSeckillDuplicateUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.repo.vouchers[7] = activeVoucher(7, 10)
	require.NoError(t, f.svc.Prewarm(ctx, 7))

	_, err := f.svc.Seckill(ctx, 1001, 7)
	require.NoError(t, err)

	_, err = f.svc.Seckill(ctx, 1001, 7)
	appErr, ok := utils.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeDuplicateUser, appErr.Code)
}

func TestSeckillSoldOutMarksLocally(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.repo.vouchers[7] = activeVoucher(7, 1)
	require.NoError(t, f.svc.Prewarm(ctx, 7))

	_, err := f.svc.Seckill(ctx, 1001, 7)
	require.NoError(t, err)

	_, err = f.svc.Seckill(ctx, 1002, 7)
	appErr, ok := utils.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeSoldOut, appErr.Code)

	// Later requests are absorbed by the local marker.
	assert.True(t, f.svc.prefilter.IsSoldOut(7))
	_, err = f.svc.Seckill(ctx, 1003, 7)
	appErr, ok = utils.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeSoldOut, appErr.Code)
}

func TestSeckillOutsideWindow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	early := activeVoucher(7, 10)
	early.BeginTime = time.Now().Add(time.Hour)
	early.EndTime = time.Now().Add(2 * time.Hour)
	f.repo.vouchers[7] = early
	require.NoError(t, f.svc.Prewarm(ctx, 7))

	_, err := f.svc.Seckill(ctx, 1001, 7)
	appErr, ok := utils.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeSaleNotStart, appErr.Code)

	late := activeVoucher(8, 10)
	late.BeginTime = time.Now().Add(-2 * time.Hour)
	late.EndTime = time.Now().Add(-time.Hour)
	f.repo.vouchers[8] = late
	require.NoError(t, f.svc.Prewarm(ctx, 8))

	_, err = f.svc.Seckill(ctx, 1001, 8)
	appErr, ok = utils.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeSaleEnded, appErr.Code)
}

func TestSeckillUnwarmedCampaignRejected(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Seckill(context.Background(), 1001, 999)
	appErr, ok := utils.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeInvalidParam, appErr.Code)
}

func TestSeckillInvalidParams(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Seckill(context.Background(), 0, 7)
	assert.ErrorIs(t, err, utils.ErrInvalidParam)

	_, err = f.svc.Seckill(context.Background(), 1001, -1)
	assert.ErrorIs(t, err, utils.ErrInvalidParam)
}

func TestSeckillFailsClosedWhenQueueFull(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.repo.vouchers[7] = activeVoucher(7, 10)
	require.NoError(t, f.svc.Prewarm(ctx, 7))

	// Saturate the transport so the admitted ticket has nowhere to go.
	for i := 0; ; i++ {
		err := f.queue.Enqueue(ctx, &model.OrderTicket{OrderID: int64(i)})
		if errors.Is(err, queue.ErrQueueFull) {
			break
		}
		require.NoError(t, err)
	}

	_, err := f.svc.Seckill(ctx, 1001, 7)
	appErr, ok := utils.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeInternalError, appErr.Code)
}

func TestSeckillFailsClosedWhenStoreDown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.repo.vouchers[7] = activeVoucher(7, 10)
	require.NoError(t, f.svc.Prewarm(ctx, 7))

	f.mr.Close()

	_, err := f.svc.Seckill(ctx, 1001, 7)
	assert.Error(t, err)
}

func TestPrewarmCachesVoucherWithConfiguredTTL(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.repo.vouchers[7] = activeVoucher(7, 10)
	require.NoError(t, f.svc.Prewarm(ctx, 7))

	ttl, err := f.client.TTL(ctx, "cache:voucher:7").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 9*time.Minute)
	assert.LessOrEqual(t, ttl, 10*time.Minute)
}

func TestPrewarmAll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.repo.vouchers[7] = activeVoucher(7, 10)
	f.repo.vouchers[8] = activeVoucher(8, 5)

	require.NoError(t, f.svc.PrewarmAll(ctx))

	assert.True(t, f.svc.prefilter.MightExist(7))
	assert.True(t, f.svc.prefilter.MightExist(8))

	stock, err := f.client.Get(ctx, redis.StockKey(8)).Int()
	require.NoError(t, err)
	assert.Equal(t, 5, stock)
}
