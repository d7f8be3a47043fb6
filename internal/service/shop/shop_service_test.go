package shop

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsale/internal/cache"
	"flashsale/internal/model"
	"flashsale/internal/repository"
	"flashsale/pkg/utils"
)

type fakeShopRepo struct {
	shops map[int64]*model.Shop
	gets  int
}

func (f *fakeShopRepo) GetByID(ctx context.Context, id int64) (*model.Shop, error) {
	f.gets++
	shop, ok := f.shops[id]
	if !ok {
		return nil, repository.ErrShopNotFound
	}
	copied := *shop
	return &copied, nil
}

func (f *fakeShopRepo) Update(ctx context.Context, shop *model.Shop) error {
	f.shops[shop.ID] = shop
	return nil
}

func (f *fakeShopRepo) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range f.shops {
		ids = append(ids, id)
	}
	return ids, nil
}

func setup(t *testing.T) (*Service, *fakeShopRepo, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cacheClient := cache.NewClient(client, cache.Options{})
	t.Cleanup(cacheClient.Close)

	repo := &fakeShopRepo{shops: map[int64]*model.Shop{}}
	return NewService(repo, cacheClient, 30*time.Minute), repo, client
}

func TestGetByIDRequiresWarmup(t *testing.T) {
	svc, repo, _ := setup(t)
	repo.shops[1] = &model.Shop{ID: 1, Name: "cafe"}

	_, err := svc.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, utils.ErrShopNotFound)
}

func TestGetByIDAfterWarmup(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	repo.shops[1] = &model.Shop{ID: 1, Name: "cafe"}

	require.NoError(t, svc.Warmup(ctx, 1))

	shop, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cafe", shop.Name)

	// Fresh entry, the repository is not consulted again.
	gets := repo.gets
	_, err = svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, gets, repo.gets)
}

func TestUpdateEvictsCache(t *testing.T) {
	svc, repo, client := setup(t)
	ctx := context.Background()
	repo.shops[1] = &model.Shop{ID: 1, Name: "cafe"}

	require.NoError(t, svc.Warmup(ctx, 1))
	require.NoError(t, svc.Update(ctx, &model.Shop{ID: 1, Name: "bistro"}))

	exists, err := client.Exists(ctx, "cache:shop:1").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	// Warm again and the fresh name comes back.
	require.NoError(t, svc.Warmup(ctx, 1))
	shop, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "bistro", shop.Name)
}

func TestUpdateInvalidID(t *testing.T) {
	svc, _, _ := setup(t)

	err := svc.Update(context.Background(), &model.Shop{ID: 0})
	assert.ErrorIs(t, err, utils.ErrInvalidParam)
}

func TestWarmupAll(t *testing.T) {
	svc, repo, client := setup(t)
	ctx := context.Background()
	repo.shops[1] = &model.Shop{ID: 1, Name: "cafe"}
	repo.shops[2] = &model.Shop{ID: 2, Name: "bar"}

	require.NoError(t, svc.WarmupAll(ctx))

	for _, key := range []string{"cache:shop:1", "cache:shop:2"} {
		exists, err := client.Exists(ctx, key).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
	}
}
