package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flashsale/internal/cache"
	"flashsale/internal/model"
	"flashsale/internal/repository"
	"flashsale/pkg/log"
	"flashsale/pkg/utils"
)

const (
	shopCachePrefix = "cache:shop:"
	shopLockPrefix  = "lock:shop:"
)

// Service serves shop reads through the logical-expire cache and
// keeps the cache coherent on writes.
type Service struct {
	repo       repository.ShopRepository
	cache      *cache.Client
	logicalTTL time.Duration
}

// NewService creates a shop service
func NewService(repo repository.ShopRepository, cacheClient *cache.Client, logicalTTL time.Duration) *Service {
	if logicalTTL <= 0 {
		logicalTTL = 30 * time.Minute
	}
	return &Service{repo: repo, cache: cacheClient, logicalTTL: logicalTTL}
}

// GetByID returns a shop, serving stale data while a rebuild runs in
// the background. Shops must be warmed before they are readable.
func (s *Service) GetByID(ctx context.Context, id int64) (*model.Shop, error) {
	if id <= 0 {
		return nil, utils.ErrInvalidParam
	}

	shop, err := cache.QueryWithLogicalExpire(ctx, s.cache, cacheKey(id), lockKey(id), s.logicalTTL,
		func(ctx context.Context) (*model.Shop, error) {
			shop, err := s.repo.GetByID(ctx, id)
			if errors.Is(err, repository.ErrShopNotFound) {
				return nil, nil
			}
			return shop, err
		})
	if errors.Is(err, cache.ErrNotFound) {
		return nil, utils.ErrShopNotFound
	}
	return shop, err
}

// Update writes the database first and then evicts the cache, so the
// next read rebuilds from the fresh row.
func (s *Service) Update(ctx context.Context, shop *model.Shop) error {
	if shop.ID <= 0 {
		return utils.ErrInvalidParam
	}

	if err := s.repo.Update(ctx, shop); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey(shop.ID)); err != nil {
		return fmt.Errorf("failed to evict shop cache: %w", err)
	}
	return nil
}

// Warmup loads a shop into the cache with a logical expiry
func (s *Service) Warmup(ctx context.Context, id int64) error {
	shop, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.cache.SetWithLogicalExpire(ctx, cacheKey(id), shop, s.logicalTTL)
}

// WarmupAll loads every shop into the cache
func (s *Service) WarmupAll(ctx context.Context) error {
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.Warmup(ctx, id); err != nil {
			log.WithError(err).WithField("shop_id", id).Error("failed to warm shop")
		}
	}
	return nil
}

func cacheKey(id int64) string {
	return fmt.Sprintf("%s%d", shopCachePrefix, id)
}

func lockKey(id int64) string {
	return fmt.Sprintf("%s%d", shopLockPrefix, id)
}
