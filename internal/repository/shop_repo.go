package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashsale/internal/model"
)

// ErrShopNotFound shop not found
var ErrShopNotFound = errors.New("shop not found")

// ShopRepository shop data access interface
type ShopRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Shop, error)
	Update(ctx context.Context, shop *model.Shop) error
	ListIDs(ctx context.Context) ([]int64, error)
}

type shopRepository struct {
	db *gorm.DB
}

// NewShopRepository creates a shop repository
func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepository{db: db}
}

func (r *shopRepository) GetByID(ctx context.Context, id int64) (*model.Shop, error) {
	var shop model.Shop
	err := r.db.WithContext(ctx).First(&shop, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepository) Update(ctx context.Context, shop *model.Shop) error {
	return r.db.WithContext(ctx).Save(shop).Error
}

func (r *shopRepository) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.Shop{}).
		Pluck("id", &ids).Error
	return ids, err
}
