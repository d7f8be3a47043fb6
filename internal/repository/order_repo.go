package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashsale/internal/model"
)

// ErrOrderNotFound order not found
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository order data access interface
type OrderRepository interface {
	Create(ctx context.Context, order *model.VoucherOrder) error
	GetByID(ctx context.Context, id int64) (*model.VoucherOrder, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.VoucherOrder, error)
	CountByUserAndVoucher(ctx context.Context, userID, voucherID int64) (int64, error)
	WithTx(tx *gorm.DB) OrderRepository
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.VoucherOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.VoucherOrder, error) {
	var order model.VoucherOrder
	err := r.db.WithContext(ctx).First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]*model.VoucherOrder, error) {
	var orders []*model.VoucherOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) CountByUserAndVoucher(ctx context.Context, userID, voucherID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.VoucherOrder{}).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).
		Count(&count).Error
	return count, err
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}
