package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashsale/internal/model"
)

// ErrVoucherNotFound voucher not found
var ErrVoucherNotFound = errors.New("voucher not found")

// VoucherRepository voucher data access interface
type VoucherRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Voucher, error)
	Create(ctx context.Context, voucher *model.Voucher) error
	ListActive(ctx context.Context) ([]*model.Voucher, error)
	// DecrementStock takes one unit off the durable stock, but only
	// while stock is still positive. Returns the number of rows
	// updated: 0 means the campaign is exhausted.
	DecrementStock(ctx context.Context, voucherID int64) (int64, error)
	WithTx(tx *gorm.DB) VoucherRepository
}

type voucherRepository struct {
	db *gorm.DB
}

// NewVoucherRepository creates a voucher repository
func NewVoucherRepository(db *gorm.DB) VoucherRepository {
	return &voucherRepository{db: db}
}

func (r *voucherRepository) GetByID(ctx context.Context, id int64) (*model.Voucher, error) {
	var voucher model.Voucher
	err := r.db.WithContext(ctx).First(&voucher, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) Create(ctx context.Context, voucher *model.Voucher) error {
	return r.db.WithContext(ctx).Create(voucher).Error
}

func (r *voucherRepository) ListActive(ctx context.Context) ([]*model.Voucher, error) {
	var vouchers []*model.Voucher
	err := r.db.WithContext(ctx).
		Where("end_time > NOW()").
		Order("begin_time").
		Find(&vouchers).Error
	if err != nil {
		return nil, err
	}
	return vouchers, nil
}

func (r *voucherRepository) DecrementStock(ctx context.Context, voucherID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Voucher{}).
		Where("id = ? AND stock > 0", voucherID).
		UpdateColumn("stock", gorm.Expr("stock - ?", 1))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *voucherRepository) WithTx(tx *gorm.DB) VoucherRepository {
	return &voucherRepository{db: tx}
}
