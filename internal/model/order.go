package model

import (
	"time"
)

// Order status
const (
	OrderStatusUnpaid   = 1
	OrderStatusPaid     = 2
	OrderStatusRefunded = 3
)

// VoucherOrder is a purchase record. The ID is generated up front by
// the gate, not by the database, so the caller already holds it when
// the row is eventually written.
type VoucherOrder struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_user_voucher" json:"user_id"`
	VoucherID int64     `gorm:"not null;uniqueIndex:idx_user_voucher" json:"voucher_id"`
	PayValue  int64     `gorm:"not null;default:0" json:"pay_value"`
	Status    int       `gorm:"not null;default:1" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name
func (VoucherOrder) TableName() string {
	return "voucher_orders"
}
