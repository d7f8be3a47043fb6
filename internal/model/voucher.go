package model

import (
	"time"
)

// Voucher is a flash-sale campaign: a discount coupon sold in limited
// quantity inside a fixed time window.
type Voucher struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID      int64     `gorm:"not null;index" json:"shop_id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	SubTitle    string    `gorm:"type:varchar(255)" json:"sub_title"`
	Rules       string    `gorm:"type:varchar(1024)" json:"rules"`
	PayValue    int64     `gorm:"not null" json:"pay_value"`
	ActualValue int64     `gorm:"not null" json:"actual_value"`
	Stock       int       `gorm:"not null" json:"stock"`
	BeginTime   time.Time `gorm:"not null" json:"begin_time"`
	EndTime     time.Time `gorm:"not null" json:"end_time"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name
func (Voucher) TableName() string {
	return "vouchers"
}

// Started reports whether the sale window has opened at the given time.
func (v *Voucher) Started(now time.Time) bool {
	return !now.Before(v.BeginTime)
}

// Ended reports whether the sale window has closed at the given time.
func (v *Voucher) Ended(now time.Time) bool {
	return now.After(v.EndTime)
}
