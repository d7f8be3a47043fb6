package model

import (
	"time"
)

// Shop is the merchant entity behind a voucher. Reads go through the
// cache layer, so hot shops never hit the database on the read path.
type Shop struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	TypeID    int64     `gorm:"index" json:"type_id"`
	Address   string    `gorm:"type:varchar(255)" json:"address"`
	AvgPrice  int64     `json:"avg_price"`
	Score     int       `json:"score"`
	OpenHours string    `gorm:"type:varchar(32)" json:"open_hours"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name
func (Shop) TableName() string {
	return "shops"
}
