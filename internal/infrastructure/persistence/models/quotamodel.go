package models

import "time"

// QuotaModel represents the persisted quota snapshot for one (iccid, type)
// pair. Remaining is intentionally not a column; it is derived on read.
type QuotaModel struct {
	ID        uint      `gorm:"primarykey"`
	ICCID     string    `gorm:"column:iccid;not null;size:22;uniqueIndex:idx_quota_key,priority:1"`
	QuotaType string    `gorm:"column:quota_type;not null;size:8;uniqueIndex:idx_quota_key,priority:2"`
	Total     uint64    `gorm:"not null;default:0"`
	Used      uint64    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (QuotaModel) TableName() string {
	return "sim_quotas"
}
