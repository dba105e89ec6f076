package models

import "time"

// UsageRecordModel represents one provider-reported usage interval. The
// composite unique index on (iccid, timestamp, direction) is what makes
// appends idempotent: re-fetched windows insert nothing new.
type UsageRecordModel struct {
	ID        uint      `gorm:"primarykey"`
	ICCID     string    `gorm:"column:iccid;not null;size:22;uniqueIndex:idx_usage_key,priority:1"`
	Timestamp time.Time `gorm:"not null;uniqueIndex:idx_usage_key,priority:2"`
	Direction string    `gorm:"not null;size:2;uniqueIndex:idx_usage_key,priority:3"`
	Bytes     uint64    `gorm:"not null;default:0"`
	SMSMO     uint64    `gorm:"column:sms_mo;not null;default:0"`
	SMSMT     uint64    `gorm:"column:sms_mt;not null;default:0"`
	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (UsageRecordModel) TableName() string {
	return "sim_usage_records"
}
