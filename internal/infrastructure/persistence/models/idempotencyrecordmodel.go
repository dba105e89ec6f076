package models

import "time"

// IdempotencyRecordModel persists command outcomes keyed by
// (command_type, iccid, idempotency_key) so retried commands replay the
// recorded outcome instead of re-executing against the provider.
type IdempotencyRecordModel struct {
	ID             uint      `gorm:"primarykey"`
	CommandType    string    `gorm:"column:command_type;not null;size:32;uniqueIndex:idx_command_key,priority:1"`
	ICCID          string    `gorm:"column:iccid;not null;size:22;uniqueIndex:idx_command_key,priority:2"`
	IdempotencyKey string    `gorm:"column:idempotency_key;not null;size:64;uniqueIndex:idx_command_key,priority:3"`
	Status         string    `gorm:"not null;size:16"`
	Message        string    `gorm:"size:1024"`
	QuotaType      string    `gorm:"column:quota_type;size:8"`
	QuotaTotal     *uint64   `gorm:"column:quota_total"`
	QuotaUsed      *uint64   `gorm:"column:quota_used"`
	CreatedAt      time.Time
	ExpiresAt      time.Time `gorm:"column:expires_at;not null;index"`
}

// TableName specifies the table name for GORM
func (IdempotencyRecordModel) TableName() string {
	return "command_idempotency_records"
}
