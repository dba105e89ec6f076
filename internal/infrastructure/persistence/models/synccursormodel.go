package models

import "time"

// SyncCursorModel persists per-job scheduling state so restarts resume
// pagination and keep the degraded-mode backoff instead of starting fresh.
type SyncCursorModel struct {
	ID                  uint      `gorm:"primarykey"`
	JobName             string    `gorm:"column:job_name;uniqueIndex;not null;size:32"`
	LastRunAt           time.Time `gorm:"column:last_run_at"`
	LastSuccessAt       time.Time `gorm:"column:last_success_at"`
	LastError           string    `gorm:"column:last_error;size:1024"`
	PageCursor          string    `gorm:"column:page_cursor;size:255"`
	ConsecutiveFailures int       `gorm:"column:consecutive_failures;not null;default:0"`
	NextRunAt           time.Time `gorm:"column:next_run_at"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName specifies the table name for GORM
func (SyncCursorModel) TableName() string {
	return "sync_cursors"
}
