package models

import (
	"time"
)

// SimModel represents the database persistence model for SIM cards.
// This is the anti-corruption layer between domain and database.
type SimModel struct {
	ID           uint       `gorm:"primarykey"`
	ICCID        string     `gorm:"column:iccid;uniqueIndex;not null;size:22"`
	IMSI         string     `gorm:"column:imsi;size:16"`
	MSISDN       string     `gorm:"column:msisdn;size:16"`
	Status       string     `gorm:"not null;size:16;index"`
	IPAddress    string     `gorm:"column:ip_address;size:45"` // fits IPv6
	Operator     string     `gorm:"size:64;index"`
	ActivatedAt  *time.Time `gorm:"column:activated_at"`
	Label        string     `gorm:"size:128"`
	MissedSyncs  int        `gorm:"column:missed_syncs;not null;default:0"`
	LastSyncedAt time.Time  `gorm:"column:last_synced_at;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Note: No foreign key constraints or associations.
	// All relationships are managed by application business logic.
}

// TableName specifies the table name for GORM
func (SimModel) TableName() string {
	return "sims"
}
