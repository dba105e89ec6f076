package sim

import (
	"fmt"
	"time"

	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
)

// UsageRecord is one interval of the append-only usage time series. Identity
// is (ICCID, timestamp, direction); re-syncing the same interval must never
// double-count, so persistence skips records whose key already exists.
type UsageRecord struct {
	ICCID     string
	Timestamp time.Time
	Direction valueobjects.Direction
	Bytes     uint64
	SMSMO     uint64 // mobile-originated SMS count
	SMSMT     uint64 // mobile-terminated SMS count
}

// Validate checks the record's identity fields.
func (u UsageRecord) Validate() error {
	if u.ICCID == "" {
		return fmt.Errorf("usage record iccid is required")
	}
	if u.Timestamp.IsZero() {
		return fmt.Errorf("usage record timestamp is required")
	}
	if !u.Direction.IsValid() {
		return fmt.Errorf("invalid usage direction: %s", u.Direction)
	}
	return nil
}

// Key returns the natural identity of the record, used for duplicate
// detection across retries.
func (u UsageRecord) Key() string {
	return fmt.Sprintf("%s|%d|%s", u.ICCID, u.Timestamp.UTC().Unix(), u.Direction)
}
