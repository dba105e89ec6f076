package sim

import (
	"context"
	"time"

	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
)

// ListFilter narrows SIM list queries from the facade.
type ListFilter struct {
	Status   valueobjects.SimStatus
	Operator string
	Search   string // matches ICCID prefix or label substring
}

// Page is offset pagination for facade reads.
type Page struct {
	Offset int
	Limit  int
}

// Repository is the persistence port for SIM entities. Implementations must
// make Save an upsert keyed on ICCID.
type Repository interface {
	FindByICCID(ctx context.Context, iccid string) (*Sim, error)
	List(ctx context.Context, filter ListFilter, page Page) ([]*Sim, int64, error)
	ListICCIDs(ctx context.Context) ([]string, error)
	Save(ctx context.Context, s *Sim) error
	// MarkMissedExcept increments the missed-sync counter of every SIM not
	// in seenICCIDs and returns how many rows were touched.
	MarkMissedExcept(ctx context.Context, seenICCIDs []string) (int64, error)
	// DeactivateMissed soft-deactivates active SIMs missed at least
	// threshold consecutive inventory syncs.
	DeactivateMissed(ctx context.Context, threshold int) (int64, error)
}

// UsageRepository is the persistence port for the usage time series.
type UsageRepository interface {
	// Append inserts net-new records and skips those whose
	// (iccid, timestamp, direction) key already exists.
	Append(ctx context.Context, records []UsageRecord) (inserted int, skipped int, err error)
	FindByICCID(ctx context.Context, iccid string, from, to time.Time) ([]UsageRecord, error)
	// LatestTimestamp returns the newest stored usage timestamp for the
	// ICCID, or the zero time when none exists.
	LatestTimestamp(ctx context.Context, iccid string) (time.Time, error)
}

// QuotaRepository is the persistence port for quota snapshots.
type QuotaRepository interface {
	Find(ctx context.Context, iccid string, quotaType valueobjects.QuotaType) (*Quota, error)
	Save(ctx context.Context, q *Quota) error
}

// SyncCursorRepository persists per-job scheduling state.
type SyncCursorRepository interface {
	Find(ctx context.Context, jobName string) (*SyncCursor, error)
	Save(ctx context.Context, c *SyncCursor) error
}

// IdempotencyRepository persists command outcomes for replay.
type IdempotencyRepository interface {
	Find(ctx context.Context, commandType CommandType, iccid, key string) (*IdempotencyRecord, error)
	Save(ctx context.Context, rec *IdempotencyRecord) error
	// Delete removes one record, e.g. a stale one whose replay window has
	// passed, so Save can record a fresh outcome under the same key.
	Delete(ctx context.Context, commandType CommandType, iccid, key string) error
	// DeleteExpired removes records whose replay window has passed and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
