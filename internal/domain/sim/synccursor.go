package sim

import (
	"time"

	"github.com/simflux/simflux/internal/shared/biztime"
)

// Job names used by the scheduler, the cursor store, and the manual trigger
// facade.
const (
	JobInventorySync = "inventory_sync"
	JobUsageSync     = "usage_sync"
	JobQuotaCheck    = "quota_check"
	JobCleanup       = "cleanup"
)

// KnownJobs lists every registered sync job.
var KnownJobs = []string{JobInventorySync, JobUsageSync, JobQuotaCheck, JobCleanup}

const (
	// consecutiveFailuresBeforeBackoff is how many failed runs in a row a
	// job tolerates before its next run is delayed.
	consecutiveFailuresBeforeBackoff = 3
	// maxBackoffMultiplier caps the degraded-provider delay at 8x the base
	// interval.
	maxBackoffMultiplier = 8
)

// SyncCursor is the per-job bookkeeping row: it makes jobs resumable (page
// cursor survives aborted runs) and drives next-run backoff when the
// provider is degraded.
type SyncCursor struct {
	JobName             string
	LastRunAt           time.Time
	LastSuccessAt       time.Time
	LastError           string
	PageCursor          string
	ConsecutiveFailures int
	NextRunAt           time.Time
}

// NewSyncCursor creates the bookkeeping row for a job's first run.
func NewSyncCursor(jobName string) *SyncCursor {
	return &SyncCursor{JobName: jobName}
}

// Due reports whether the job may run now. A zero NextRunAt means no backoff
// is in effect.
func (c *SyncCursor) Due(now time.Time) bool {
	return c.NextRunAt.IsZero() || !now.Before(c.NextRunAt)
}

// RecordSuccess clears failure state and the resume cursor after a fully
// successful run.
func (c *SyncCursor) RecordSuccess() {
	now := biztime.NowUTC()
	c.LastRunAt = now
	c.LastSuccessAt = now
	c.LastError = ""
	c.PageCursor = ""
	c.ConsecutiveFailures = 0
	c.NextRunAt = time.Time{}
}

// RecordFailure stores the error and, once the provider looks degraded
// (three consecutive failed runs), pushes the next run out by a doubling,
// capped delay. pageCursor preserves partial progress so the next run
// resumes instead of restarting.
func (c *SyncCursor) RecordFailure(err error, pageCursor string, baseInterval time.Duration) {
	now := biztime.NowUTC()
	c.LastRunAt = now
	if err != nil {
		c.LastError = err.Error()
	}
	c.PageCursor = pageCursor
	c.ConsecutiveFailures++

	if c.ConsecutiveFailures >= consecutiveFailuresBeforeBackoff {
		multiplier := 1 << (c.ConsecutiveFailures - consecutiveFailuresBeforeBackoff + 1)
		if multiplier > maxBackoffMultiplier {
			multiplier = maxBackoffMultiplier
		}
		c.NextRunAt = now.Add(time.Duration(multiplier) * baseInterval)
	}
}
