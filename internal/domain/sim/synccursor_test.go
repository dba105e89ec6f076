package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncCursorBackoffKicksInAfterThreeFailures(t *testing.T) {
	c := NewSyncCursor(JobInventorySync)
	base := 15 * time.Minute

	c.RecordFailure(errors.New("provider degraded"), "", base)
	c.RecordFailure(errors.New("provider degraded"), "", base)
	assert.True(t, c.Due(time.Now().UTC()), "no backoff before the third consecutive failure")

	c.RecordFailure(errors.New("provider degraded"), "", base)
	assert.False(t, c.Due(time.Now().UTC()))
	assert.WithinDuration(t, time.Now().UTC().Add(2*base), c.NextRunAt, time.Minute)
}

func TestSyncCursorBackoffIsCapped(t *testing.T) {
	c := NewSyncCursor(JobQuotaCheck)
	base := 30 * time.Minute

	for i := 0; i < 10; i++ {
		c.RecordFailure(errors.New("still down"), "", base)
	}

	assert.WithinDuration(t, time.Now().UTC().Add(8*base), c.NextRunAt, time.Minute)
}

func TestSyncCursorSuccessClearsFailureState(t *testing.T) {
	c := NewSyncCursor(JobUsageSync)
	base := time.Hour

	c.RecordFailure(errors.New("timeout"), "page-7", base)
	c.RecordFailure(errors.New("timeout"), "page-7", base)
	c.RecordFailure(errors.New("timeout"), "page-7", base)
	assert.Equal(t, "page-7", c.PageCursor)

	c.RecordSuccess()

	assert.Zero(t, c.ConsecutiveFailures)
	assert.Empty(t, c.LastError)
	assert.Empty(t, c.PageCursor)
	assert.True(t, c.Due(time.Now().UTC()))
}

func TestSyncCursorPreservesResumeCursorOnFailure(t *testing.T) {
	c := NewSyncCursor(JobInventorySync)

	c.RecordFailure(errors.New("aborted mid-listing"), "cursor-abc", 15*time.Minute)

	assert.Equal(t, "cursor-abc", c.PageCursor)
	assert.Equal(t, 1, c.ConsecutiveFailures)
}
