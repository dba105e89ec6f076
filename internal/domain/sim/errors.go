package sim

import "errors"

var (
	// ErrSimNotFound is returned when no SIM row exists for an ICCID.
	ErrSimNotFound = errors.New("sim not found")
	// ErrQuotaNotFound is returned when no quota snapshot exists for an
	// (iccid, type) pair.
	ErrQuotaNotFound = errors.New("quota not found")
	// ErrCursorNotFound is returned before a job's first run.
	ErrCursorNotFound = errors.New("sync cursor not found")
	// ErrIdempotencyNotFound is returned when no outcome is recorded for a
	// command key.
	ErrIdempotencyNotFound = errors.New("idempotency record not found")
	// ErrUnknownJob is returned for manual triggers of unregistered jobs.
	ErrUnknownJob = errors.New("unknown sync job")
)
