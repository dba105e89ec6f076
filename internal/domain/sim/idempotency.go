package sim

import (
	"fmt"
	"time"

	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/shared/biztime"
)

// CommandType identifies a user-initiated write command.
type CommandType string

const (
	CommandTopUpQuota        CommandType = "topup_quota"
	CommandSendSMS           CommandType = "send_sms"
	CommandActivate          CommandType = "activate"
	CommandDeactivate        CommandType = "deactivate"
	CommandResetConnectivity CommandType = "reset_connectivity"
)

func (c CommandType) IsValid() bool {
	switch c {
	case CommandTopUpQuota, CommandSendSMS, CommandActivate, CommandDeactivate, CommandResetConnectivity:
		return true
	}
	return false
}

// OutcomeStatus is the definite result reported to the command caller.
// PartialSuccess means the provider-side effect happened but the local
// reconciliation write failed; the next scheduled sync self-heals it.
type OutcomeStatus string

const (
	OutcomeSuccess        OutcomeStatus = "success"
	OutcomeFailure        OutcomeStatus = "failure"
	OutcomePartialSuccess OutcomeStatus = "partial_success"
)

// CommandOutcome is what a command returns, and what gets replayed verbatim
// on a duplicate submission with the same idempotency key.
type CommandOutcome struct {
	Status  OutcomeStatus
	Message string
	// Quota carries the resulting quota snapshot for top-up commands so a
	// replayed submission returns identical data.
	Quota *QuotaSnapshot
}

// IdempotencyRecord maps (command type, ICCID, client key) to a previously
// produced outcome. Records expire after a bounded window; an expired record
// no longer shields against re-execution.
type IdempotencyRecord struct {
	ID          uint
	CommandType CommandType
	ICCID       string
	Key         string
	Status      OutcomeStatus
	Message     string
	QuotaType   string
	QuotaTotal  *uint64
	QuotaUsed   *uint64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// NewIdempotencyRecord captures a command outcome for replay within ttl.
func NewIdempotencyRecord(commandType CommandType, iccid, key string, outcome CommandOutcome, ttl time.Duration) (*IdempotencyRecord, error) {
	if !commandType.IsValid() {
		return nil, fmt.Errorf("invalid command type: %s", commandType)
	}
	if iccid == "" {
		return nil, fmt.Errorf("idempotency record iccid is required")
	}
	if key == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("idempotency ttl must be positive")
	}

	now := biztime.NowUTC()
	rec := &IdempotencyRecord{
		CommandType: commandType,
		ICCID:       iccid,
		Key:         key,
		Status:      outcome.Status,
		Message:     outcome.Message,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if outcome.Quota != nil {
		total := outcome.Quota.Total
		used := outcome.Quota.Used
		rec.QuotaType = outcome.Quota.Type.String()
		rec.QuotaTotal = &total
		rec.QuotaUsed = &used
	}
	return rec, nil
}

// Outcome reconstructs the stored command outcome for replay.
func (r *IdempotencyRecord) Outcome() CommandOutcome {
	outcome := CommandOutcome{
		Status:  r.Status,
		Message: r.Message,
	}
	if r.QuotaTotal != nil && r.QuotaUsed != nil {
		snap := QuotaSnapshot{
			ICCID: r.ICCID,
			Type:  valueobjects.QuotaType(r.QuotaType),
			Total: *r.QuotaTotal,
			Used:  *r.QuotaUsed,
		}
		if snap.Used < snap.Total {
			snap.Remaining = snap.Total - snap.Used
		}
		outcome.Quota = &snap
	}
	return outcome
}

// Expired reports whether the record's replay window has passed.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
