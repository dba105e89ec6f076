package sim

import (
	"fmt"
	"time"

	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/shared/biztime"
)

// Quota is the locally persisted snapshot of a provider-side quota counter.
// Remaining is always derived as total - used at read time; the stored
// provider values are clamped so remaining never goes negative.
type Quota struct {
	id        uint
	iccid     string
	quotaType valueobjects.QuotaType
	total     uint64
	used      uint64
	createdAt time.Time
	updatedAt time.Time
}

// NewQuota creates a quota snapshot for an ICCID.
func NewQuota(iccid string, quotaType valueobjects.QuotaType, total, used uint64) (*Quota, error) {
	if iccid == "" {
		return nil, fmt.Errorf("quota iccid is required")
	}
	if !quotaType.IsValid() {
		return nil, fmt.Errorf("invalid quota type: %s", quotaType)
	}

	now := biztime.NowUTC()
	q := &Quota{
		iccid:     iccid,
		quotaType: quotaType,
		createdAt: now,
		updatedAt: now,
	}
	q.total = total
	q.used = clampUsed(total, used)
	return q, nil
}

// ReconstructQuota rebuilds a Quota entity from persistence.
func ReconstructQuota(
	id uint,
	iccid string,
	quotaType valueobjects.QuotaType,
	total, used uint64,
	createdAt, updatedAt time.Time,
) (*Quota, error) {
	if id == 0 {
		return nil, fmt.Errorf("quota ID cannot be zero")
	}
	if iccid == "" {
		return nil, fmt.Errorf("quota iccid is required")
	}
	if !quotaType.IsValid() {
		return nil, fmt.Errorf("invalid quota type: %s", quotaType)
	}

	return &Quota{
		id:        id,
		iccid:     iccid,
		quotaType: quotaType,
		total:     total,
		used:      clampUsed(total, used),
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

// QuotaAnomaly describes a provider value that violated a local invariant.
// Anomalies are applied (after clamping) and logged, never silently dropped:
// counters legitimately reset at billing-cycle boundaries.
type QuotaAnomaly string

const (
	AnomalyNone          QuotaAnomaly = ""
	AnomalyUsedDecreased QuotaAnomaly = "used_decreased"
	AnomalyUsedOverTotal QuotaAnomaly = "used_over_total"
)

// ApplyRemote overwrites the snapshot with the provider's authoritative
// values and reports any anomaly the caller should log.
func (q *Quota) ApplyRemote(total, used uint64) QuotaAnomaly {
	anomaly := AnomalyNone
	if used < q.used {
		anomaly = AnomalyUsedDecreased
	}
	if used > total {
		anomaly = AnomalyUsedOverTotal
	}

	q.total = total
	q.used = clampUsed(total, used)
	q.updatedAt = biztime.NowUTC()
	return anomaly
}

// ApplyTopUp optimistically adds volume to the total ahead of the provider's
// authoritative response. The next reconcile overwrites it.
func (q *Quota) ApplyTopUp(volume uint64) {
	q.total += volume
	q.updatedAt = biztime.NowUTC()
}

func (q *Quota) SetID(id uint) error {
	if q.id != 0 {
		return fmt.Errorf("quota ID already set")
	}
	q.id = id
	return nil
}

// Remaining is derived, never stored: total - used, floored at zero.
func (q *Quota) Remaining() uint64 {
	if q.used >= q.total {
		return 0
	}
	return q.total - q.used
}

// QuotaSnapshot is the plain read model handed to callers; Remaining is
// recomputed, never read back from storage.
type QuotaSnapshot struct {
	ICCID     string
	Type      valueobjects.QuotaType
	Total     uint64
	Used      uint64
	Remaining uint64
	UpdatedAt time.Time
}

// Snapshot returns the plain read model for this quota.
func (q *Quota) Snapshot() QuotaSnapshot {
	return QuotaSnapshot{
		ICCID:     q.iccid,
		Type:      q.quotaType,
		Total:     q.total,
		Used:      q.used,
		Remaining: q.Remaining(),
		UpdatedAt: q.updatedAt,
	}
}

func (q *Quota) ID() uint                     { return q.id }
func (q *Quota) ICCID() string                { return q.iccid }
func (q *Quota) Type() valueobjects.QuotaType { return q.quotaType }
func (q *Quota) Total() uint64                { return q.total }
func (q *Quota) Used() uint64                 { return q.used }
func (q *Quota) CreatedAt() time.Time         { return q.createdAt }
func (q *Quota) UpdatedAt() time.Time         { return q.updatedAt }

func clampUsed(total, used uint64) uint64 {
	if used > total {
		return total
	}
	return used
}
