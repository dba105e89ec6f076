package sim

import (
	"fmt"
	"time"

	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/shared/biztime"
)

// RemoteSim is the provider's view of a SIM, as fetched from the inventory
// endpoint. It is a plain snapshot; all merge logic lives on the Sim entity.
type RemoteSim struct {
	ICCID       string
	IMSI        string
	MSISDN      string
	Status      valueobjects.SimStatus
	IPAddress   string
	Operator    string
	ActivatedAt *time.Time
	Label       string
}

// Sim is the locally persisted representation of a provider SIM. ICCID is
// immutable once created; SIMs are never hard-deleted so historical usage
// joins stay valid.
type Sim struct {
	id           uint
	iccid        string
	imsi         string
	msisdn       string
	status       valueobjects.SimStatus
	ipAddress    string
	operator     string
	activatedAt  *time.Time
	label        string
	missedSyncs  int
	lastSyncedAt time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// NewSimFromRemote creates a Sim from its first inventory-sync discovery or
// explicit provisioning.
func NewSimFromRemote(remote RemoteSim) (*Sim, error) {
	if remote.ICCID == "" {
		return nil, fmt.Errorf("iccid is required")
	}
	if !remote.Status.IsValid() {
		return nil, fmt.Errorf("invalid sim status: %s", remote.Status)
	}

	now := biztime.NowUTC()
	return &Sim{
		iccid:        remote.ICCID,
		imsi:         remote.IMSI,
		msisdn:       remote.MSISDN,
		status:       remote.Status,
		ipAddress:    remote.IPAddress,
		operator:     remote.Operator,
		activatedAt:  remote.ActivatedAt,
		label:        remote.Label,
		lastSyncedAt: now,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructSim rebuilds a Sim entity from persistence.
func ReconstructSim(
	id uint,
	iccid, imsi, msisdn string,
	status valueobjects.SimStatus,
	ipAddress, operator string,
	activatedAt *time.Time,
	label string,
	missedSyncs int,
	lastSyncedAt, createdAt, updatedAt time.Time,
) (*Sim, error) {
	if id == 0 {
		return nil, fmt.Errorf("sim ID cannot be zero")
	}
	if iccid == "" {
		return nil, fmt.Errorf("iccid is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid sim status: %s", status)
	}

	return &Sim{
		id:           id,
		iccid:        iccid,
		imsi:         imsi,
		msisdn:       msisdn,
		status:       status,
		ipAddress:    ipAddress,
		operator:     operator,
		activatedAt:  activatedAt,
		label:        label,
		missedSyncs:  missedSyncs,
		lastSyncedAt: lastSyncedAt,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}, nil
}

// ApplyRemote merges a freshly fetched remote snapshot into the entity,
// updating only fields that actually differ. It returns whether any
// attribute changed; lastSyncedAt is bumped either way so staleness tracking
// keeps working.
func (s *Sim) ApplyRemote(remote RemoteSim) (bool, error) {
	if remote.ICCID != s.iccid {
		return false, fmt.Errorf("iccid mismatch: have %s, got %s", s.iccid, remote.ICCID)
	}
	if !remote.Status.IsValid() {
		return false, fmt.Errorf("invalid sim status: %s", remote.Status)
	}

	changed := false
	if remote.IMSI != "" && remote.IMSI != s.imsi {
		s.imsi = remote.IMSI
		changed = true
	}
	if remote.MSISDN != "" && remote.MSISDN != s.msisdn {
		s.msisdn = remote.MSISDN
		changed = true
	}
	if remote.Status != s.status {
		s.status = remote.Status
		changed = true
	}
	if remote.IPAddress != s.ipAddress {
		s.ipAddress = remote.IPAddress
		changed = true
	}
	if remote.Operator != "" && remote.Operator != s.operator {
		s.operator = remote.Operator
		changed = true
	}
	if remote.ActivatedAt != nil && (s.activatedAt == nil || !remote.ActivatedAt.Equal(*s.activatedAt)) {
		s.activatedAt = remote.ActivatedAt
		changed = true
	}
	if remote.Label != "" && remote.Label != s.label {
		s.label = remote.Label
		changed = true
	}

	if s.missedSyncs != 0 {
		s.missedSyncs = 0
		changed = true
	}

	s.lastSyncedAt = biztime.NowUTC()
	s.updatedAt = s.lastSyncedAt
	return changed, nil
}

// MarkMissed records that an inventory sync completed without seeing this
// SIM. The cleanup job soft-deactivates SIMs missed too many times in a row.
func (s *Sim) MarkMissed() {
	s.missedSyncs++
	s.updatedAt = biztime.NowUTC()
}

// Deactivate soft-deactivates the SIM. Used instead of deletion when the
// provider stops reporting it.
func (s *Sim) Deactivate() {
	s.status = valueobjects.StatusInactive
	s.updatedAt = biztime.NowUTC()
}

// SetStatus applies a command-driven status change, validating the
// transition.
func (s *Sim) SetStatus(target valueobjects.SimStatus) error {
	if !target.IsValid() {
		return fmt.Errorf("invalid sim status: %s", target)
	}
	if target == s.status {
		return nil
	}
	if !s.status.CanTransitionTo(target) {
		return fmt.Errorf("cannot transition sim %s from %s to %s", s.iccid, s.status, target)
	}
	s.status = target
	s.updatedAt = biztime.NowUTC()
	return nil
}

func (s *Sim) SetID(id uint) error {
	if s.id != 0 {
		return fmt.Errorf("sim ID already set")
	}
	s.id = id
	return nil
}

func (s *Sim) ID() uint                       { return s.id }
func (s *Sim) ICCID() string                  { return s.iccid }
func (s *Sim) IMSI() string                   { return s.imsi }
func (s *Sim) MSISDN() string                 { return s.msisdn }
func (s *Sim) Status() valueobjects.SimStatus { return s.status }
func (s *Sim) IPAddress() string              { return s.ipAddress }
func (s *Sim) Operator() string               { return s.operator }
func (s *Sim) ActivatedAt() *time.Time        { return s.activatedAt }
func (s *Sim) Label() string                  { return s.label }
func (s *Sim) MissedSyncs() int               { return s.missedSyncs }
func (s *Sim) LastSyncedAt() time.Time        { return s.lastSyncedAt }
func (s *Sim) CreatedAt() time.Time           { return s.createdAt }
func (s *Sim) UpdatedAt() time.Time           { return s.updatedAt }
