package sim

import (
	"time"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/infrastructure/cache"
)

// SimDTO is the read model handed to API callers.
type SimDTO struct {
	ICCID        string     `json:"iccid"`
	IMSI         string     `json:"imsi,omitempty"`
	MSISDN       string     `json:"msisdn,omitempty"`
	Status       string     `json:"status"`
	IPAddress    string     `json:"ip_address,omitempty"`
	Operator     string     `json:"operator,omitempty"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	Label        string     `json:"label,omitempty"`
	LastSyncedAt time.Time  `json:"last_synced_at"`
}

// SimListResult carries one page of SIMs plus the unpaged total.
type SimListResult struct {
	Sims   []SimDTO `json:"sims"`
	Total  int64    `json:"total"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
}

func simDTOFromEntity(s *sim.Sim) SimDTO {
	return SimDTO{
		ICCID:        s.ICCID(),
		IMSI:         s.IMSI(),
		MSISDN:       s.MSISDN(),
		Status:       s.Status().String(),
		IPAddress:    s.IPAddress(),
		Operator:     s.Operator(),
		ActivatedAt:  s.ActivatedAt(),
		Label:        s.Label(),
		LastSyncedAt: s.LastSyncedAt(),
	}
}

func simDTOFromCache(c *cache.CachedSim) SimDTO {
	return SimDTO{
		ICCID:        c.ICCID,
		IMSI:         c.IMSI,
		MSISDN:       c.MSISDN,
		Status:       c.Status,
		IPAddress:    c.IPAddress,
		Operator:     c.Operator,
		ActivatedAt:  c.ActivatedAt,
		Label:        c.Label,
		LastSyncedAt: c.LastSyncedAt,
	}
}

func cachedSimFromEntity(s *sim.Sim) *cache.CachedSim {
	return &cache.CachedSim{
		ICCID:        s.ICCID(),
		IMSI:         s.IMSI(),
		MSISDN:       s.MSISDN(),
		Status:       s.Status().String(),
		IPAddress:    s.IPAddress(),
		Operator:     s.Operator(),
		ActivatedAt:  s.ActivatedAt(),
		Label:        s.Label(),
		LastSyncedAt: s.LastSyncedAt(),
	}
}

func quotaSnapshotFromCache(c *cache.CachedQuota, quotaType valueobjects.QuotaType) sim.QuotaSnapshot {
	return sim.QuotaSnapshot{
		ICCID:     c.ICCID,
		Type:      quotaType,
		Total:     c.Total,
		Used:      c.Used,
		Remaining: c.Remaining(),
		UpdatedAt: c.UpdatedAt,
	}
}
