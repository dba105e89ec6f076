package nce

import (
	"time"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
)

// Wire payloads for the provider API. Every response is validated against
// these shapes before it reaches the domain; a payload that does not fit is
// a client error, never a silent partial read.

type simPayload struct {
	ICCID       string     `json:"iccid" validate:"required"`
	IMSI        string     `json:"imsi"`
	MSISDN      string     `json:"msisdn"`
	Status      string     `json:"status" validate:"required,oneof=active inactive suspended"`
	IPAddress   string     `json:"ip_address"`
	Operator    string     `json:"operator"`
	ActivatedAt *time.Time `json:"activated_at"`
	Label       string     `json:"label"`
}

func (p simPayload) toRemote() sim.RemoteSim {
	return sim.RemoteSim{
		ICCID:       p.ICCID,
		IMSI:        p.IMSI,
		MSISDN:      p.MSISDN,
		Status:      valueobjects.SimStatus(p.Status),
		IPAddress:   p.IPAddress,
		Operator:    p.Operator,
		ActivatedAt: p.ActivatedAt,
		Label:       p.Label,
	}
}

type simListResponse struct {
	Sims     []simPayload `json:"sims" validate:"dive"`
	NextPage string       `json:"next_page"`
}

type usagePayload struct {
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Direction string    `json:"direction" validate:"required,oneof=rx tx"`
	Bytes     uint64    `json:"bytes"`
	SMSMO     uint64    `json:"sms_mo"`
	SMSMT     uint64    `json:"sms_mt"`
}

func (p usagePayload) toRecord(iccid string) sim.UsageRecord {
	return sim.UsageRecord{
		ICCID:     iccid,
		Timestamp: p.Timestamp.UTC(),
		Direction: valueobjects.Direction(p.Direction),
		Bytes:     p.Bytes,
		SMSMO:     p.SMSMO,
		SMSMT:     p.SMSMT,
	}
}

type usageResponse struct {
	Usage    []usagePayload `json:"usage" validate:"dive"`
	NextPage string         `json:"next_page"`
}

type quotaResponse struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
}

type topUpRequest struct {
	Volume uint64 `json:"volume"`
}

type smsRequest struct {
	Payload string `json:"payload"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// apiError is the provider's error envelope; Message is best-effort.
type apiError struct {
	Message string `json:"message"`
}
