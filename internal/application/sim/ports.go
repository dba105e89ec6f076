// Package sim contains the application services of the sync engine: the
// reconciler (single write path into local state), the scheduled sync jobs,
// the command executor, and the read facade.
package sim

import (
	"context"
	"time"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
)

// ProviderAPI is the outbound port to the SIM management API. The
// infrastructure client implements it; tests substitute fakes.
type ProviderAPI interface {
	ListSims(ctx context.Context, pageToken string) ([]sim.RemoteSim, string, error)
	GetUsage(ctx context.Context, iccid string, from, to time.Time, pageToken string) ([]sim.UsageRecord, string, error)
	GetQuota(ctx context.Context, iccid string, quotaType valueobjects.QuotaType) (total, used uint64, err error)
	TopUpQuota(ctx context.Context, iccid string, quotaType valueobjects.QuotaType, volume uint64) error
	SendSMS(ctx context.Context, iccid, payload string) error
	ResetConnectivity(ctx context.Context, iccid string) error
	SetStatus(ctx context.Context, iccid string, status valueobjects.SimStatus) error
	PageSize() int
}
