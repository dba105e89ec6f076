package sim

import (
	"context"
	"errors"
	"time"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/infrastructure/cache"
	"github.com/simflux/simflux/internal/shared/biztime"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
	"github.com/simflux/simflux/internal/shared/logger"
)

// defaultUsageWindow bounds GetUsage queries that omit a start time.
const defaultUsageWindow = 24 * time.Hour

// QueryService is the read facade over local SIM state. Single-entity reads
// go through the redis caches; list queries always hit the database. Reads
// never call the provider.
type QueryService struct {
	sims       sim.Repository
	usage      sim.UsageRepository
	quotas     sim.QuotaRepository
	simCache   cache.SimCache
	quotaCache cache.QuotaCache
	logger     logger.Interface
}

func NewQueryService(
	sims sim.Repository,
	usage sim.UsageRepository,
	quotas sim.QuotaRepository,
	simCache cache.SimCache,
	quotaCache cache.QuotaCache,
	log logger.Interface,
) *QueryService {
	return &QueryService{
		sims:       sims,
		usage:      usage,
		quotas:     quotas,
		simCache:   simCache,
		quotaCache: quotaCache,
		logger:     log,
	}
}

// GetSim returns one SIM by ICCID. Confirmed misses are negative-cached so
// repeated lookups of unknown ICCIDs do not hammer the database.
func (s *QueryService) GetSim(ctx context.Context, iccid string) (*SimDTO, error) {
	if iccid == "" {
		return nil, apperrors.NewValidationError("iccid is required")
	}

	cached, err := s.simCache.Get(ctx, iccid)
	if err != nil {
		// A cache outage degrades to direct DB reads.
		s.logger.Warnw("sim cache read failed", "iccid", iccid, "error", err)
	}
	if cached != nil {
		if cached.NotFound {
			return nil, apperrors.NewNotFoundError("sim not found")
		}
		dto := simDTOFromCache(cached)
		return &dto, nil
	}

	entity, err := s.sims.FindByICCID(ctx, iccid)
	if err != nil {
		if errors.Is(err, sim.ErrSimNotFound) {
			if err := s.simCache.SetNullMarker(ctx, iccid); err != nil {
				s.logger.Warnw("failed to set sim null marker", "iccid", iccid, "error", err)
			}
			return nil, apperrors.NewNotFoundError("sim not found")
		}
		return nil, apperrors.NewInternalError("failed to load sim", err)
	}

	if err := s.simCache.Set(ctx, cachedSimFromEntity(entity)); err != nil {
		s.logger.Warnw("failed to populate sim cache", "iccid", iccid, "error", err)
	}

	dto := simDTOFromEntity(entity)
	return &dto, nil
}

// ListSims returns a filtered page of SIMs straight from the database.
func (s *QueryService) ListSims(ctx context.Context, filter sim.ListFilter, page sim.Page) (*SimListResult, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.NewValidationError("invalid status filter: " + filter.Status.String())
	}

	entities, total, err := s.sims.List(ctx, filter, page)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list sims", err)
	}

	dtos := make([]SimDTO, 0, len(entities))
	for _, entity := range entities {
		dtos = append(dtos, simDTOFromEntity(entity))
	}
	return &SimListResult{
		Sims:   dtos,
		Total:  total,
		Offset: page.Offset,
		Limit:  page.Limit,
	}, nil
}

// GetUsage returns stored usage records for a SIM within [from, to). A zero
// to means now; a zero from means 24 hours before to.
func (s *QueryService) GetUsage(ctx context.Context, iccid string, from, to time.Time) ([]sim.UsageRecord, error) {
	if iccid == "" {
		return nil, apperrors.NewValidationError("iccid is required")
	}
	if to.IsZero() {
		to = biztime.NowUTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultUsageWindow)
	}
	if !from.Before(to) {
		return nil, apperrors.NewValidationError("usage window start must precede its end")
	}

	records, err := s.usage.FindByICCID(ctx, iccid, from, to)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load usage records", err)
	}
	return records, nil
}

// GetQuota returns the locally stored quota snapshot for a SIM, through the
// quota cache.
func (s *QueryService) GetQuota(ctx context.Context, iccid string, quotaType valueobjects.QuotaType) (*sim.QuotaSnapshot, error) {
	if iccid == "" {
		return nil, apperrors.NewValidationError("iccid is required")
	}
	if !quotaType.IsValid() {
		return nil, apperrors.NewValidationError("invalid quota type: " + quotaType.String())
	}

	cached, err := s.quotaCache.Get(ctx, iccid, quotaType.String())
	if err != nil {
		s.logger.Warnw("quota cache read failed", "iccid", iccid, "quota_type", quotaType, "error", err)
	}
	if cached != nil {
		if cached.NotFound {
			return nil, apperrors.NewNotFoundError("quota not found")
		}
		snap := quotaSnapshotFromCache(cached, quotaType)
		return &snap, nil
	}

	quota, err := s.quotas.Find(ctx, iccid, quotaType)
	if err != nil {
		if errors.Is(err, sim.ErrQuotaNotFound) {
			if err := s.quotaCache.SetNullMarker(ctx, iccid, quotaType.String()); err != nil {
				s.logger.Warnw("failed to set quota null marker", "iccid", iccid, "quota_type", quotaType, "error", err)
			}
			return nil, apperrors.NewNotFoundError("quota not found")
		}
		return nil, apperrors.NewInternalError("failed to load quota", err)
	}

	if err := s.quotaCache.Set(ctx, &cache.CachedQuota{
		ICCID:     quota.ICCID(),
		QuotaType: quota.Type().String(),
		Total:     quota.Total(),
		Used:      quota.Used(),
		UpdatedAt: quota.UpdatedAt(),
	}); err != nil {
		s.logger.Warnw("failed to populate quota cache", "iccid", iccid, "quota_type", quotaType, "error", err)
	}

	snap := quota.Snapshot()
	return &snap, nil
}
