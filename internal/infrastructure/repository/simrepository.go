// Package repository contains the gorm-backed implementations of the
// domain persistence ports.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/infrastructure/persistence/mappers"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
	"github.com/simflux/simflux/internal/shared/biztime"
	"github.com/simflux/simflux/internal/shared/db"
	"github.com/simflux/simflux/internal/shared/logger"
)

// SimRepositoryImpl implements the sim.Repository interface
type SimRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.SimMapper
	logger logger.Interface
}

// NewSimRepository creates a new SIM repository instance
func NewSimRepository(gdb *gorm.DB, log logger.Interface) sim.Repository {
	return &SimRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewSimMapper(),
		logger: log,
	}
}

func (r *SimRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// FindByICCID retrieves a SIM by its ICCID
func (r *SimRepositoryImpl) FindByICCID(ctx context.Context, iccid string) (*sim.Sim, error) {
	var model models.SimModel
	err := r.conn(ctx).Where("iccid = ?", iccid).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sim.ErrSimNotFound
		}
		return nil, fmt.Errorf("failed to find sim by iccid: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// List retrieves SIMs matching the filter with offset pagination
func (r *SimRepositoryImpl) List(ctx context.Context, filter sim.ListFilter, page sim.Page) ([]*sim.Sim, int64, error) {
	query := r.conn(ctx).Model(&models.SimModel{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.Operator != "" {
		query = query.Where("operator = ?", filter.Operator)
	}
	if filter.Search != "" {
		query = query.Where("iccid LIKE ? OR label LIKE ?", filter.Search+"%", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sims: %w", err)
	}

	limit := page.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var modelList []*models.SimModel
	err := query.Order("iccid ASC").Offset(page.Offset).Limit(limit).Find(&modelList).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sims: %w", err)
	}

	entities, err := r.mapper.ToEntities(modelList)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to map sims: %w", err)
	}
	return entities, total, nil
}

// ListICCIDs returns every known ICCID, used by the usage and quota sync
// jobs to fan out per-SIM fetches.
func (r *SimRepositoryImpl) ListICCIDs(ctx context.Context) ([]string, error) {
	var iccids []string
	err := r.conn(ctx).Model(&models.SimModel{}).
		Order("iccid ASC").
		Pluck("iccid", &iccids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list iccids: %w", err)
	}
	return iccids, nil
}

// Save upserts a SIM keyed on ICCID. Two syncs racing on the same new ICCID
// converge on one row instead of failing on the unique index.
func (r *SimRepositoryImpl) Save(ctx context.Context, s *sim.Sim) error {
	model, err := r.mapper.ToModel(s)
	if err != nil {
		return fmt.Errorf("failed to map sim entity: %w", err)
	}

	err = r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "iccid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"imsi", "msisdn", "status", "ip_address", "operator",
			"activated_at", "label", "missed_syncs", "last_synced_at", "updated_at",
		}),
	}).Create(model).Error
	if err != nil {
		r.logger.Errorw("failed to save sim", "iccid", model.ICCID, "error", err)
		return fmt.Errorf("failed to save sim: %w", err)
	}

	if s.ID() == 0 && model.ID != 0 {
		if err := s.SetID(model.ID); err != nil {
			r.logger.Warnw("failed to set sim ID", "iccid", model.ICCID, "error", err)
		}
	}
	return nil
}

// MarkMissedExcept increments missed_syncs on every SIM not seen by the
// current inventory listing.
func (r *SimRepositoryImpl) MarkMissedExcept(ctx context.Context, seenICCIDs []string) (int64, error) {
	query := r.conn(ctx).Model(&models.SimModel{})
	if len(seenICCIDs) > 0 {
		query = query.Where("iccid NOT IN ?", seenICCIDs)
	}

	result := query.UpdateColumns(map[string]any{
		"missed_syncs": gorm.Expr("missed_syncs + 1"),
		"updated_at":   biztime.NowUTC(),
	})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark missed sims: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeactivateMissed soft-deactivates active SIMs that have been absent from
// at least threshold consecutive inventory listings.
func (r *SimRepositoryImpl) DeactivateMissed(ctx context.Context, threshold int) (int64, error) {
	result := r.conn(ctx).Model(&models.SimModel{}).
		Where("status = ? AND missed_syncs >= ?", "active", threshold).
		UpdateColumns(map[string]any{
			"status":     "inactive",
			"updated_at": biztime.NowUTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate missed sims: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		r.logger.Infow("deactivated sims missing from inventory",
			"count", result.RowsAffected,
			"threshold", threshold,
		)
	}
	return result.RowsAffected, nil
}
