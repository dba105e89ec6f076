package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/infrastructure/persistence/mappers"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
	"github.com/simflux/simflux/internal/shared/db"
	"github.com/simflux/simflux/internal/shared/logger"
)

// UsageRepositoryImpl implements the sim.UsageRepository interface
type UsageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mappers.UsageMapper
	logger logger.Interface
}

// NewUsageRepository creates a new usage repository instance
func NewUsageRepository(gdb *gorm.DB, log logger.Interface) sim.UsageRepository {
	return &UsageRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewUsageMapper(),
		logger: log,
	}
}

func (r *UsageRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Append inserts net-new usage records. Records whose (iccid, timestamp,
// direction) key already exists are skipped via the unique index, so
// re-fetching an overlapping window never double-counts.
func (r *UsageRepositoryImpl) Append(ctx context.Context, records []sim.UsageRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return 0, 0, fmt.Errorf("invalid usage record: %w", err)
		}
	}

	modelList := r.mapper.ToModels(records)
	result := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "iccid"}, {Name: "timestamp"}, {Name: "direction"}},
		DoNothing: true,
	}).Create(&modelList)
	if result.Error != nil {
		return 0, 0, fmt.Errorf("failed to append usage records: %w", result.Error)
	}

	inserted := int(result.RowsAffected)
	skipped := len(records) - inserted
	if skipped > 0 {
		r.logger.Debugw("skipped duplicate usage records",
			"inserted", inserted,
			"skipped", skipped,
		)
	}
	return inserted, skipped, nil
}

// FindByICCID returns the stored usage series for an ICCID over [from, to).
func (r *UsageRepositoryImpl) FindByICCID(ctx context.Context, iccid string, from, to time.Time) ([]sim.UsageRecord, error) {
	var modelList []models.UsageRecordModel
	query := r.conn(ctx).Where("iccid = ?", iccid)
	if !from.IsZero() {
		query = query.Where("timestamp >= ?", from.UTC())
	}
	if !to.IsZero() {
		query = query.Where("timestamp < ?", to.UTC())
	}

	if err := query.Order("timestamp ASC").Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to find usage records: %w", err)
	}
	return r.mapper.ToRecords(modelList), nil
}

// LatestTimestamp returns the newest stored usage timestamp for the ICCID,
// or the zero time when no records exist. The usage sync job uses it to
// bound its fetch window.
func (r *UsageRepositoryImpl) LatestTimestamp(ctx context.Context, iccid string) (time.Time, error) {
	var model models.UsageRecordModel
	err := r.conn(ctx).Where("iccid = ?", iccid).
		Order("timestamp DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to find latest usage timestamp: %w", err)
	}
	return model.Timestamp.UTC(), nil
}
