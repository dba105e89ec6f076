package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/infrastructure/persistence/mappers"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
	"github.com/simflux/simflux/internal/shared/db"
	"github.com/simflux/simflux/internal/shared/logger"
)

// QuotaRepositoryImpl implements the sim.QuotaRepository interface
type QuotaRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.QuotaMapper
	logger logger.Interface
}

// NewQuotaRepository creates a new quota repository instance
func NewQuotaRepository(gdb *gorm.DB, log logger.Interface) sim.QuotaRepository {
	return &QuotaRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewQuotaMapper(),
		logger: log,
	}
}

func (r *QuotaRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Find retrieves the quota snapshot for an (iccid, type) pair
func (r *QuotaRepositoryImpl) Find(ctx context.Context, iccid string, quotaType valueobjects.QuotaType) (*sim.Quota, error) {
	var model models.QuotaModel
	err := r.conn(ctx).Where("iccid = ? AND quota_type = ?", iccid, quotaType.String()).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sim.ErrQuotaNotFound
		}
		return nil, fmt.Errorf("failed to find quota: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// Save upserts a quota snapshot keyed on (iccid, quota_type)
func (r *QuotaRepositoryImpl) Save(ctx context.Context, q *sim.Quota) error {
	model, err := r.mapper.ToModel(q)
	if err != nil {
		return fmt.Errorf("failed to map quota entity: %w", err)
	}

	err = r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "iccid"}, {Name: "quota_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"total", "used", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		r.logger.Errorw("failed to save quota",
			"iccid", model.ICCID,
			"quota_type", model.QuotaType,
			"error", err,
		)
		return fmt.Errorf("failed to save quota: %w", err)
	}

	if q.ID() == 0 && model.ID != 0 {
		if err := q.SetID(model.ID); err != nil {
			r.logger.Warnw("failed to set quota ID", "iccid", model.ICCID, "error", err)
		}
	}
	return nil
}
