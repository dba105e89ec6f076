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
	"github.com/simflux/simflux/internal/shared/db"
	"github.com/simflux/simflux/internal/shared/logger"
)

// SyncCursorRepositoryImpl implements the sim.SyncCursorRepository interface
type SyncCursorRepositoryImpl struct {
	db     *gorm.DB
	mapper *mappers.SyncCursorMapper
	logger logger.Interface
}

// NewSyncCursorRepository creates a new sync cursor repository instance
func NewSyncCursorRepository(gdb *gorm.DB, log logger.Interface) sim.SyncCursorRepository {
	return &SyncCursorRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewSyncCursorMapper(),
		logger: log,
	}
}

func (r *SyncCursorRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Find retrieves the scheduling state for a job
func (r *SyncCursorRepositoryImpl) Find(ctx context.Context, jobName string) (*sim.SyncCursor, error) {
	var model models.SyncCursorModel
	err := r.conn(ctx).Where("job_name = ?", jobName).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sim.ErrCursorNotFound
		}
		return nil, fmt.Errorf("failed to find sync cursor: %w", err)
	}
	return r.mapper.ToEntity(&model), nil
}

// Save upserts the scheduling state keyed on job name
func (r *SyncCursorRepositoryImpl) Save(ctx context.Context, c *sim.SyncCursor) error {
	model := r.mapper.ToModel(c)

	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_run_at", "last_success_at", "last_error",
			"page_cursor", "consecutive_failures", "next_run_at", "updated_at",
		}),
	}).Create(model).Error
	if err != nil {
		r.logger.Errorw("failed to save sync cursor", "job", c.JobName, "error", err)
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	return nil
}
