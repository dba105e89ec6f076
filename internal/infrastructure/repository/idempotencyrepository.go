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

// IdempotencyRepositoryImpl implements the sim.IdempotencyRepository interface
type IdempotencyRepositoryImpl struct {
	db     *gorm.DB
	mapper *mappers.IdempotencyMapper
	logger logger.Interface
}

// NewIdempotencyRepository creates a new idempotency repository instance
func NewIdempotencyRepository(gdb *gorm.DB, log logger.Interface) sim.IdempotencyRepository {
	return &IdempotencyRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewIdempotencyMapper(),
		logger: log,
	}
}

func (r *IdempotencyRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Find retrieves a recorded outcome for a command key
func (r *IdempotencyRepositoryImpl) Find(ctx context.Context, commandType sim.CommandType, iccid, key string) (*sim.IdempotencyRecord, error) {
	var model models.IdempotencyRecordModel
	err := r.conn(ctx).
		Where("command_type = ? AND iccid = ? AND idempotency_key = ?", string(commandType), iccid, key).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sim.ErrIdempotencyNotFound
		}
		return nil, fmt.Errorf("failed to find idempotency record: %w", err)
	}
	return r.mapper.ToEntity(&model), nil
}

// Save records a command outcome. A concurrent duplicate submission that
// lost the race keeps the first writer's outcome.
func (r *IdempotencyRepositoryImpl) Save(ctx context.Context, rec *sim.IdempotencyRecord) error {
	model := r.mapper.ToModel(rec)

	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "command_type"}, {Name: "iccid"}, {Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(model).Error
	if err != nil {
		r.logger.Errorw("failed to save idempotency record",
			"command_type", model.CommandType,
			"iccid", model.ICCID,
			"error", err,
		)
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	rec.ID = model.ID
	return nil
}

// Delete removes one record so a fresh outcome can take its place.
func (r *IdempotencyRepositoryImpl) Delete(ctx context.Context, commandType sim.CommandType, iccid, key string) error {
	err := r.conn(ctx).
		Where("command_type = ? AND iccid = ? AND idempotency_key = ?", string(commandType), iccid, key).
		Delete(&models.IdempotencyRecordModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete idempotency record: %w", err)
	}
	return nil
}

// DeleteExpired removes records whose replay window has passed
func (r *IdempotencyRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.conn(ctx).
		Where("expires_at < ?", now.UTC()).
		Delete(&models.IdempotencyRecordModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
