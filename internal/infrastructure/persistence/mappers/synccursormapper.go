package mappers

import (
	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
)

// SyncCursorMapper converts between sync cursors and their persistence
// models.
type SyncCursorMapper struct{}

func NewSyncCursorMapper() *SyncCursorMapper {
	return &SyncCursorMapper{}
}

func (m *SyncCursorMapper) ToEntity(model *models.SyncCursorModel) *sim.SyncCursor {
	if model == nil {
		return nil
	}
	return &sim.SyncCursor{
		JobName:             model.JobName,
		LastRunAt:           model.LastRunAt,
		LastSuccessAt:       model.LastSuccessAt,
		LastError:           model.LastError,
		PageCursor:          model.PageCursor,
		ConsecutiveFailures: model.ConsecutiveFailures,
		NextRunAt:           model.NextRunAt,
	}
}

func (m *SyncCursorMapper) ToModel(entity *sim.SyncCursor) *models.SyncCursorModel {
	if entity == nil {
		return nil
	}
	return &models.SyncCursorModel{
		JobName:             entity.JobName,
		LastRunAt:           entity.LastRunAt,
		LastSuccessAt:       entity.LastSuccessAt,
		LastError:           entity.LastError,
		PageCursor:          entity.PageCursor,
		ConsecutiveFailures: entity.ConsecutiveFailures,
		NextRunAt:           entity.NextRunAt,
	}
}
