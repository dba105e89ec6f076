package mappers

import (
	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
)

// IdempotencyMapper converts between idempotency records and their
// persistence models.
type IdempotencyMapper struct{}

func NewIdempotencyMapper() *IdempotencyMapper {
	return &IdempotencyMapper{}
}

func (m *IdempotencyMapper) ToEntity(model *models.IdempotencyRecordModel) *sim.IdempotencyRecord {
	if model == nil {
		return nil
	}
	return &sim.IdempotencyRecord{
		ID:          model.ID,
		CommandType: sim.CommandType(model.CommandType),
		ICCID:       model.ICCID,
		Key:         model.IdempotencyKey,
		Status:      sim.OutcomeStatus(model.Status),
		Message:     model.Message,
		QuotaType:   model.QuotaType,
		QuotaTotal:  model.QuotaTotal,
		QuotaUsed:   model.QuotaUsed,
		CreatedAt:   model.CreatedAt,
		ExpiresAt:   model.ExpiresAt,
	}
}

func (m *IdempotencyMapper) ToModel(entity *sim.IdempotencyRecord) *models.IdempotencyRecordModel {
	if entity == nil {
		return nil
	}
	return &models.IdempotencyRecordModel{
		ID:             entity.ID,
		CommandType:    string(entity.CommandType),
		ICCID:          entity.ICCID,
		IdempotencyKey: entity.Key,
		Status:         string(entity.Status),
		Message:        entity.Message,
		QuotaType:      entity.QuotaType,
		QuotaTotal:     entity.QuotaTotal,
		QuotaUsed:      entity.QuotaUsed,
		CreatedAt:      entity.CreatedAt,
		ExpiresAt:      entity.ExpiresAt,
	}
}
