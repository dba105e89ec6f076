package mappers

import (
	"fmt"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
	"github.com/simflux/simflux/internal/shared/mapper"
)

// SimMapper handles the conversion between domain entities and persistence models
type SimMapper interface {
	ToEntity(model *models.SimModel) (*sim.Sim, error)
	ToModel(entity *sim.Sim) (*models.SimModel, error)
	ToEntities(models []*models.SimModel) ([]*sim.Sim, error)
}

type SimMapperImpl struct{}

func NewSimMapper() SimMapper {
	return &SimMapperImpl{}
}

func (m *SimMapperImpl) ToEntity(model *models.SimModel) (*sim.Sim, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := sim.ReconstructSim(
		model.ID,
		model.ICCID,
		model.IMSI,
		model.MSISDN,
		valueobjects.SimStatus(model.Status),
		model.IPAddress,
		model.Operator,
		model.ActivatedAt,
		model.Label,
		model.MissedSyncs,
		model.LastSyncedAt,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct sim entity: %w", err)
	}

	return entity, nil
}

func (m *SimMapperImpl) ToModel(entity *sim.Sim) (*models.SimModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.SimModel{
		ID:           entity.ID(),
		ICCID:        entity.ICCID(),
		IMSI:         entity.IMSI(),
		MSISDN:       entity.MSISDN(),
		Status:       entity.Status().String(),
		IPAddress:    entity.IPAddress(),
		Operator:     entity.Operator(),
		ActivatedAt:  entity.ActivatedAt(),
		Label:        entity.Label(),
		MissedSyncs:  entity.MissedSyncs(),
		LastSyncedAt: entity.LastSyncedAt(),
		CreatedAt:    entity.CreatedAt(),
		UpdatedAt:    entity.UpdatedAt(),
	}, nil
}

func (m *SimMapperImpl) ToEntities(modelList []*models.SimModel) ([]*sim.Sim, error) {
	return mapper.MapSlicePtrWithID(modelList, m.ToEntity, func(model *models.SimModel) uint { return model.ID })
}
