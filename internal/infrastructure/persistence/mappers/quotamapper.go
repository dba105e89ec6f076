package mappers

import (
	"fmt"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
)

// QuotaMapper handles the conversion between domain entities and persistence models
type QuotaMapper interface {
	ToEntity(model *models.QuotaModel) (*sim.Quota, error)
	ToModel(entity *sim.Quota) (*models.QuotaModel, error)
}

type QuotaMapperImpl struct{}

func NewQuotaMapper() QuotaMapper {
	return &QuotaMapperImpl{}
}

func (m *QuotaMapperImpl) ToEntity(model *models.QuotaModel) (*sim.Quota, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := sim.ReconstructQuota(
		model.ID,
		model.ICCID,
		valueobjects.QuotaType(model.QuotaType),
		model.Total,
		model.Used,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct quota entity: %w", err)
	}

	return entity, nil
}

func (m *QuotaMapperImpl) ToModel(entity *sim.Quota) (*models.QuotaModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.QuotaModel{
		ID:        entity.ID(),
		ICCID:     entity.ICCID(),
		QuotaType: entity.Type().String(),
		Total:     entity.Total(),
		Used:      entity.Used(),
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}, nil
}
