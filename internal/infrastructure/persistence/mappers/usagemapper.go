package mappers

import (
	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
	"github.com/simflux/simflux/internal/shared/mapper"
)

// UsageMapper converts between usage records and their persistence models.
// Usage records are plain values, so mapping cannot fail.
type UsageMapper struct{}

func NewUsageMapper() *UsageMapper {
	return &UsageMapper{}
}

func (m *UsageMapper) ToRecord(model models.UsageRecordModel) sim.UsageRecord {
	return sim.UsageRecord{
		ICCID:     model.ICCID,
		Timestamp: model.Timestamp.UTC(),
		Direction: valueobjects.Direction(model.Direction),
		Bytes:     model.Bytes,
		SMSMO:     model.SMSMO,
		SMSMT:     model.SMSMT,
	}
}

func (m *UsageMapper) ToModel(record sim.UsageRecord) models.UsageRecordModel {
	return models.UsageRecordModel{
		ICCID:     record.ICCID,
		Timestamp: record.Timestamp.UTC(),
		Direction: record.Direction.String(),
		Bytes:     record.Bytes,
		SMSMO:     record.SMSMO,
		SMSMT:     record.SMSMT,
	}
}

func (m *UsageMapper) ToRecords(modelList []models.UsageRecordModel) []sim.UsageRecord {
	return mapper.MapSlice(modelList, m.ToRecord)
}

func (m *UsageMapper) ToModels(records []sim.UsageRecord) []models.UsageRecordModel {
	return mapper.MapSlice(records, m.ToModel)
}
