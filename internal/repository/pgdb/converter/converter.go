package converter

import (
	"github.com/DRSN-tech/style-recommender/internal/usecase"
)

// IngestedImageConverter преобразует чанк журнала загрузок в строки ingested_images.
type IngestedImageConverter struct{}

func (IngestedImageConverter) ToArrModel(req *usecase.RecordChunkReq) []*IngestedImageModel {
	models := make([]*IngestedImageModel, 0, len(req.Records))
	for _, rec := range req.Records {
		models = append(models, &IngestedImageModel{
			ID:         rec.ID,
			Collection: req.Collection,
			ImagePath:  rec.ImagePath,
			Dataset:    req.Dataset,
		})
	}
	return models
}

// OutboxEventConverter преобразует OutboxEvent между usecase и моделью PostgreSQL.
type OutboxEventConverter struct{}

func (OutboxEventConverter) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	return &OutboxEventModel{
		ID:        entity.ID,
		EventID:   entity.EventID,
		EventType: string(entity.EventType),
		EventKey:  entity.Key,
		Payload:   entity.Payload,
		Status:    string(entity.Status),
		CreatedAt: entity.CreatedAt,
	}
}

func (OutboxEventConverter) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	return &usecase.OutboxEvent{
		ID:        model.ID,
		EventID:   model.EventID,
		EventType: usecase.OutboxEventType(model.EventType),
		Key:       model.EventKey,
		Payload:   model.Payload,
		Status:    usecase.OutboxStatus(model.Status),
		CreatedAt: model.CreatedAt,
	}
}

func (c OutboxEventConverter) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	res := make([]*usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		res = append(res, c.ToEntity(m))
	}
	return res
}
