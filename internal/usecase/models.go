package usecase

import (
	"fmt"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/domain"
)

// INGESTION

// InsertImagesReq — запрос на загрузку изображений в каталог.
type InsertImagesReq struct {
	Paths   []string
	OnChunk func(ChunkReport) // вызывается после каждого чанка, может быть nil
}

// InsertImagesRes — записи подтверждённых чанков и снимок каталога после загрузки.
// При ошибке содержит то, что успело сохраниться до упавшего чанка.
type InsertImagesRes struct {
	Stored   []domain.ImageRecord
	Snapshot domain.CatalogSnapshot
}

// ChunkReport — прогресс загрузки по чанкам.
type ChunkReport struct {
	Index  int
	Total  int
	Paths  int
	Stored int
	Err    error
}

// Стадии, на которых может упасть чанк
const (
	StageEmbed  = "embed"
	StageUpload = "upload"
)

// ChunkError описывает чанк, на котором загрузка прервалась. Предыдущие чанки не откатываются.
type ChunkError struct {
	Index int
	Stage string
	Paths []string
	Err   error
}

func (c *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (%d paths) failed at %s: %v", c.Index, len(c.Paths), c.Stage, c.Err)
}

func (c *ChunkError) Unwrap() error {
	return c.Err
}

// UploadOptions — параметры батчевой загрузки точек.
type UploadOptions struct {
	BatchSize  int
	Parallel   int
	MaxRetries int
}

// RecordChunkReq — записи одного подтверждённого чанка для журнала загрузок.
type RecordChunkReq struct {
	Collection string
	Dataset    string
	Records    []domain.ImageRecord
}

// CATALOG

// CountResult — результат пересчёта точек. При ошибке чтения Status=degraded, Count=0, Cause — причина.
type CountResult struct {
	Count  uint64
	Status domain.SnapshotStatus
	Cause  error
}

// PointsResult — результат обхода коллекции.
type PointsResult struct {
	Points []domain.ImageRecord
	Status domain.SnapshotStatus
	Cause  error
}

// ScrolledPoint — точка из scroll без вектора.
type ScrolledPoint struct {
	ID      string
	Payload domain.Payload
}

// ScrollPage — страница scroll. NextOffset пустой, если страниц больше нет.
type ScrollPage struct {
	Points     []ScrolledPoint
	NextOffset string
}

// RECOMMENDATION

// RecommendReq — запрос рекомендаций по лайкам и дизлайкам.
type RecommendReq struct {
	Liked    []string
	Disliked []string
	Limit    int
}

// RecommendQuery — запрос к нативному recommend хранилища.
type RecommendQuery struct {
	Positive []string
	Negative []string
	Limit    uint64
}

// SearchReq — поиск похожих на одно изображение.
type SearchReq struct {
	Path  string
	Limit int
}

// OUTBOX

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
)

type OutboxEventType string

const (
	OutboxEventImagesIngested OutboxEventType = "images.ingested"
)

// OutboxEvent — событие, ожидающее отправки в Kafka.
type OutboxEvent struct {
	ID        int64
	EventID   string
	EventType OutboxEventType
	Key       string
	Payload   []byte
	Status    OutboxStatus
	CreatedAt time.Time
}

// ImagesIngestedEvent — тело события об успешно сохранённом чанке.
type ImagesIngestedEvent struct {
	EventID    string               `json:"event_id"`
	Collection string               `json:"collection"`
	Dataset    string               `json:"dataset,omitempty"`
	Images     []domain.ImageRecord `json:"images"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// WriteRawMessageReq — готовое сообщение для продюсера.
type WriteRawMessageReq struct {
	Key     string
	Payload []byte
}

// MAPPERS

func NewInsertImagesReq(paths []string) *InsertImagesReq {
	return &InsertImagesReq{Paths: paths}
}

func NewRecommendReq(liked []string, disliked []string, limit int) *RecommendReq {
	return &RecommendReq{
		Liked:    liked,
		Disliked: disliked,
		Limit:    limit,
	}
}

func NewSearchReq(path string, limit int) *SearchReq {
	return &SearchReq{
		Path:  path,
		Limit: limit,
	}
}

func NewWriteRawMessageReq(key string, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		Key:     key,
		Payload: payload,
	}
}
