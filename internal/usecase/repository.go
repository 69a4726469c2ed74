package usecase

import (
	"context"

	"github.com/DRSN-tech/style-recommender/internal/domain"
)

// PointRepository — клиент векторного хранилища для одной коллекции.
type PointRepository interface {
	Collection() string
	Count(ctx context.Context) (uint64, error)
	// Scroll возвращает страницу точек начиная с offset ("" — с начала) и курсор следующей страницы.
	Scroll(ctx context.Context, offset string, limit uint32) (*ScrollPage, error)
	// UploadPoints загружает точки батчами и ждёт подтверждения всех батчей.
	UploadPoints(ctx context.Context, points []domain.Embedding, opts UploadOptions) error
	Search(ctx context.Context, vector []float32, limit uint64) ([]domain.ScoredImage, error)
	Recommend(ctx context.Context, query *RecommendQuery) ([]domain.ScoredImage, error)
}

type LedgerRepository interface {
	RecordChunk(ctx context.Context, req *RecordChunkReq) error
	// FindIngested возвращает id уже сохранённых изображений по путям.
	FindIngested(ctx context.Context, paths []string) (map[string]string, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) error
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	MarkAsPending(ctx context.Context, id int64) error
}

// TxManager выполняет fn в одной транзакции БД.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CollectionLocker выдаёт блокировку на коллекцию на время цикла загрузки и обновления каталога.
type CollectionLocker interface {
	Lock(ctx context.Context, collection string) (unlock func(), err error)
}
