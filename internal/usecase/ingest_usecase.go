package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/domain"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/DRSN-tech/style-recommender/pkg/metrics"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// IngestSettings — параметры конвейера загрузки.
type IngestSettings struct {
	EmbedBatch int
	VectorSize uint64
	Dataset    string
	Upload     UploadOptions
}

// IngestUseCase встраивает изображения чанками, загружает точки в хранилище и обновляет каталог.
type IngestUseCase struct {
	embedder  MlServiceInfra
	points    PointRepository
	catalog   *CatalogUseCase
	locker    CollectionLocker
	ledger    LedgerRepository
	outbox    OutboxRepository
	txManager TxManager
	settings  IngestSettings
	logger    logger.Logger
}

// NewIngestUC создаёт конвейер. ledger, outbox и txManager могут быть nil, тогда журнал загрузок не ведётся.
func NewIngestUC(
	embedder MlServiceInfra,
	points PointRepository,
	catalog *CatalogUseCase,
	locker CollectionLocker,
	ledger LedgerRepository,
	outbox OutboxRepository,
	txManager TxManager,
	settings IngestSettings,
	logger logger.Logger,
) *IngestUseCase {
	if settings.EmbedBatch <= 0 {
		settings.EmbedBatch = 64
	}

	return &IngestUseCase{
		embedder:  embedder,
		points:    points,
		catalog:   catalog,
		locker:    locker,
		ledger:    ledger,
		outbox:    outbox,
		txManager: txManager,
		settings:  settings,
		logger:    logger,
	}
}

// InsertImages загружает изображения чанками по EmbedBatch путей. Первый упавший чанк прерывает загрузку,
// уже подтверждённые чанки не откатываются. Каталог обновляется в любом случае, кроме пустого запроса.
func (u *IngestUseCase) InsertImages(ctx context.Context, req *InsertImagesReq) (*InsertImagesRes, error) {
	const op = "IngestUseCase.InsertImages"

	// Пустой запрос ничего не меняет, каталог не перечитывается
	if len(req.Paths) == 0 {
		return &InsertImagesRes{Stored: []domain.ImageRecord{}, Snapshot: u.catalog.Snapshot()}, nil
	}

	unlock, err := u.locker.Lock(ctx, u.points.Collection())
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer unlock()

	chunks := chunkPaths(req.Paths, u.settings.EmbedBatch)
	res := &InsertImagesRes{Stored: make([]domain.ImageRecord, 0, len(req.Paths))}

	var ingestErr error
	for i, chunk := range chunks {
		records, err := u.ingestChunk(ctx, i, chunk)
		if req.OnChunk != nil {
			req.OnChunk(ChunkReport{Index: i, Total: len(chunks), Paths: len(chunk), Stored: len(records), Err: err})
		}
		if err != nil {
			ingestErr = err
			break
		}
		res.Stored = append(res.Stored, records...)
	}

	res.Snapshot = u.catalog.refresh(ctx)

	if ingestErr != nil {
		u.logger.Errorf(ingestErr, "ingestion into %s stopped after %d of %d paths", u.points.Collection(), len(res.Stored), len(req.Paths))
		return res, e.Wrap(op, ingestErr)
	}

	u.logger.Infof("ingested %d images into %s, catalog has %d points", len(res.Stored), u.points.Collection(), res.Snapshot.Count)
	return res, nil
}

// PendingPaths возвращает пути без дублей, которых ещё нет в журнале загрузок.
func (u *IngestUseCase) PendingPaths(ctx context.Context, paths []string) ([]string, error) {
	const op = "IngestUseCase.PendingPaths"

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}

	if u.ledger == nil || len(unique) == 0 {
		return unique, nil
	}

	ingested, err := u.ledger.FindIngested(ctx, unique)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	pending := make([]string, 0, len(unique))
	for _, p := range unique {
		if _, ok := ingested[p]; !ok {
			pending = append(pending, p)
		}
	}

	return pending, nil
}

func (u *IngestUseCase) ingestChunk(ctx context.Context, index int, paths []string) ([]domain.ImageRecord, error) {
	collection := u.points.Collection()

	fail := func(stage string, err error) error {
		metrics.IngestChunkFailuresTotal.WithLabelValues(collection, stage).Inc()
		return &ChunkError{Index: index, Stage: stage, Paths: paths, Err: err}
	}

	started := time.Now()
	vectors, err := u.embedder.Embed(ctx, paths)
	metrics.EmbedDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, fail(StageEmbed, err)
	}
	if len(vectors) != len(paths) {
		return nil, fail(StageEmbed, e.ErrImageVectorMismatch)
	}

	embeddings := make([]domain.Embedding, 0, len(paths))
	records := make([]domain.ImageRecord, 0, len(paths))
	for i, path := range paths {
		if len(vectors[i]) == 0 {
			return nil, fail(StageEmbed, e.ErrVectorEmbeddingEmpty)
		}
		if u.settings.VectorSize > 0 && uint64(len(vectors[i])) != u.settings.VectorSize {
			return nil, fail(StageEmbed, e.ErrVectorDimensionMismatch)
		}

		id := uuid.NewString()
		embeddings = append(embeddings, *domain.NewEmbedding(id, vectors[i], domain.NewPayload(path)))
		records = append(records, domain.NewImageRecord(id, path))
	}

	if err := u.points.UploadPoints(ctx, embeddings, u.settings.Upload); err != nil {
		return nil, fail(StageUpload, err)
	}
	metrics.IngestedPointsTotal.WithLabelValues(collection).Add(float64(len(records)))

	u.recordChunk(ctx, records)

	return records, nil
}

// recordChunk пишет чанк в журнал и outbox в одной транзакции. Ошибка не прерывает загрузку:
// точки уже в хранилище.
func (u *IngestUseCase) recordChunk(ctx context.Context, records []domain.ImageRecord) {
	const op = "IngestUseCase.recordChunk"

	if u.ledger == nil || u.txManager == nil {
		return
	}

	event, err := u.newIngestedEvent(records)
	if err != nil {
		u.logger.Warnf("failed to build %s event: %v", OutboxEventImagesIngested, e.Wrap(op, err))
		return
	}

	err = u.txManager.WithinTx(ctx, func(ctx context.Context) error {
		if err := u.ledger.RecordChunk(ctx, &RecordChunkReq{
			Collection: u.points.Collection(),
			Dataset:    u.settings.Dataset,
			Records:    records,
		}); err != nil {
			return err
		}

		if u.outbox == nil {
			return nil
		}
		return u.outbox.Create(ctx, event)
	})
	if err != nil {
		u.logger.Warnf("failed to record %d ingested images in ledger: %v", len(records), e.Wrap(op, err))
	}
}

func (u *IngestUseCase) newIngestedEvent(records []domain.ImageRecord) (*OutboxEvent, error) {
	eventID := uuid.NewString()

	payload, err := json.Marshal(ImagesIngestedEvent{
		EventID:    eventID,
		Collection: u.points.Collection(),
		Dataset:    u.settings.Dataset,
		Images:     records,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		EventID:   eventID,
		EventType: OutboxEventImagesIngested,
		Key:       u.points.Collection(),
		Payload:   payload,
		Status:    OutboxStatusPending,
	}, nil
}

// chunkPaths режет пути на последовательные чанки не больше size.
func chunkPaths(paths []string, size int) [][]string {
	chunks := make([][]string, 0, (len(paths)+size-1)/size)
	for start := 0; start < len(paths); start += size {
		end := min(start+size, len(paths))
		chunks = append(chunks, paths[start:end])
	}
	return chunks
}
