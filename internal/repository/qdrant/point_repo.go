package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/cfg"
	"github.com/DRSN-tech/style-recommender/internal/domain"
	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/jitter"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/DRSN-tech/style-recommender/pkg/metrics"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/errgroup"
)

var (
	retryBaseDelay = 200 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
)

// PointsAPI — часть *qdrant.Client, которая нужна репозиторию.
type PointsAPI interface {
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	GetPointsClient() qdrant.PointsClient
}

// PointRepo репозиторий точек одной коллекции Qdrant.
type PointRepo struct {
	client PointsAPI
	cfg    *cfg.QdrantCfg
	logger logger.Logger
}

func NewPointRepo(client PointsAPI, cfg *cfg.QdrantCfg, logger logger.Logger) *PointRepo {
	return &PointRepo{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

func (q *PointRepo) Collection() string {
	return q.cfg.QdrantCollectionName
}

// Count возвращает точное число точек в коллекции.
func (q *PointRepo) Count(ctx context.Context) (uint64, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return n, nil
}

// Scroll читает одну страницу точек без векторов.
func (q *PointRepo) Scroll(ctx context.Context, offset string, limit uint32) (*usecase.ScrollPage, error) {
	req := &qdrant.ScrollPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if offset != "" {
		req.Offset = toPointID(offset)
	}

	res, err := q.client.GetPointsClient().Scroll(ctx, req)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	page := &usecase.ScrollPage{
		Points: make([]usecase.ScrolledPoint, 0, len(res.GetResult())),
	}
	for _, p := range res.GetResult() {
		page.Points = append(page.Points, usecase.ScrolledPoint{
			ID:      pointID(p.GetId()),
			Payload: toPayload(p.GetPayload()),
		})
	}
	if next := res.GetNextPageOffset(); next != nil {
		page.NextOffset = pointID(next)
	}

	return page, nil
}

// UploadPoints загружает точки батчами по opts.BatchSize, не больше opts.Parallel батчей одновременно.
// Каждый батч пишется с wait=true и повторяется до opts.MaxRetries раз.
func (q *PointRepo) UploadPoints(ctx context.Context, points []domain.Embedding, opts usecase.UploadOptions) error {
	if len(points) == 0 {
		return nil
	}

	batchSize := max(opts.BatchSize, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Parallel, 1))

	for start := 0; start < len(points); start += batchSize {
		batch := toPointStructs(points[start:min(start+batchSize, len(points))])
		g.Go(func() error {
			return q.upsertWithRetry(gctx, batch, max(opts.MaxRetries, 1))
		})
	}

	if err := g.Wait(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Search — поиск ближайших соседей по одному вектору, по убыванию score.
func (q *PointRepo) Search(ctx context.Context, vector []float32, limit uint64) ([]domain.ScoredImage, error) {
	res, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return toScoredImages(res), nil
}

// Recommend делегирует подбор нативному recommend Qdrant. Без лайков используется стратегия best_score,
// которая работает только с отрицательными примерами.
func (q *PointRepo) Recommend(ctx context.Context, query *usecase.RecommendQuery) ([]domain.ScoredImage, error) {
	strategy := qdrant.RecommendStrategy_AverageVector
	if len(query.Positive) == 0 {
		strategy = qdrant.RecommendStrategy_BestScore
	}

	res, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Query: qdrant.NewQueryRecommend(&qdrant.RecommendInput{
			Positive: toVectorInputs(query.Positive),
			Negative: toVectorInputs(query.Negative),
			Strategy: strategy.Enum(),
		}),
		Limit:       qdrant.PtrOf(query.Limit),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return toScoredImages(res), nil
}

func (q *PointRepo) upsertWithRetry(ctx context.Context, batch []*qdrant.PointStruct, attempts int) error {
	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			metrics.UploadRetriesTotal.WithLabelValues(q.cfg.QdrantCollectionName).Inc()
			q.logger.Warnf("retrying upload of %d points (attempt %d/%d): %v", len(batch), attempt+1, attempts, lastErr)

			if err := jitter.Sleep(ctx, jitter.ExponentialBackoff(retryBaseDelay, retryMaxDelay, attempt-1, jitter.DefaultJitter)); err != nil {
				return errors.Join(lastErr, err)
			}
		}

		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.cfg.QdrantCollectionName,
			Wait:           qdrant.PtrOf(true),
			Points:         batch,
		})
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("upload of %d points failed after %d attempts: %w", len(batch), attempts, lastErr)
}

func toPointStructs(points []domain.Embedding) []*qdrant.PointStruct {
	res := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		res = append(res, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}
	return res
}

func toVectorInputs(ids []string) []*qdrant.VectorInput {
	res := make([]*qdrant.VectorInput, 0, len(ids))
	for _, id := range ids {
		res = append(res, qdrant.NewVectorInputID(toPointID(id)))
	}
	return res
}

func toScoredImages(points []*qdrant.ScoredPoint) []domain.ScoredImage {
	res := make([]domain.ScoredImage, 0, len(points))
	for _, p := range points {
		path, _ := toPayload(p.GetPayload()).ImagePath()
		res = append(res, domain.NewScoredImage(pointID(p.GetId()), path, p.GetScore()))
	}
	return res
}

// pointID приводит uuid или числовой id точки к строке.
func pointID(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// toPointID обратна pointID: десятичная строка становится числовым id, остальное передаётся как UUID.
func toPointID(id string) *qdrant.PointId {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n)
	}
	return qdrant.NewID(id)
}

func toPayload(payload map[string]*qdrant.Value) domain.Payload {
	res := make(domain.Payload, len(payload))
	for k, v := range payload {
		if s, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			res[k] = s.StringValue
		}
	}
	return res
}
