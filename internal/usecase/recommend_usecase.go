package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/domain"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/DRSN-tech/style-recommender/pkg/metrics"
)

// EmptyPolicy определяет ответ на запрос рекомендаций без лайков и дизлайков.
type EmptyPolicy string

const (
	// EmptyPolicyCatalog — первые limit записей текущего снимка каталога со score 0.
	EmptyPolicyCatalog EmptyPolicy = "catalog"
	// EmptyPolicyEmpty — пустой список.
	EmptyPolicyEmpty EmptyPolicy = "empty"
)

// RecommendUseCase — тонкий фасад над recommend и search хранилища. Локального ранжирования нет.
type RecommendUseCase struct {
	points   PointRepository
	embedder MlServiceInfra
	catalog  CatalogUC
	policy   EmptyPolicy
	logger   logger.Logger
}

func NewRecommendUC(
	points PointRepository,
	embedder MlServiceInfra,
	catalog CatalogUC,
	policy EmptyPolicy,
	logger logger.Logger,
) *RecommendUseCase {
	if policy != EmptyPolicyEmpty {
		policy = EmptyPolicyCatalog
	}

	return &RecommendUseCase{
		points:   points,
		embedder: embedder,
		catalog:  catalog,
		policy:   policy,
		logger:   logger,
	}
}

// Recommend возвращает до Limit изображений: лайки — положительные примеры, дизлайки — отрицательные.
func (r *RecommendUseCase) Recommend(ctx context.Context, req *RecommendReq) (hits []domain.ScoredImage, err error) {
	const op = "RecommendUseCase.Recommend"

	started := time.Now()
	defer func() { metrics.ObserveQuery("recommend", started, err) }()

	if req.Limit <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidLimit)
	}
	if overlap := domain.Overlap(req.Liked, req.Disliked); len(overlap) > 0 {
		return nil, e.Wrap(fmt.Sprintf("%s [%s]", op, strings.Join(overlap, ", ")), e.ErrPreferenceOverlap)
	}

	if len(req.Liked) == 0 && len(req.Disliked) == 0 {
		return r.withoutPreferences(req.Limit), nil
	}

	hits, err = r.points.Recommend(ctx, &RecommendQuery{
		Positive: req.Liked,
		Negative: req.Disliked,
		Limit:    uint64(req.Limit),
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return truncate(hits, req.Limit), nil
}

// SearchSimilar ищет изображения, похожие на одно изображение по пути.
func (r *RecommendUseCase) SearchSimilar(ctx context.Context, req *SearchReq) (hits []domain.ScoredImage, err error) {
	const op = "RecommendUseCase.SearchSimilar"

	started := time.Now()
	defer func() { metrics.ObserveQuery("search", started, err) }()

	if strings.TrimSpace(req.Path) == "" {
		return nil, e.Wrap(op, e.ErrEmptyQueryPath)
	}
	if req.Limit <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidLimit)
	}

	vectors, err := r.embedder.Embed(ctx, []string{req.Path})
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		r.logger.Warnf("no embedding produced for %s, returning empty result", req.Path)
		return []domain.ScoredImage{}, nil
	}

	hits, err = r.points.Search(ctx, vectors[0], uint64(req.Limit))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return truncate(hits, req.Limit), nil
}

func (r *RecommendUseCase) withoutPreferences(limit int) []domain.ScoredImage {
	if r.policy == EmptyPolicyEmpty {
		return []domain.ScoredImage{}
	}

	head := r.catalog.Snapshot().Head(limit)
	hits := make([]domain.ScoredImage, 0, len(head))
	for _, rec := range head {
		hits = append(hits, domain.ScoredImage{ImageRecord: rec})
	}
	return hits
}

func truncate(hits []domain.ScoredImage, limit int) []domain.ScoredImage {
	if hits == nil {
		return []domain.ScoredImage{}
	}
	if len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
