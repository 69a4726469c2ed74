package usecase

import (
	"context"

	"github.com/DRSN-tech/style-recommender/internal/domain"
)

type IngestUC interface {
	InsertImages(ctx context.Context, req *InsertImagesReq) (*InsertImagesRes, error)
	PendingPaths(ctx context.Context, paths []string) ([]string, error)
}

type CatalogUC interface {
	Refresh(ctx context.Context) domain.CatalogSnapshot
	Snapshot() domain.CatalogSnapshot
}

type RecommendUC interface {
	Recommend(ctx context.Context, req *RecommendReq) ([]domain.ScoredImage, error)
	SearchSimilar(ctx context.Context, req *SearchReq) ([]domain.ScoredImage, error)
}
