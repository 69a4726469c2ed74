package http

import (
	"time"

	"github.com/DRSN-tech/style-recommender/internal/domain"
)

// CatalogResponse — снимок каталога для клиента.
type CatalogResponse struct {
	Count       uint64               `json:"count"`
	Status      string               `json:"status"`
	Cause       string               `json:"cause,omitempty"`
	RefreshedAt *time.Time           `json:"refreshed_at,omitempty"`
	Points      []domain.ImageRecord `json:"points"`
}

type InsertImagesRequest struct {
	Paths []string `json:"paths" validate:"required,min=1,max=10000,dive,required"`
}

// InsertImagesResponse содержит подтверждённые записи. Error заполнен, если загрузка прервалась на одном из чанков.
type InsertImagesResponse struct {
	Stored  []domain.ImageRecord `json:"stored"`
	Catalog CatalogResponse      `json:"catalog"`
	Error   string               `json:"error,omitempty"`
}

type PendingPathsRequest struct {
	Paths []string `json:"paths" validate:"required,min=1,dive,required"`
}

type PendingPathsResponse struct {
	Pending []string `json:"pending"`
}

type RecommendRequest struct {
	Liked    []string `json:"liked" validate:"dive,uuid"`
	Disliked []string `json:"disliked" validate:"dive,uuid"`
	Limit    int      `json:"limit" validate:"gt=0,lte=1000"`
}

type SearchRequest struct {
	Path  string `json:"path" validate:"required"`
	Limit int    `json:"limit" validate:"gt=0,lte=1000"`
}

type ScoredImagesResponse struct {
	Results []domain.ScoredImage `json:"results"`
}

func toCatalogResponse(snap domain.CatalogSnapshot, limit int) CatalogResponse {
	res := CatalogResponse{
		Count:  snap.Count,
		Status: string(snap.Status),
		Points: snap.Points,
	}
	if limit > 0 {
		res.Points = snap.Head(limit)
	}
	if res.Points == nil {
		res.Points = []domain.ImageRecord{}
	}
	if snap.Cause != nil {
		res.Cause = snap.Cause.Error()
	}
	if !snap.RefreshedAt.IsZero() {
		at := snap.RefreshedAt
		res.RefreshedAt = &at
	}
	return res
}

// toPreferenceSet собирает отметки через PreferenceSet: id в обоих списках считается ошибкой запроса.
func toPreferenceSet(liked, disliked []string) (*domain.PreferenceSet, []string) {
	if both := domain.Overlap(liked, disliked); len(both) > 0 {
		return nil, both
	}

	prefs := domain.NewPreferenceSet()
	for _, id := range liked {
		prefs.Like(id)
	}
	for _, id := range disliked {
		prefs.Dislike(id)
	}
	return prefs, nil
}
