package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/domain"
	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	likedID    = "5f0c3c0e-8c52-4d8f-9e0a-6b1c1f3a9d01"
	dislikedID = "0b7e1a52-3f7d-4c1e-8a4f-2d6b9c8e7f02"
)

type fakeIngest struct {
	req     *usecase.InsertImagesReq
	res     *usecase.InsertImagesRes
	err     error
	pending []string
}

func (f *fakeIngest) InsertImages(_ context.Context, req *usecase.InsertImagesReq) (*usecase.InsertImagesRes, error) {
	f.req = req
	return f.res, f.err
}

func (f *fakeIngest) PendingPaths(_ context.Context, paths []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.pending != nil {
		return f.pending, nil
	}
	return paths, nil
}

type fakeCatalog struct {
	snap      domain.CatalogSnapshot
	refreshed int
}

func (f *fakeCatalog) Refresh(context.Context) domain.CatalogSnapshot {
	f.refreshed++
	return f.snap
}

func (f *fakeCatalog) Snapshot() domain.CatalogSnapshot {
	return f.snap
}

type fakeRecommend struct {
	recReq    *usecase.RecommendReq
	searchReq *usecase.SearchReq
	results   []domain.ScoredImage
	err       error
}

func (f *fakeRecommend) Recommend(_ context.Context, req *usecase.RecommendReq) ([]domain.ScoredImage, error) {
	f.recReq = req
	return f.results, f.err
}

func (f *fakeRecommend) SearchSimilar(_ context.Context, req *usecase.SearchReq) ([]domain.ScoredImage, error) {
	f.searchReq = req
	return f.results, f.err
}

type testAPI struct {
	ingest    *fakeIngest
	catalog   *fakeCatalog
	recommend *fakeRecommend
	handler   http.Handler
}

func newTestAPI(rateLimit int) *testAPI {
	api := &testAPI{
		ingest:    &fakeIngest{},
		catalog:   &fakeCatalog{snap: domain.EmptySnapshot()},
		recommend: &fakeRecommend{},
	}

	mux := chi.NewRouter()
	NewRouter(mux, logger.NewNopLogger(), rateLimit).Init(api.ingest, api.catalog, api.recommend)
	api.handler = mux
	return api
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func sampleSnapshot() domain.CatalogSnapshot {
	return domain.CatalogSnapshot{
		Count: 2,
		Points: []domain.ImageRecord{
			domain.NewImageRecord(likedID, "/data/a.jpg"),
			domain.NewImageRecord(dislikedID, "/data/b.jpg"),
		},
		Status:      domain.SnapshotFresh,
		RefreshedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestCatalogHandler_GetSnapshot(t *testing.T) {
	api := newTestAPI(0)
	api.catalog.snap = sampleSnapshot()

	rec := api.do(t, http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[CatalogResponse](t, rec)
	assert.Equal(t, uint64(2), res.Count)
	assert.Equal(t, "fresh", res.Status)
	assert.Len(t, res.Points, 2)
	require.NotNil(t, res.RefreshedAt)

	rec = api.do(t, http.MethodGet, "/api/v1/catalog?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[CatalogResponse](t, rec).Points, 1)

	rec = api.do(t, http.MethodGet, "/api/v1/catalog?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogHandler_DegradedRefreshIsNotAnError(t *testing.T) {
	api := newTestAPI(0)
	api.catalog.snap = domain.CatalogSnapshot{
		Points: []domain.ImageRecord{},
		Status: domain.SnapshotDegraded,
		Cause:  errors.New("qdrant unavailable"),
	}

	rec := api.do(t, http.MethodPost, "/api/v1/catalog/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, api.catalog.refreshed)

	res := decode[CatalogResponse](t, rec)
	assert.Equal(t, "degraded", res.Status)
	assert.Equal(t, "qdrant unavailable", res.Cause)
	assert.Empty(t, res.Points)
	assert.NotNil(t, res.Points)
}

func TestImageHandler_InsertImages(t *testing.T) {
	api := newTestAPI(0)
	snap := sampleSnapshot()
	api.ingest.res = &usecase.InsertImagesRes{Stored: snap.Points, Snapshot: snap}

	rec := api.do(t, http.MethodPost, "/api/v1/images", `{"paths":["/data/a.jpg","/data/b.jpg"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"/data/a.jpg", "/data/b.jpg"}, api.ingest.req.Paths)

	res := decode[InsertImagesResponse](t, rec)
	assert.Len(t, res.Stored, 2)
	assert.Equal(t, uint64(2), res.Catalog.Count)
	assert.Empty(t, res.Error)
}

func TestImageHandler_InsertImagesPartialFailure(t *testing.T) {
	api := newTestAPI(0)
	snap := sampleSnapshot()
	api.ingest.res = &usecase.InsertImagesRes{Stored: snap.Points[:1], Snapshot: snap}
	api.ingest.err = &usecase.ChunkError{Index: 1, Stage: usecase.StageEmbed, Paths: []string{"/data/c.jpg"}, Err: errors.New("model is loading")}

	rec := api.do(t, http.MethodPost, "/api/v1/images", `{"paths":["/data/a.jpg","/data/c.jpg"]}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	res := decode[InsertImagesResponse](t, rec)
	assert.Len(t, res.Stored, 1)
	assert.Contains(t, res.Error, "failed at embed")
}

func TestImageHandler_InsertImagesValidation(t *testing.T) {
	api := newTestAPI(0)

	for name, body := range map[string]string{
		"empty list":    `{"paths":[]}`,
		"blank path":    `{"paths":[""]}`,
		"unknown field": `{"paths":["/a.jpg"],"extra":1}`,
		"broken json":   `{"paths":`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/images", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Nil(t, api.ingest.req)
}

func TestImageHandler_InsertImagesBusyCollection(t *testing.T) {
	api := newTestAPI(0)
	api.ingest.err = e.Wrap("LocalLocker.Lock fashion", e.ErrLockNotAcquired)

	rec := api.do(t, http.MethodPost, "/api/v1/images", `{"paths":["/data/a.jpg"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestImageHandler_PendingPaths(t *testing.T) {
	api := newTestAPI(0)
	api.ingest.pending = []string{"/data/b.jpg"}

	rec := api.do(t, http.MethodPost, "/api/v1/images/pending", `{"paths":["/data/a.jpg","/data/b.jpg"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"/data/b.jpg"}, decode[PendingPathsResponse](t, rec).Pending)
}

func TestRecommendHandler_Recommend(t *testing.T) {
	api := newTestAPI(0)
	api.recommend.results = []domain.ScoredImage{domain.NewScoredImage(likedID, "/data/a.jpg", 0.8)}

	rec := api.do(t, http.MethodPost, "/api/v1/recommendations",
		`{"liked":["`+likedID+`","`+likedID+`"],"disliked":["`+dislikedID+`"],"limit":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, api.recommend.recReq)
	assert.Equal(t, []string{likedID}, api.recommend.recReq.Liked)
	assert.Equal(t, []string{dislikedID}, api.recommend.recReq.Disliked)
	assert.Equal(t, 5, api.recommend.recReq.Limit)

	res := decode[ScoredImagesResponse](t, rec)
	require.Len(t, res.Results, 1)
	assert.InDelta(t, 0.8, res.Results[0].Score, 1e-6)
}

func TestRecommendHandler_RecommendRejectsBadInput(t *testing.T) {
	api := newTestAPI(0)

	for name, body := range map[string]string{
		"overlap":       `{"liked":["` + likedID + `"],"disliked":["` + likedID + `"],"limit":5}`,
		"zero limit":    `{"liked":["` + likedID + `"],"limit":0}`,
		"not an uuid":   `{"liked":["shirt"],"limit":5}`,
		"limit too big": `{"limit":100000}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/recommendations", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Nil(t, api.recommend.recReq)
}

func TestRecommendHandler_UpstreamFailure(t *testing.T) {
	api := newTestAPI(0)
	api.recommend.err = errors.New("rpc error: code = Unavailable")

	rec := api.do(t, http.MethodPost, "/api/v1/recommendations", `{"liked":["`+likedID+`"],"limit":5}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, e.ErrUpstreamFailure.Error(), decode[ErrorResponse](t, rec).Message)

	rec = api.do(t, http.MethodPost, "/api/v1/search", `{"path":"/data/a.jpg","limit":5}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRecommendHandler_Search(t *testing.T) {
	api := newTestAPI(0)
	api.recommend.results = []domain.ScoredImage{}

	rec := api.do(t, http.MethodPost, "/api/v1/search", `{"path":"/data/q.jpg","limit":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/data/q.jpg", api.recommend.searchReq.Path)
	assert.Equal(t, 3, api.recommend.searchReq.Limit)
	assert.Empty(t, decode[ScoredImagesResponse](t, rec).Results)

	rec = api.do(t, http.MethodPost, "/api/v1/search", `{"limit":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RateLimitByIP(t *testing.T) {
	api := newTestAPI(2)

	for range 2 {
		rec := api.do(t, http.MethodGet, "/api/v1/catalog", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := api.do(t, http.MethodGet, "/api/v1/catalog", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	api := newTestAPI(0)

	rec := api.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestToHTTPResponse(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{e.ErrInvalidLimit, http.StatusBadRequest},
		{upstream(e.ErrEmptyQueryPath), http.StatusBadRequest},
		{upstream(e.ErrLockNotAcquired), http.StatusConflict},
		{upstream(errors.New("timeout")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		code, _ := ToHTTPResponse(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
