package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/DRSN-tech/style-recommender/internal/domain"
	"github.com/DRSN-tech/style-recommender/internal/usecase"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore — in-memory коллекция, отвечающая как векторное хранилище.
type fakeStore struct {
	mu sync.Mutex

	collection string
	points     []domain.Embedding

	countErr    error
	scrollErr   error
	uploadErr   error
	recommendFn func(q *usecase.RecommendQuery) ([]domain.ScoredImage, error)
	searchErr   error

	countCalls  int
	scrollCalls int
	uploads     [][]domain.Embedding
	uploadOpts  []usecase.UploadOptions
	lastQuery   *usecase.RecommendQuery
	lastSearch  []float32
}

func newFakeStore() *fakeStore {
	return &fakeStore{collection: "fashion"}
}

func (f *fakeStore) seed(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range paths {
		f.points = append(f.points, domain.Embedding{
			ID:      fmt.Sprintf("seed-%03d", i),
			Vector:  []float32{1, 0, 0, 0},
			Payload: domain.NewPayload(p),
		})
	}
}

func (f *fakeStore) Collection() string { return f.collection }

func (f *fakeStore) Count(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.countErr != nil {
		return 0, f.countErr
	}
	return uint64(len(f.points)), nil
}

func (f *fakeStore) Scroll(ctx context.Context, offset string, limit uint32) (*usecase.ScrollPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrollCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.scrollErr != nil {
		return nil, f.scrollErr
	}

	start := 0
	if offset != "" {
		start = -1
		for i, p := range f.points {
			if p.ID == offset {
				start = i
				break
			}
		}
		if start < 0 {
			return &usecase.ScrollPage{}, nil
		}
	}

	end := min(start+int(limit), len(f.points))
	page := &usecase.ScrollPage{}
	for _, p := range f.points[start:end] {
		page.Points = append(page.Points, usecase.ScrolledPoint{ID: p.ID, Payload: p.Payload})
	}
	if end < len(f.points) {
		page.NextOffset = f.points[end].ID
	}
	return page, nil
}

func (f *fakeStore) UploadPoints(_ context.Context, points []domain.Embedding, opts usecase.UploadOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, points)
	f.uploadOpts = append(f.uploadOpts, opts)
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeStore) Search(_ context.Context, vector []float32, limit uint64) ([]domain.ScoredImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSearch = vector
	if f.searchErr != nil {
		return nil, f.searchErr
	}

	hits := make([]domain.ScoredImage, 0, len(f.points))
	for _, p := range f.points {
		path, _ := p.Payload.ImagePath()
		hits = append(hits, domain.NewScoredImage(p.ID, path, dot(vector, p.Vector)))
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeStore) Recommend(_ context.Context, q *usecase.RecommendQuery) ([]domain.ScoredImage, error) {
	f.mu.Lock()
	f.lastQuery = q
	fn := f.recommendFn
	f.mu.Unlock()
	if fn != nil {
		return fn(q)
	}
	return []domain.ScoredImage{}, nil
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range min(len(a), len(b)) {
		s += a[i] * b[i]
	}
	return s
}

// fakeEmbedder возвращает векторы размерности dim. failOn — номер вызова (с 1), на котором вернуть ошибку.
type fakeEmbedder struct {
	mu     sync.Mutex
	dim    int
	failOn int
	err    error
	short  bool
	calls  [][]string
	vector func(path string) []float32
	onCall func(call int)
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim}
}

func (f *fakeEmbedder) Embed(_ context.Context, paths []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), paths...))
	if f.onCall != nil {
		f.onCall(len(f.calls))
	}
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return nil, f.err
	}

	n := len(paths)
	if f.short {
		n--
	}
	vectors := make([][]float32, 0, n)
	for _, p := range paths[:n] {
		if f.vector != nil {
			vectors = append(vectors, f.vector(p))
			continue
		}
		v := make([]float32, f.dim)
		v[0] = 1
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func (f *fakeEmbedder) callSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, 0, len(f.calls))
	for _, c := range f.calls {
		sizes = append(sizes, len(c))
	}
	return sizes
}

type fakeLedger struct {
	mu        sync.Mutex
	recorded  []*usecase.RecordChunkReq
	ingested  map[string]string
	recordErr error
	findErr   error
}

func (f *fakeLedger) RecordChunk(_ context.Context, req *usecase.RecordChunkReq) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, req)
	return nil
}

func (f *fakeLedger) FindIngested(_ context.Context, paths []string) (map[string]string, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	found := make(map[string]string)
	for _, p := range paths {
		if id, ok := f.ingested[p]; ok {
			found[p] = id
		}
	}
	return found, nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []*usecase.OutboxEvent
}

func (f *fakeOutbox) Create(_ context.Context, event *usecase.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) GetAndMarkAsProcessing(_ context.Context, _ int) ([]*usecase.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkAsProcessed(_ context.Context, _ int64) error { return nil }

func (f *fakeOutbox) MarkAsPending(_ context.Context, _ int64) error { return nil }

// fakeTx выполняет fn без транзакции.
type fakeTx struct {
	calls int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}
