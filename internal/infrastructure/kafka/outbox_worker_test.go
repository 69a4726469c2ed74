package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []*usecase.OutboxEvent
	processed []int64
	returned  []int64
}

func (f *fakeOutbox) Create(_ context.Context, event *usecase.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, event)
	return nil
}

func (f *fakeOutbox) GetAndMarkAsProcessing(_ context.Context, limit int) ([]*usecase.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(limit, len(f.pending))
	batch := f.pending[:n]
	f.pending = f.pending[n:]
	return batch, nil
}

func (f *fakeOutbox) MarkAsProcessed(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeOutbox) MarkAsPending(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returned = append(f.returned, id)
	return nil
}

func (f *fakeOutbox) processedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []*usecase.WriteRawMessageReq
	failKey  string
}

func (f *fakeProducer) WriteRawMessage(_ context.Context, req *usecase.WriteRawMessageReq) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Key == f.failKey {
		return errors.New("dial tcp: connection refused")
	}
	f.messages = append(f.messages, req)
	return nil
}

func events(n int, key string) []*usecase.OutboxEvent {
	res := make([]*usecase.OutboxEvent, 0, n)
	for i := range n {
		res = append(res, &usecase.OutboxEvent{
			ID:        int64(i + 1),
			EventID:   fmt.Sprintf("event-%d", i+1),
			EventType: usecase.OutboxEventImagesIngested,
			Key:       key,
			Payload:   []byte(`{"collection":"fashion"}`),
			Status:    usecase.OutboxStatusProcessing,
		})
	}
	return res
}

func TestOutboxWorker_ProcessBatch(t *testing.T) {
	repo := &fakeOutbox{pending: events(3, "fashion")}
	producer := &fakeProducer{}
	w := NewOutboxWorker(repo, logger.NewNopLogger(), producer, "", "", time.Hour, 2)

	hasMore, err := w.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, hasMore)

	hasMore, err = w.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, hasMore)

	assert.Equal(t, []int64{1, 2, 3}, repo.processed)
	require.Len(t, producer.messages, 3)
	assert.Equal(t, "fashion", producer.messages[0].Key)
}

func TestOutboxWorker_FailedDeliveryReturnsToPending(t *testing.T) {
	repo := &fakeOutbox{pending: events(2, "broken")}
	producer := &fakeProducer{failKey: "broken"}
	w := NewOutboxWorker(repo, logger.NewNopLogger(), producer, "", "", time.Hour, 10)

	_, err := w.processBatch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []int64{1, 2}, repo.returned)
	assert.Empty(t, repo.processed)
}

func TestOutboxWorker_StartDrainsAndPolls(t *testing.T) {
	repo := &fakeOutbox{pending: events(5, "fashion")}
	w := NewOutboxWorker(repo, logger.NewNopLogger(), &fakeProducer{}, "", "", 10*time.Millisecond, 2)

	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool { return repo.processedCount() == 5 }, time.Second, 5*time.Millisecond)

	require.NoError(t, repo.Create(context.Background(), &usecase.OutboxEvent{ID: 6, Key: "fashion"}))
	require.Eventually(t, func() bool { return repo.processedCount() == 6 }, time.Second, 5*time.Millisecond)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("kafka: Broker Not Available")))
	assert.False(t, isRetryableError(errors.New("message too large")))
	assert.False(t, isRetryableError(nil))
}
