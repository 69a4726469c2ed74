package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// OutboxWorker пересылает события outbox в Kafka. Outbox опрашивается раз в pollInterval
// и дополнительно по уведомлению LISTEN, если задан dbConnStr.
type OutboxWorker struct {
	repo         usecase.OutboxRepository
	logger       logger.Logger
	producer     usecase.MessageProducer
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	dbConnStr    string
	channel      string
	pollInterval time.Duration
	batchSize    int
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	dbConnStr string,
	channel string,
	pollInterval time.Duration,
	batchSize int,
) *OutboxWorker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}

	return &OutboxWorker{
		repo:         repo,
		logger:       logger,
		producer:     producer,
		stop:         make(chan struct{}),
		dbConnStr:    dbConnStr,
		channel:      channel,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	wake := make(chan struct{}, 1)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx, wake)
	}()

	if w.dbConnStr == "" {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.listenOutboxNotifications(ctx, wake)
	}()
}

// Stop останавливает воркер и ждёт завершения текущей пачки.
func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *OutboxWorker) run(ctx context.Context, wake <-chan struct{}) {
	w.logger.Infof("draining pending outbox events on startup")
	w.drain(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infof("outbox worker stopped by context cancellation")
			return
		case <-w.stop:
			w.logger.Infof("outbox worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-wake:
			w.drain(ctx)
		}
	}
}

// drain обрабатывает пачки, пока outbox не опустеет или пачка не упадёт целиком.
func (w *OutboxWorker) drain(ctx context.Context) {
	for {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Warnf("outbox batch failed: %v", err)
			return
		}
		if !hasMore {
			return
		}
	}
}

func (w *OutboxWorker) listenOutboxNotifications(ctx context.Context, wake chan<- struct{}) {
	var conn *pgx.Conn

	connect := func() error {
		var err error
		conn, err = pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err = conn.Exec(ctx, "LISTEN "+w.channel); err != nil {
			conn.Close(ctx)
			return e.Wrap("failed to LISTEN", err)
		}

		w.logger.Infof("subscribed to %q channel", w.channel)
		return nil
	}

	if err := connect(); err != nil {
		w.logger.Warnf("outbox listener disabled, polling only: %v", err)
		return
	}
	defer func() { conn.Close(context.Background()) }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warnf("outbox listener connection lost: %v, reconnecting", err)
			conn.Close(ctx)

			time.Sleep(2 * time.Second)
			if err := connect(); err != nil {
				w.logger.Warnf("outbox listener reconnect failed, polling only: %v", err)
				return
			}
			continue
		}

		if notif != nil && notif.Channel == w.channel {
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, w.batchSize)
	if err != nil {
		return false, err
	}

	if len(events) == 0 {
		return false, nil
	}

	failed := 0
	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			failed++
			w.logger.Warnf("event %s not delivered: %v", event.EventID, err)
			if err := w.repo.MarkAsPending(ctx, event.ID); err != nil {
				w.logger.Warnf("return to pending failed: %v", err)
			}
			continue
		}
		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("mark processed failed: %v", err)
		}
	}

	if failed == len(events) {
		return false, errors.New("no events in batch were delivered")
	}

	return len(events) == w.batchSize, nil
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *usecase.OutboxEvent) error {
	if err := w.producer.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(event.Key, event.Payload)); err != nil {
		if isRetryableError(err) {
			return e.Wrap("temporary Kafka failure, will retry", err)
		}
		return e.Wrap("permanent Kafka failure", err)
	}
	return nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
