package ml_service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/cfg"
	"github.com/DRSN-tech/style-recommender/internal/infrastructure/images"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// EmbedImagesMethod — полный gRPC-метод сервиса эмбеддингов. Запрос и ответ передаются как google.protobuf.Struct.
const EmbedImagesMethod = "/embedding.v1.ImageEmbeddingService/EmbedImages"

// ImageLoader читает изображения по путям в исходном порядке.
type ImageLoader interface {
	LoadAll(ctx context.Context, paths []string) ([]*images.Image, error)
}

// MLService клиент внешнего сервиса эмбеддингов. Соединение и модель фиксируются при создании.
type MLService struct {
	conn    grpc.ClientConnInterface
	loader  ImageLoader
	model   string
	breaker *gobreaker.CircuitBreaker[[][]float32]
	logger  logger.Logger
}

func NewMLService(conn grpc.ClientConnInterface, loader ImageLoader, cfg *cfg.MLServiceCfg, logger logger.Logger) *MLService {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[[][]float32](gobreaker.Settings{
		Name:    "ml-service",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Отмена и дедлайн вызывающего не говорят о состоянии сервиса
		IsSuccessful: func(err error) bool {
			return err == nil || isCallerCanceled(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &MLService{
		conn:    conn,
		loader:  loader,
		model:   cfg.Model,
		breaker: breaker,
		logger:  logger,
	}
}

// Embed возвращает по одному вектору на путь в том же порядке. Ошибки не повторяются.
func (m *MLService) Embed(ctx context.Context, paths []string) ([][]float32, error) {
	const op = "MLService.Embed"

	if len(paths) == 0 {
		return [][]float32{}, nil
	}

	imgs, err := m.loader.LoadAll(ctx, paths)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vectors, err := m.breaker.Execute(func() ([][]float32, error) {
		return m.embedImages(ctx, imgs)
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(vectors) != len(paths) {
		return nil, e.Wrap(op, fmt.Errorf("%w: %d paths, %d vectors", e.ErrImageVectorMismatch, len(paths), len(vectors)))
	}

	return vectors, nil
}

func (m *MLService) embedImages(ctx context.Context, imgs []*images.Image) ([][]float32, error) {
	payload := make([]any, 0, len(imgs))
	for _, img := range imgs {
		payload = append(payload, map[string]any{
			"path":      img.Path,
			"mime_type": img.MimeType,
			"data":      base64.StdEncoding.EncodeToString(img.Data),
		})
	}

	req, err := structpb.NewStruct(map[string]any{
		"model":  m.model,
		"images": payload,
	})
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res := &structpb.Struct{}
	if err := m.conn.Invoke(ctx, EmbedImagesMethod, req, res); err != nil {
		return nil, err
	}

	m.logger.Debugf(
		"embedded %d images with %s (model version %s) in %v",
		len(imgs), m.model, res.GetFields()["model_version"].GetStringValue(), time.Since(started),
	)

	return parseVectors(res)
}

func isCallerCanceled(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Canceled, codes.DeadlineExceeded:
		return true
	}
	return false
}

// parseVectors разбирает поле vectors: список списков чисел.
func parseVectors(res *structpb.Struct) ([][]float32, error) {
	list := res.GetFields()["vectors"].GetListValue()
	if list == nil {
		return nil, e.ErrEmptyVectors
	}

	vectors := make([][]float32, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		values := item.GetListValue().GetValues()
		vector := make([]float32, 0, len(values))
		for _, v := range values {
			vector = append(vector, float32(v.GetNumberValue()))
		}
		vectors = append(vectors, vector)
	}

	return vectors, nil
}
