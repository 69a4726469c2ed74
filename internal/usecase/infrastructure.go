package usecase

import "context"

// MlServiceInfra — провайдер эмбеддингов. Возвращает ровно один вектор на путь в том же порядке.
type MlServiceInfra interface {
	Embed(ctx context.Context, paths []string) ([][]float32, error)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}
