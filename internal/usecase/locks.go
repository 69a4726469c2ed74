package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/DRSN-tech/style-recommender/pkg/e"
)

// LocalLocker — блокировка коллекций в пределах процесса. Ожидание прерывается отменой контекста.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

// Lock захватывает блокировку коллекции. Возвращаемая unlock идемпотентна.
func (l *LocalLocker) Lock(ctx context.Context, collection string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.locks[collection]
	if !ok {
		slot = make(chan struct{}, 1)
		l.locks[collection] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-slot })
		}, nil
	case <-ctx.Done():
		return nil, e.Wrap("LocalLocker.Lock "+collection, fmt.Errorf("%w: %w", e.ErrLockNotAcquired, ctx.Err()))
	}
}
