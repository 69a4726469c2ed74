package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/jitter"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix  = "style-recommender:lock:"
	releaseTimeout = 5 * time.Second
)

// releaseScript удаляет ключ, только если в нём наш токен.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// extendScript продлевает ключ, только если в нём наш токен.
const extendScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

var (
	pollBaseDelay = 50 * time.Millisecond
	pollMaxDelay  = time.Second
)

// LockClient — команды Redis, которые нужны блокировке.
type LockClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *r.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *r.Cmd
}

// CollectionLocker — межпроцессная блокировка коллекции на SET NX PX. Пока блокировка удерживается,
// ключ продлевается каждые ttl/3. Упавший процесс перестаёт продлевать, и ключ истекает через ttl.
type CollectionLocker struct {
	client LockClient
	ttl    time.Duration
	logger logger.Logger
}

func NewCollectionLocker(client LockClient, ttl time.Duration, logger logger.Logger) *CollectionLocker {
	return &CollectionLocker{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Lock ждёт освобождения ключа с экспоненциальной задержкой, пока не отменён ctx.
func (l *CollectionLocker) Lock(ctx context.Context, collection string) (func(), error) {
	key := lockKeyPrefix + collection
	token := uuid.NewString()

	for attempt := 0; ; attempt++ {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		if acquired {
			l.logger.Debugf("acquired lock %s", key)
			return l.unlockFunc(key, token, l.keepAlive(key, token)), nil
		}

		if err := jitter.Sleep(ctx, jitter.ExponentialBackoff(pollBaseDelay, pollMaxDelay, attempt, jitter.DefaultJitter)); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %s: %w", e.ErrLockNotAcquired, collection, err))
		}
	}
}

// keepAlive продлевает ключ, пока не вызвана возвращённая функция. Если ключ занят чужим токеном, продление прекращается.
func (l *CollectionLocker) keepAlive(key string, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			extended, err := l.client.Eval(ctx, extendScript, []string{key}, token, l.ttl.Milliseconds()).Int64()
			cancel()

			if err != nil {
				l.logger.Warnf("failed to extend lock %s: %v", key, e.Wrap(whereami.WhereAmI(), err))
				continue
			}
			if extended == 0 {
				l.logger.Errorf(e.ErrLockNotAcquired, "lock %s was lost before release, collection is no longer exclusive", key)
				return
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

func (l *CollectionLocker) unlockFunc(key string, token string, stopKeepAlive func()) func() {
	var once sync.Once

	return func() {
		once.Do(func() {
			stopKeepAlive()

			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()

			released, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
			if err != nil {
				l.logger.Warnf("failed to release lock %s, it expires in %v: %v", key, l.ttl, e.Wrap(whereami.WhereAmI(), err))
				return
			}
			if released == 0 {
				l.logger.Warnf("lock %s expired before release", key)
			}
		})
	}
}
