// Package lock serialises writers of a single invoice document.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoicedoc/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyDocumentLock = "invoicedoc:document:lock:%s"

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockTimeout    = errors.New("document_lock_timeout")
	ErrLockNotHeld    = errors.New("lock_not_held")
	errEmptyLockKey   = errors.New("lock key is empty")
	errNonPositiveTTL = errors.New("lock ttl must be positive")
)

// Locker grants exclusive access to one document at a time. The returned
// release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, documentID string) (release func(), err error)
}

var Module = fx.Module("document.lock",
	fx.Provide(New),
)

// New returns a Redis-backed locker when a client is configured and an
// in-process one otherwise.
func New(client *redis.Client, cfg config.Config, log *zap.Logger) Locker {
	log = log.Named("document.lock")
	if client == nil {
		log.Info("using in-process document lock")
		return NewMemoryLocker()
	}
	log.Info("using redis document lock", zap.Duration("ttl", cfg.LockTTL))
	return NewRedisLocker(client, cfg.LockTTL, log)
}

type RedisLocker struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
	retry  time.Duration
	log    *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		log:    log,
	}
}

// Acquire polls until the lock is taken, ctx ends or one TTL has elapsed.
func (l *RedisLocker) Acquire(ctx context.Context, documentID string) (func(), error) {
	key := fmt.Sprintf(keyDocumentLock, strings.TrimSpace(documentID))
	deadline := time.Now().Add(l.ttl)
	for {
		token, ok, err := l.TryLock(ctx, key, l.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// the caller's ctx may already be cancelled
				if err := l.Release(context.Background(), key, token); err != nil {
					l.log.Warn("release document lock", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errEmptyLockKey
	}
	if ttl <= 0 {
		return "", false, errNonPositiveTTL
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes key only while it still holds token, so an expired lock
// re-acquired by another writer is left alone.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	n, err := l.script.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
