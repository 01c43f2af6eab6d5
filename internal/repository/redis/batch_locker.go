package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockRetryInterval = 50 * time.Millisecond

// ErrLockBusy is returned when another holder kept the lock past the wait budget.
var ErrLockBusy = errors.New("batch lock busy")

// BatchLocker serializes report submissions per batch across instances.
type BatchLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewBatchLocker builds a locker whose locks expire after ttl.
func NewBatchLocker(client goredis.UniversalClient, ttl time.Duration, logger *zap.Logger) *BatchLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &BatchLocker{
		locker: redislock.New(client),
		ttl:    ttl,
		logger: logger,
	}
}

// Lock blocks until the batch lock is held or the ttl has elapsed.
func (l *BatchLocker) Lock(ctx context.Context, batchID string) (func(), error) {
	key := fmt.Sprintf("lock:batch:%s", batchID)
	retries := int(l.ttl / lockRetryInterval)

	lock, err := l.locker.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetryInterval), retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockBusy
	}
	if err != nil {
		return nil, fmt.Errorf("obtain %s: %w", key, err)
	}

	return func() {
		// The caller's context may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release batch lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
