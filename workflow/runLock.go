package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/agromatch_backend/config"
	"github.com/mmdatafocus/agromatch_backend/matching"
)

// RedisRunLocker keeps one execution per demand version across instances.
type RedisRunLocker struct {
	Client *redislock.Client
	TTL    time.Duration
}

func NewRedisRunLocker(client *redislock.Client) *RedisRunLocker {
	return &RedisRunLocker{Client: client, TTL: 5 * time.Minute}
}

// Lock fails fast with matching.ErrExecutionInProgress when another run holds the key.
func (l *RedisRunLocker) Lock(ctx context.Context, demandVersionID int) (func(), error) {
	if l.Client == nil {
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("MatchRun:%d", demandVersionID)
	lock, err := l.Client.Obtain(ctx, lockKey, l.TTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, matching.ErrExecutionInProgress
	} else if err != nil {
		config.LogError(config.GetLogger(), "RedisRunLocker", "Lock", "obtain lock", demandVersionID, err)
		return nil, err
	}
	return func() {
		// the run may outlive the request context
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}
