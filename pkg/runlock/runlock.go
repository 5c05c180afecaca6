package runlock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// Lock is a Redis-backed mutual exclusion lock for batch jobs that
// must not run concurrently across hosts.
type Lock struct {
	rs     *redsync.Redsync
	name   string
	expiry time.Duration
}

func New(client *redis.Client, name string, expiry time.Duration) *Lock {
	pool := goredis.NewPool(client)
	return &Lock{
		rs:     redsync.New(pool),
		name:   name,
		expiry: expiry,
	}
}

// Acquire takes the lock without retries: a busy lock means another
// run is in flight and this one should be skipped, not queued.
// The returned release function is safe to defer.
func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	mutex := l.rs.NewMutex(l.name,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}

	return func() {
		_, _ = mutex.UnlockContext(ctx)
	}, nil
}
