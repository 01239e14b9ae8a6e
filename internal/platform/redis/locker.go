package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"linkage/pkg/platform/sentinel"
)

// releaseScript deletes the lock only while it still holds the caller's
// token, so an expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance Redis mutex built on SET NX PX.
type Locker struct {
	client   redis.Cmdable
	prefix   string
	retry    time.Duration
	maxWait  time.Duration
	newToken func() string
}

type LockerOption func(*Locker)

// WithRetryInterval sets the pause between acquisition attempts.
func WithRetryInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		l.retry = d
	}
}

// WithMaxWait bounds how long Acquire waits for a held lock.
func WithMaxWait(d time.Duration) LockerOption {
	return func(l *Locker) {
		l.maxWait = d
	}
}

func WithKeyPrefix(prefix string) LockerOption {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

func NewLocker(client redis.Cmdable, opts ...LockerOption) *Locker {
	l := &Locker{
		client:   client,
		prefix:   "linkage:lock:",
		retry:    25 * time.Millisecond,
		maxWait:  5 * time.Second,
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until key is free, ctx ends or the wait bound passes. The
// lock expires after ttl if release is never called.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	name := l.prefix + key
	token := l.newToken()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, name, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("acquire lock %s: %w", key, ctxErr)
			}
			return nil, fmt.Errorf("acquire lock %s: %w: %w", key, sentinel.ErrUnavailable, err)
		}
		if ok {
			return l.releaser(name, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("acquire lock %s: %w", key, sentinel.ErrLockHeld)
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *Locker) releaser(name, token string) func(context.Context) error {
	return func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.client, []string{name}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release lock %s: %w: %w", name, sentinel.ErrUnavailable, err)
		}
		if deleted == 0 {
			return fmt.Errorf("release lock %s: lock expired or taken over: %w", name, sentinel.ErrLockHeld)
		}
		return nil
	}
}
