package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"linkage/internal/contact/ports"
)

// LockedTx wraps a transaction runner with a lock shared across processes,
// for deployments where several replicas write to the same store.
type LockedTx struct {
	inner  ports.ContactStoreTx
	locker ports.Locker
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.ContactStoreTx = (*LockedTx)(nil)

// NewLockedTx returns a runner that holds key in locker for the duration of
// every transaction run by inner.
func NewLockedTx(inner ports.ContactStoreTx, locker ports.Locker, key string, ttl time.Duration, logger *slog.Logger) *LockedTx {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LockedTx{inner: inner, locker: locker, key: key, ttl: ttl, logger: logger}
}

func (t *LockedTx) RunInTx(ctx context.Context, fn func(store ports.ContactStore) error) error {
	release, err := t.locker.Acquire(ctx, t.key, t.ttl)
	if err != nil {
		return fmt.Errorf("acquire lock %q: %w", t.key, err)
	}
	defer func() {
		// The transaction outcome is already decided; an unreleased lock
		// expires after ttl.
		if err := release(context.WithoutCancel(ctx)); err != nil {
			t.logger.WarnContext(ctx, "failed to release lock", "key", t.key, "error", err)
		}
	}()
	return t.inner.RunInTx(ctx, fn)
}
