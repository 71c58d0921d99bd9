package paymentwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/redis"
)

// DedupeGuard remembers callback identities so a re-delivered callback is
// recognized before it reaches the order.
type DedupeGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewDedupeGuard builds a guard using the shared idempotency store.
func NewDedupeGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*DedupeGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &DedupeGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether the callback was seen before, marking it
// seen atomically.
func (g *DedupeGuard) CheckAndMark(ctx context.Context, callbackID string) (bool, error) {
	if callbackID == "" {
		return false, errors.New("callback id is required")
	}
	key := g.store.IdempotencyKey(g.scope, callbackID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set dedupe key: %w", err)
	}
	return !set, nil
}

// Forget clears the mark so a callback can be re-processed, used when
// applying it failed after the mark was set.
func (g *DedupeGuard) Forget(ctx context.Context, callbackID string) error {
	if callbackID == "" {
		return errors.New("callback id is required")
	}
	key := g.store.IdempotencyKey(g.scope, callbackID)
	return g.store.Del(ctx, key)
}
