// Package lockout tracks failed attempts per key and denies callers once a
// threshold is reached. Unlike the fixed-window rate limiter, the failure
// window is anchored to the first failure: the TTL is set when the counter
// is created and is not extended by later failures.
package lockout

import (
	"context"
	"time"

	"github.com/authcore-io/authcore/internal/kv"
)

// Config holds lockout guard tuning parameters.
type Config struct {
	MaxFailures int
	Duration    time.Duration
}

// Guard counts failures per key on a shared counter store and reports
// lockout once the count reaches the threshold.
type Guard struct {
	store  kv.Store
	config Config
}

// New creates a [Guard] backed by the given counter store.
func New(store kv.Store, cfg Config) *Guard {
	return &Guard{store: store, config: cfg}
}

// RecordFailure increments the failure counter for key. A missing counter
// is created at 1 with TTL = lockout duration; an existing counter is
// incremented without touching the TTL, so the whole window expires
// Duration after the first failure regardless of later ones.
func (g *Guard) RecordFailure(ctx context.Context, key string) error {
	_, exists, err := g.store.Get(ctx, key)
	if err != nil {
		return err
	}

	if !exists {
		return g.store.Set(ctx, key, 1, g.config.Duration)
	}

	_, err = g.store.Incr(ctx, key)
	return err
}

// IsLocked reports whether key has accumulated MaxFailures or more
// failures inside the current window.
func (g *Guard) IsLocked(ctx context.Context, key string) (bool, error) {
	count, exists, err := g.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return exists && count >= int64(g.config.MaxFailures), nil
}

// Reset clears the failure counter for key, e.g. after a successful
// attempt or a manual unlock.
func (g *Guard) Reset(ctx context.Context, key string) error {
	return g.store.Delete(ctx, key)
}

// CheckAndRecord is the composite gate used by the orchestrator: a key that
// is already locked is denied without recording anything (a success cannot
// clear an existing lock); otherwise a success resets the counter, a
// failure records one, and the attempt is allowed through.
//
// Note the deliberate off-by-one: the attempt that pushes the count to the
// threshold is itself allowed (the caller still reports its own failure);
// only the next attempt is denied here.
func (g *Guard) CheckAndRecord(ctx context.Context, key string, success bool) (bool, error) {
	locked, err := g.IsLocked(ctx, key)
	if err != nil {
		return false, err
	}
	if locked {
		return false, nil
	}

	if success {
		if err := g.Reset(ctx, key); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := g.RecordFailure(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}
