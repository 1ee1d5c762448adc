// Package kv abstracts the shared counter store used by the rate limiter
// and the lockout guard. The contract is deliberately small: integer get,
// set-with-expiry, atomic increment, delete. Atomicity of Incr at the store
// level is the only correctness requirement; no in-process locks are needed
// on top of it.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store could not be reached. Callers
// decide the fail-open/fail-closed policy; this package only reports.
var ErrUnavailable = errors.New("counter store unavailable")

// Store is the counter-store contract.
type Store interface {
	// Get returns the integer value for key and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)
	// Set writes value under key with the given TTL, replacing any
	// existing value and TTL.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
	// Incr atomically increments key and returns the new value. A missing
	// key is created at 1 with no TTL.
	Incr(ctx context.Context, key string) (int64, error)
	// Delete removes the given keys unconditionally.
	Delete(ctx context.Context, keys ...string) error
}
