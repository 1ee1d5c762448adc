package lockout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/authcore-io/authcore/internal/kv"
)

func newTestGuard(t *testing.T, cfg Config) (*Guard, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(kv.NewRedisStore(rdb), cfg), mr
}

func TestLocksAtThreshold(t *testing.T) {
	guard, _ := newTestGuard(t, Config{MaxFailures: 3, Duration: 15 * time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := guard.RecordFailure(ctx, "login_lock:email:a@x.io"); err != nil {
			t.Fatalf("record failure %d: %v", i+1, err)
		}
		locked, err := guard.IsLocked(ctx, "login_lock:email:a@x.io")
		if err != nil {
			t.Fatalf("is locked: %v", err)
		}
		if locked {
			t.Fatalf("locked after %d failures, threshold is 3", i+1)
		}
	}

	if err := guard.RecordFailure(ctx, "login_lock:email:a@x.io"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	locked, err := guard.IsLocked(ctx, "login_lock:email:a@x.io")
	if err != nil {
		t.Fatalf("is locked: %v", err)
	}
	if !locked {
		t.Fatal("expected lock at threshold")
	}
}

func TestResetClearsLock(t *testing.T) {
	guard, _ := newTestGuard(t, Config{MaxFailures: 1, Duration: time.Minute})
	ctx := context.Background()

	guard.RecordFailure(ctx, "k")
	if locked, _ := guard.IsLocked(ctx, "k"); !locked {
		t.Fatal("expected lock")
	}

	if err := guard.Reset(ctx, "k"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if locked, _ := guard.IsLocked(ctx, "k"); locked {
		t.Fatal("expected unlock after reset")
	}
}

func TestWindowAnchoredToFirstFailure(t *testing.T) {
	guard, mr := newTestGuard(t, Config{MaxFailures: 2, Duration: time.Minute})
	ctx := context.Background()

	guard.RecordFailure(ctx, "k")
	mr.FastForward(30 * time.Second)

	// A second failure must not push the expiry out.
	guard.RecordFailure(ctx, "k")
	if locked, _ := guard.IsLocked(ctx, "k"); !locked {
		t.Fatal("expected lock after two failures")
	}

	mr.FastForward(31 * time.Second)

	locked, err := guard.IsLocked(ctx, "k")
	if err != nil {
		t.Fatalf("is locked: %v", err)
	}
	if locked {
		t.Fatal("lock should expire one duration after the first failure")
	}
}

func TestCheckAndRecordOffByOne(t *testing.T) {
	guard, _ := newTestGuard(t, Config{MaxFailures: 2, Duration: time.Minute})
	ctx := context.Background()

	// Failures below and at the threshold are themselves allowed through.
	for i := 0; i < 2; i++ {
		allowed, err := guard.CheckAndRecord(ctx, "k", false)
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("attempt %d: expected allow", i+1)
		}
	}

	// The next attempt sees the lock.
	allowed, err := guard.CheckAndRecord(ctx, "k", false)
	if err != nil {
		t.Fatalf("locked attempt: %v", err)
	}
	if allowed {
		t.Fatal("expected deny once the threshold is reached")
	}
}

func TestSuccessCannotClearExistingLock(t *testing.T) {
	guard, _ := newTestGuard(t, Config{MaxFailures: 1, Duration: time.Minute})
	ctx := context.Background()

	guard.RecordFailure(ctx, "k")

	allowed, err := guard.CheckAndRecord(ctx, "k", true)
	if err != nil {
		t.Fatalf("check and record: %v", err)
	}
	if allowed {
		t.Fatal("a success against a locked key must be denied")
	}
	if locked, _ := guard.IsLocked(ctx, "k"); !locked {
		t.Fatal("lock must survive the denied success")
	}
}

func TestSuccessResetsBelowThreshold(t *testing.T) {
	guard, _ := newTestGuard(t, Config{MaxFailures: 3, Duration: time.Minute})
	ctx := context.Background()

	guard.RecordFailure(ctx, "k")
	guard.RecordFailure(ctx, "k")

	allowed, err := guard.CheckAndRecord(ctx, "k", true)
	if err != nil || !allowed {
		t.Fatalf("expected allowed success, got allowed=%v err=%v", allowed, err)
	}

	// Counter is back to zero: three fresh failures are needed to lock.
	guard.RecordFailure(ctx, "k")
	guard.RecordFailure(ctx, "k")
	if locked, _ := guard.IsLocked(ctx, "k"); locked {
		t.Fatal("expected counter to have been reset by the success")
	}
}

func TestStoreDownSurfacesError(t *testing.T) {
	guard, mr := newTestGuard(t, Config{MaxFailures: 1, Duration: time.Minute})
	mr.Close()

	_, err := guard.IsLocked(context.Background(), "k")
	if !errors.Is(err, kv.ErrUnavailable) {
		t.Fatalf("expected kv.ErrUnavailable, got %v", err)
	}
}
