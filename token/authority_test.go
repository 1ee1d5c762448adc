package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestAuthority(t *testing.T) (*Authority, *fakeClock, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := &fakeClock{now: time.Now()}
	authority, err := New(rdb, Config{
		Secret:     testSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("authority build failed: %v", err)
	}

	return authority, clock, mr
}

func TestAccessTokenRoundTrip(t *testing.T) {
	authority, _, _ := newTestAuthority(t)
	ctx := context.Background()

	tok, err := authority.CreateAccessToken("alice@x.io", "member")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	claims, err := authority.Verify(ctx, tok)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.Email() != "alice@x.io" {
		t.Fatalf("expected alice@x.io, got %q", claims.Email())
	}
	if claims.Role != "member" {
		t.Fatalf("expected member role, got %q", claims.Role)
	}
}

func TestBackToBackMintsAreDistinct(t *testing.T) {
	authority, _, _ := newTestAuthority(t)

	a, err := authority.CreateAccessToken("alice@x.io", "member")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	b, err := authority.CreateAccessToken("alice@x.io", "member")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if a == b {
		t.Fatal("same-instant mints for the same principal must differ")
	}
}

func TestExpiredTokenInvalid(t *testing.T) {
	authority, clock, _ := newTestAuthority(t)
	ctx := context.Background()

	tok, err := authority.CreateAccessToken("alice@x.io", "member")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	clock.Advance(16 * time.Minute)

	if _, err := authority.Verify(ctx, tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for expired token, got %v", err)
	}
}

func TestGarbageAndForgedTokensInvalid(t *testing.T) {
	authority, _, _ := newTestAuthority(t)
	ctx := context.Background()

	if _, err := authority.Verify(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}

	other, err := New(authority.redis, Config{
		Secret:     []byte("another-secret-another-secret-32"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("authority build failed: %v", err)
	}
	forged, err := other.CreateAccessToken("alice@x.io", "admin")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := authority.Verify(ctx, forged); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for wrong signature, got %v", err)
	}
}

func TestRevokeMakesTokenInvalid(t *testing.T) {
	authority, _, _ := newTestAuthority(t)
	ctx := context.Background()

	tok, err := authority.CreateRefreshToken(ctx, "alice@x.io", "member")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	revoked, err := authority.Revoke(ctx, tok, "alice@x.io")
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if !revoked {
		t.Fatal("expected live token to be revoked")
	}

	if _, err := authority.Verify(ctx, tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid after revocation, got %v", err)
	}

	is, err := authority.IsRevoked(ctx, tok)
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !is {
		t.Fatal("expected revocation entry")
	}
}

func TestRevokeExpiredTokenIsNoOp(t *testing.T) {
	authority, clock, _ := newTestAuthority(t)
	ctx := context.Background()

	tok, err := authority.CreateAccessToken("alice@x.io", "member")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	clock.Advance(16 * time.Minute)

	revoked, err := authority.Revoke(ctx, tok, "alice@x.io")
	if err != nil {
		t.Fatalf("revoking an expired token must not error: %v", err)
	}
	if revoked {
		t.Fatal("expected no-op for expired token")
	}

	is, err := authority.IsRevoked(ctx, tok)
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if is {
		t.Fatal("no revocation entry should be written for an expired token")
	}
}

func TestRevokeGarbageIsNoOp(t *testing.T) {
	authority, _, _ := newTestAuthority(t)

	revoked, err := authority.Revoke(context.Background(), "not-a-jwt", "")
	if err != nil {
		t.Fatalf("expected quiet no-op, got %v", err)
	}
	if revoked {
		t.Fatal("garbage cannot be revoked")
	}
}

func TestRefreshTokensTrackedInActiveSet(t *testing.T) {
	authority, _, _ := newTestAuthority(t)
	ctx := context.Background()

	tok, err := authority.CreateRefreshToken(ctx, "alice@x.io", "member")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	active, err := authority.ActiveRefreshTokens(ctx, "alice@x.io")
	if err != nil {
		t.Fatalf("active tokens: %v", err)
	}
	if len(active) != 1 || active[0] != tok {
		t.Fatalf("expected [%s], got %v", tok, active)
	}

	if _, err := authority.Revoke(ctx, tok, "alice@x.io"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	active, err = authority.ActiveRefreshTokens(ctx, "alice@x.io")
	if err != nil {
		t.Fatalf("active tokens: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected empty set after revoke, got %v", active)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	authority, clock, _ := newTestAuthority(t)
	ctx := context.Background()

	first, err := authority.CreateRefreshToken(ctx, "alice@x.io", "member")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	clock.Advance(time.Second)
	second, err := authority.CreateRefreshToken(ctx, "alice@x.io", "member")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := authority.CreateRefreshToken(ctx, "bob@x.io", "member"); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	count, err := authority.RevokeAllForUser(ctx, "alice@x.io")
	if err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 revoked, got %d", count)
	}

	for _, tok := range []string{first, second} {
		if _, err := authority.Verify(ctx, tok); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid after revoke-all, got %v", err)
		}
	}

	active, err := authority.ActiveRefreshTokens(ctx, "alice@x.io")
	if err != nil {
		t.Fatalf("active tokens: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected cleared set, got %v", active)
	}

	// Bob is untouched.
	active, err = authority.ActiveRefreshTokens(ctx, "bob@x.io")
	if err != nil {
		t.Fatalf("active tokens: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected bob's token to survive, got %v", active)
	}
}

func TestRevokeAllForUnknownUserIsZero(t *testing.T) {
	authority, _, _ := newTestAuthority(t)

	count, err := authority.RevokeAllForUser(context.Background(), "nobody@x.io")
	if err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestVerifyFailsClosedWhenStoreDown(t *testing.T) {
	authority, _, mr := newTestAuthority(t)

	tok, err := authority.CreateAccessToken("alice@x.io", "member")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	mr.Close()

	_, err = authority.Verify(context.Background(), tok)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRejectsUnknownAlgorithm(t *testing.T) {
	_, err := New(nil, Config{Secret: testSecret, Algorithm: "RS256", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	if err == nil {
		t.Fatal("expected error for asymmetric algorithm")
	}
}
