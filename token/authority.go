// Package token implements the token authority: minting, verification, and
// revocation of signed JWT access and refresh tokens.
//
// A token moves through Unissued → Valid → Expired or Revoked. Expired and
// Revoked are both terminal and both verify as invalid; they are
// distinguished only for observability. Revocation entries live in Redis
// under `revoked:{token}` with TTL equal to the token's remaining lifetime,
// so an entry never disappears before the token it blocks would have
// expired on its own. Refresh tokens are additionally tracked in a
// per-email set `user:{email}:refresh_tokens` to support logout-all.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalid covers malformed, expired, wrong-signature, and revoked
	// tokens. Cryptographic detail never escapes this package.
	ErrInvalid = errors.New("invalid token")
	// ErrUnavailable indicates the revocation/active-set backend is
	// unreachable. Verification fails closed on it.
	ErrUnavailable = errors.New("token backend unavailable")
)

// Config holds the signing material and lifetimes for the authority.
type Config struct {
	Secret     []byte
	Algorithm  string // "HS256", "HS384", "HS512"
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now is the time source for minting and expiry checks. Defaults to
	// time.Now; tests inject a fake clock.
	Now func() time.Time
}

// Claims is the signed payload: subject email, role, and the registered
// expiry/issued-at instants. The jti makes back-to-back mints for the same
// principal distinct strings.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Email returns the subject claim.
func (c *Claims) Email() string {
	return c.Subject
}

// Authority mints, verifies, and revokes tokens. Safe for concurrent use.
type Authority struct {
	redis  redis.UniversalClient
	config Config
	method jwt.SigningMethod
	now    func() time.Time
}

// New validates cfg and creates an [Authority] backed by the given Redis
// client.
func New(redisClient redis.UniversalClient, cfg Config) (*Authority, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token authority requires a signing secret")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be > 0")
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Authority{
		redis:  redisClient,
		config: cfg,
		method: method,
		now:    now,
	}, nil
}

func revocationKey(token string) string {
	return "revoked:" + token
}

func activeSetKey(email string) string {
	return "user:" + email + ":refresh_tokens"
}

// CreateAccessToken mints a short-lived access token. Pure: no storage side
// effect, access tokens are not tracked individually.
func (a *Authority) CreateAccessToken(email, role string) (string, error) {
	return a.mint(email, role, a.config.AccessTTL)
}

// CreateRefreshToken mints a long-lived refresh token and registers it in
// the subject's active-refresh set. The set key's TTL is pushed out to the
// refresh lifetime on every mint so the set never outlives its newest
// member.
func (a *Authority) CreateRefreshToken(ctx context.Context, email, role string) (string, error) {
	token, err := a.mint(email, role, a.config.RefreshTTL)
	if err != nil {
		return "", err
	}

	key := activeSetKey(email)
	if err := a.redis.SAdd(ctx, key, token).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := a.redis.Expire(ctx, key, a.config.RefreshTTL).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return token, nil
}

func (a *Authority) mint(email, role string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(a.method, claims).SignedString(a.config.Secret)
}

// Verify checks signature, expiry, and revocation-set membership. All
// cryptographic failures collapse to [ErrInvalid]; a revoked token is
// invalid even when signature and expiry pass. Revocation is checked on
// every verification, not only at use time, so the result fails closed when
// the revocation backend is down.
func (a *Authority) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := a.parse(tokenStr, false)
	if err != nil {
		return nil, ErrInvalid
	}

	revoked, err := a.IsRevoked(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalid
	}

	return claims, nil
}

// Revoke writes a revocation entry for tokenStr with TTL equal to its
// remaining lifetime and removes it from the subject's active-refresh set.
// The decode is permissive about expiry: revoking an already-expired token
// is a harmless no-op reported as (false, nil), never an error. When email
// is empty the subject claim is used for the active-set bookkeeping.
func (a *Authority) Revoke(ctx context.Context, tokenStr, email string) (bool, error) {
	claims, err := a.parse(tokenStr, true)
	if err != nil {
		return false, nil
	}
	if claims.ExpiresAt == nil {
		return false, nil
	}

	remaining := claims.ExpiresAt.Time.Sub(a.now())
	if remaining <= 0 {
		// Already expired: verification would reject it on the expiry
		// check anyway, so there is nothing to retain.
		return false, nil
	}

	if err := a.redis.Set(ctx, revocationKey(tokenStr), "1", remaining).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if email == "" {
		email = claims.Subject
	}
	if email != "" {
		if err := a.redis.SRem(ctx, activeSetKey(email), tokenStr).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return true, nil
}

// IsRevoked reports whether a revocation entry exists for tokenStr.
func (a *Authority) IsRevoked(ctx context.Context, tokenStr string) (bool, error) {
	n, err := a.redis.Exists(ctx, revocationKey(tokenStr)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// ActiveRefreshTokens returns the outstanding refresh tokens for email. An
// absent set yields an empty slice, not an error.
func (a *Authority) ActiveRefreshTokens(ctx context.Context, email string) ([]string, error) {
	members, err := a.redis.SMembers(ctx, activeSetKey(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return members, nil
}

// RevokeAllForUser revokes every token in email's active-refresh set and
// returns the number actually revoked. Tokens that fail to decode or have
// already expired are skipped, not counted. The set itself is cleared
// afterwards so stale expired members do not linger.
func (a *Authority) RevokeAllForUser(ctx context.Context, email string) (int, error) {
	tokens, err := a.ActiveRefreshTokens(ctx, email)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, t := range tokens {
		ok, err := a.Revoke(ctx, t, email)
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		}
	}

	if err := a.redis.Del(ctx, activeSetKey(email)).Err(); err != nil {
		return revoked, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return revoked, nil
}

// parse verifies the signature and, unless permissive, the registered
// claims (expiry included). Permissive mode still rejects forged
// signatures; it only tolerates expiry, which is what Revoke needs.
func (a *Authority) parse(tokenStr string, permissive bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if permissive {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
