package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/authcore-io/authcore/internal/lockout"
	"github.com/authcore-io/authcore/internal/rate"
	"github.com/authcore-io/authcore/internal/stores"
	"github.com/authcore-io/authcore/password"
	"github.com/authcore-io/authcore/token"
)

// Engine is the session orchestrator: it composes the rate limiter, the
// lockout guard, and the token authority into login, refresh-rotation,
// logout, and logout-all flows with a consistent ordering of checks.
//
// Every flow runs rate check → lockout check → token/credential work →
// counter update. The abuse counters sit in front of all cryptographic
// work so abusive callers are rejected cheaply. No transaction spans the
// three components: a partial update (token revoked but a counter not yet
// reset) self-heals on the next successful action or by TTL expiry.
type Engine struct {
	config     Config
	tokens     *token.Authority
	limiter    *rate.Limiter
	lockout    *lockout.Guard
	challenges *stores.ChallengeStore
	roles      RoleStore
	notifier   Notifier
	idp        IdentityProvider
	hasher     *password.Hasher
	audit      *auditDispatcher
	metrics    *metricsRecorder
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	e.audit.close()
}

// Counter keyspace: `{purpose}:{dimension}:{identity}`, e.g.
// `login:email:user@example.com`. Lockout counters live in a parallel
// `{purpose}_lock` keyspace so a rate-limit reset can never clear a
// brute-force record.
func counterKey(purpose, dimension, identity string) string {
	return purpose + ":" + dimension + ":" + identity
}

// allowRate records one request against key and reports the allow/deny
// decision. The rate limiter fails open: a counter-store outage is logged
// and the request allowed, so a store blip does not become a total auth
// outage. The lockout guard below deliberately does the opposite.
func (e *Engine) allowRate(ctx context.Context, key string) bool {
	allowed, err := e.limiter.RecordRequest(ctx, key)
	if err != nil {
		log.Printf("authcore: rate limiter unavailable, allowing request: %v", err)
		return true
	}
	return allowed
}

// checkLocked is the fail-closed counterpart: a store error surfaces as
// ErrStoreUnavailable and the caller denies.
func (e *Engine) checkLocked(ctx context.Context, key string) error {
	locked, err := e.lockout.IsLocked(ctx, key)
	if err != nil {
		log.Printf("authcore: lockout check failed: %v", err)
		return ErrStoreUnavailable
	}
	if locked {
		return ErrLockedOut
	}
	return nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, email, ip string) {
	if err := e.lockout.RecordFailure(ctx, counterKey("login_lock", "email", email)); err != nil {
		log.Printf("authcore: failed-attempt recording failed: %v", err)
	}
	if ip != "" {
		if err := e.lockout.RecordFailure(ctx, counterKey("login_lock", "ip", ip)); err != nil {
			log.Printf("authcore: failed-attempt recording failed: %v", err)
		}
	}
}

func (e *Engine) resetLoginFailures(ctx context.Context, email, ip string) {
	if err := e.lockout.Reset(ctx, counterKey("login_lock", "email", email)); err != nil {
		log.Printf("authcore: lockout reset failed: %v", err)
	}
	if ip != "" {
		if err := e.lockout.Reset(ctx, counterKey("login_lock", "ip", ip)); err != nil {
			log.Printf("authcore: lockout reset failed: %v", err)
		}
	}
}

func (e *Engine) mintPair(ctx context.Context, email, role string) (*TokenPair, error) {
	access, err := e.tokens.CreateAccessToken(email, role)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.CreateRefreshToken(ctx, email, role)
	if err != nil {
		if errors.Is(err, token.ErrUnavailable) {
			return nil, ErrStoreUnavailable
		}
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (e *Engine) emitAudit(eventType, email, ip string, success bool, cause error) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		EventType: eventType,
		Email:     email,
		IP:        ip,
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	e.audit.emit(event)
}

// Login authenticates an email/password pair and mints a fresh token pair.
// Counter ordering: fixed-window rate check per email and per IP, then
// lockout check on both dimensions, then the credential check. Failures
// feed the lockout counters; success resets them.
func (e *Engine) Login(ctx context.Context, email, pass, ip string) (*TokenPair, error) {
	if email == "" || pass == "" {
		return nil, ErrInvalidCredentials
	}
	if e.roles == nil {
		return nil, ErrRoleStoreRequired
	}

	if !e.allowRate(ctx, counterKey("login", "email", email)) ||
		(ip != "" && !e.allowRate(ctx, counterKey("login", "ip", ip))) {
		e.metrics.inc(MetricLoginRateLimited)
		e.emitAudit("login", email, ip, false, ErrRateLimited)
		return nil, ErrRateLimited
	}

	if err := e.checkLocked(ctx, counterKey("login_lock", "email", email)); err != nil {
		e.metrics.inc(MetricLoginLockedOut)
		e.emitAudit("login", email, ip, false, err)
		return nil, err
	}
	if ip != "" {
		if err := e.checkLocked(ctx, counterKey("login_lock", "ip", ip)); err != nil {
			e.metrics.inc(MetricLoginLockedOut)
			e.emitAudit("login", email, ip, false, err)
			return nil, err
		}
	}

	user, err := e.roles.FindByEmail(ctx, email)
	if err != nil {
		log.Printf("authcore: role store lookup failed: %v", err)
		return nil, ErrStoreUnavailable
	}
	if user == nil {
		e.recordLoginFailure(ctx, email, ip)
		e.metrics.inc(MetricLoginFailure)
		e.emitAudit("login", email, ip, false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		e.recordLoginFailure(ctx, email, ip)
		e.metrics.inc(MetricLoginFailure)
		e.emitAudit("login", email, ip, false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	e.resetLoginFailures(ctx, email, ip)

	pair, err := e.mintPair(ctx, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricLoginSuccess)
	e.emitAudit("login", email, ip, true, nil)
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// new access+refresh pair minted. After a successful rotation the old
// token never verifies again; revoke-then-mint ordering keeps the window
// in which both tokens are valid as small as the store allows.
func (e *Engine) Refresh(ctx context.Context, refreshToken, ip string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrTokenInvalid
	}
	if ip == "" {
		ip = "unknown"
	}
	lockKey := counterKey("refresh_lock", "ip", ip)

	if !e.allowRate(ctx, counterKey("refresh", "ip", ip)) {
		e.metrics.inc(MetricRefreshRateLimited)
		e.emitAudit("refresh", "", ip, false, ErrRateLimited)
		return nil, ErrRateLimited
	}

	if err := e.checkLocked(ctx, lockKey); err != nil {
		e.metrics.inc(MetricRefreshLockedOut)
		e.emitAudit("refresh", "", ip, false, err)
		return nil, err
	}

	// Reuse of a revoked token is the strongest abuse signal this flow
	// sees; it is audited separately from plain invalid tokens.
	revoked, err := e.tokens.IsRevoked(ctx, refreshToken)
	if err != nil {
		log.Printf("authcore: revocation check failed: %v", err)
		return nil, ErrStoreUnavailable
	}
	if revoked {
		e.metrics.inc(MetricRevokedTokenReuse)
		e.emitAudit("refresh", "", ip, false, errors.New("revoked token reuse"))
		if _, err := e.lockout.CheckAndRecord(ctx, lockKey, false); err != nil {
			log.Printf("authcore: failed-attempt recording failed: %v", err)
		}
		return nil, ErrTokenInvalid
	}

	claims, verifyErr := e.tokens.Verify(ctx, refreshToken)
	if errors.Is(verifyErr, token.ErrUnavailable) {
		return nil, ErrStoreUnavailable
	}

	allowed, err := e.lockout.CheckAndRecord(ctx, lockKey, verifyErr == nil)
	if err != nil {
		log.Printf("authcore: lockout update failed: %v", err)
		return nil, ErrStoreUnavailable
	}
	if !allowed {
		e.metrics.inc(MetricRefreshLockedOut)
		e.emitAudit("refresh", "", ip, false, ErrLockedOut)
		return nil, ErrLockedOut
	}
	if verifyErr != nil {
		e.metrics.inc(MetricRefreshFailure)
		e.emitAudit("refresh", "", ip, false, ErrTokenInvalid)
		return nil, ErrTokenInvalid
	}

	if _, err := e.tokens.Revoke(ctx, refreshToken, claims.Email()); err != nil {
		log.Printf("authcore: rotation revoke failed: %v", err)
		return nil, ErrStoreUnavailable
	}
	e.metrics.inc(MetricTokenRevoked)

	pair, err := e.mintPair(ctx, claims.Email(), claims.Role)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricRefreshSuccess)
	e.emitAudit("refresh", claims.Email(), ip, true, nil)
	return pair, nil
}

// Logout revokes the presented refresh token. Idempotent: revoking an
// already-revoked or expired token succeeds quietly. No counters are
// touched.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if _, err := e.tokens.Revoke(ctx, refreshToken, ""); err != nil {
		log.Printf("authcore: logout revoke failed: %v", err)
		return ErrStoreUnavailable
	}
	e.metrics.inc(MetricLogout)
	e.emitAudit("logout", "", "", true, nil)
	return nil
}

// LogoutAll revokes every active refresh token of the principal identified
// by the presented token and returns the number revoked. Other devices'
// local token copies become invalid on their next verification; they are
// not evicted from client memory.
func (e *Engine) LogoutAll(ctx context.Context, refreshToken string) (int, error) {
	claims, err := e.tokens.Verify(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrUnavailable) {
			return 0, ErrStoreUnavailable
		}
		return 0, ErrTokenInvalid
	}

	count, err := e.tokens.RevokeAllForUser(ctx, claims.Email())
	if err != nil {
		log.Printf("authcore: logout-all revoke failed: %v", err)
		return count, ErrStoreUnavailable
	}

	e.metrics.inc(MetricLogoutAll)
	e.emitAudit("logout_all", claims.Email(), "", true, nil)
	return count, nil
}

// VerifyAccess validates an access token and returns the principal it was
// minted for. Revocation is checked on every verification. A token carrying
// a role outside the configured set is invalid even with a good signature;
// this catches tokens minted under a stale role configuration.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := e.tokens.Verify(ctx, accessToken)
	if err != nil {
		if errors.Is(err, token.ErrUnavailable) {
			return nil, ErrStoreUnavailable
		}
		return nil, ErrTokenInvalid
	}
	if !e.config.knownRole(claims.Role) {
		return nil, ErrTokenInvalid
	}
	return &Principal{Email: claims.Email(), Role: claims.Role}, nil
}

// Signup registers a new principal under the default role and mints an
// initial token pair.
func (e *Engine) Signup(ctx context.Context, name, email, pass, ip string) (*TokenPair, error) {
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if e.roles == nil {
		return nil, ErrRoleStoreRequired
	}

	if !e.allowRate(ctx, counterKey("signup", "email", email)) ||
		(ip != "" && !e.allowRate(ctx, counterKey("signup", "ip", ip))) {
		e.emitAudit("signup", email, ip, false, ErrRateLimited)
		return nil, ErrRateLimited
	}

	existing, err := e.roles.FindByEmail(ctx, email)
	if err != nil {
		log.Printf("authcore: role store lookup failed: %v", err)
		return nil, ErrStoreUnavailable
	}
	if existing != nil {
		e.metrics.inc(MetricSignupDuplicate)
		e.emitAudit("signup", email, ip, false, ErrAccountExists)
		return nil, ErrAccountExists
	}

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return nil, ErrWeakPassword
		}
		return nil, err
	}

	user := &User{
		Name:         name,
		Email:        email,
		Role:         e.config.Roles.Default,
		PasswordHash: hash,
	}
	if err := e.roles.Create(ctx, user); err != nil {
		log.Printf("authcore: role store create failed: %v", err)
		return nil, ErrStoreUnavailable
	}

	pair, err := e.mintPair(ctx, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricSignupSuccess)
	e.emitAudit("signup", email, ip, true, nil)
	return pair, nil
}

// OAuthLogin exchanges a provider authorization code for a token pair. An
// unknown email is registered under the default role with no password and
// marked verified, since the provider vouches for the address.
func (e *Engine) OAuthLogin(ctx context.Context, code, ip string) (*TokenPair, error) {
	if e.idp == nil {
		return nil, ErrIdentityProviderRequired
	}
	if e.roles == nil {
		return nil, ErrRoleStoreRequired
	}

	if ip != "" && !e.allowRate(ctx, counterKey("oauth", "ip", ip)) {
		return nil, ErrRateLimited
	}

	identity, err := e.idp.Authenticate(ctx, code)
	if err != nil || identity == nil || identity.Email == "" {
		e.metrics.inc(MetricOAuthLoginFailure)
		e.emitAudit("oauth_login", "", ip, false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	user, err := e.roles.FindByEmail(ctx, identity.Email)
	if err != nil {
		log.Printf("authcore: role store lookup failed: %v", err)
		return nil, ErrStoreUnavailable
	}
	if user == nil {
		user = &User{
			Name:     identity.Name,
			Email:    identity.Email,
			Role:     e.config.Roles.Default,
			Verified: true,
		}
		if err := e.roles.Create(ctx, user); err != nil {
			log.Printf("authcore: role store create failed: %v", err)
			return nil, ErrStoreUnavailable
		}
	}

	pair, err := e.mintPair(ctx, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricOAuthLoginSuccess)
	e.emitAudit("oauth_login", user.Email, ip, true, nil)
	return pair, nil
}
