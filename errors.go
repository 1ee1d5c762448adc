package authcore

import "errors"

var (
	// ErrInvalidCredentials covers both unknown identities and wrong
	// passwords. The two cases are intentionally indistinguishable to
	// prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenInvalid covers malformed, expired, wrong-signature, and
	// revoked tokens. Callers never learn which.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrRateLimited indicates the fixed-window request budget for the
	// caller's key is exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrLockedOut indicates the failure counter for the caller's key has
	// reached the lockout threshold.
	ErrLockedOut = errors.New("locked out")

	// ErrStoreUnavailable indicates the shared counter/token store could not
	// be reached on a security-critical path.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAccountExists is returned by Signup for an already-registered email.
	ErrAccountExists = errors.New("account already exists")

	// ErrWeakPassword is returned when a password fails the strength policy.
	ErrWeakPassword = errors.New("password too weak")

	// ErrChallengeInvalid covers unknown, expired, and already-consumed
	// password-reset and account-verification tokens.
	ErrChallengeInvalid = errors.New("invalid challenge token")

	// ErrRoleStoreRequired is returned by flows that need principal records
	// when the engine was built without a RoleStore.
	ErrRoleStoreRequired = errors.New("role store not configured")

	// ErrNotifierRequired is returned by flows that send mail when the
	// engine was built without a Notifier.
	ErrNotifierRequired = errors.New("notifier not configured")

	// ErrIdentityProviderRequired is returned by OAuthLogin when the engine
	// was built without an IdentityProvider.
	ErrIdentityProviderRequired = errors.New("identity provider not configured")
)
