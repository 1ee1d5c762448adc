package authcore

import "context"

// Principal is the identity carried inside every signed token: a unique
// email plus one role from the configured closed set.
type Principal struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenPair is the result of login, signup, and refresh rotation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// User is the externally owned principal record. The engine never persists
// it; it only reads and writes through the RoleStore.
type User struct {
	Name         string
	Email        string
	Role         string
	PasswordHash string
	Verified     bool
}

// RoleStore is the abstract persistence boundary for principal records,
// keyed by email across all roles.
//
// FindByEmail returns (nil, nil) when no record exists; errors are reserved
// for backend faults.
type RoleStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	SetVerified(ctx context.Context, email string) error
}

// Identity is what an OAuth2 identity provider vouches for after a
// completed handshake.
type Identity struct {
	Email string
	Name  string
}

// IdentityProvider abstracts the OAuth2 provider handshake. Authenticate
// exchanges an authorization code for a verified identity.
type IdentityProvider interface {
	Authenticate(ctx context.Context, code string) (*Identity, error)
}

// Notifier abstracts outbound email delivery for challenge tokens.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendAccountVerification(ctx context.Context, email, token string) error
}
