package authcore

import (
	"errors"
	"time"

	"github.com/authcore-io/authcore/password"
)

// Config is the full engine configuration. Zero values are not usable;
// start from the defaults via [New] and override what you need, then let
// [Builder.Build] run [Config.Validate].
type Config struct {
	JWT           JWTConfig
	RateLimit     RateLimitConfig
	Lockout       LockoutConfig
	Roles         RolesConfig
	Password      password.Config
	PasswordReset ChallengeConfig
	Verification  ChallengeConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

// JWTConfig controls token minting and verification.
type JWTConfig struct {
	Secret     []byte
	Algorithm  string // "HS256" (default), "HS384", "HS512"
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// RateLimitConfig tunes the fixed-window request counters that sit in
// front of every sensitive flow.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// LockoutConfig tunes the brute-force failure counters.
type LockoutConfig struct {
	MaxFailures int
	Duration    time.Duration
}

// RolesConfig declares the closed role set. Names is resolved once at build
// time; tokens carrying a role outside the set are never minted.
type RolesConfig struct {
	Names   []string
	Default string
}

// ChallengeConfig controls one-shot challenge tokens (password reset,
// account verification).
type ChallengeConfig struct {
	TTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig gates the in-process atomic counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the library defaults. The JWT secret is empty and
// must be set before the config validates.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Algorithm:  "HS256",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 10,
			Window:      time.Minute,
		},
		Lockout: LockoutConfig{
			MaxFailures: 5,
			Duration:    15 * time.Minute,
		},
		Roles: RolesConfig{
			Names:   []string{"admin", "member"},
			Default: "member",
		},
		Password: password.Config{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		PasswordReset: ChallengeConfig{
			TTL: 15 * time.Minute,
		},
		Verification: ChallengeConfig{
			TTL: 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.Roles.Names = append([]string(nil), cfg.Roles.Names...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration problem found, or nil.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 256 bits")
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
		// valid
	default:
		return errors.New("unsupported JWT signing algorithm")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}

	if c.RateLimit.MaxRequests <= 0 {
		return errors.New("RateLimit MaxRequests must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}

	if c.Lockout.MaxFailures <= 0 {
		return errors.New("Lockout MaxFailures must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	if len(c.Roles.Names) == 0 {
		return errors.New("Roles Names must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Roles.Names))
	for _, name := range c.Roles.Names {
		if name == "" {
			return errors.New("Roles Names must not contain empty names")
		}
		if _, dup := seen[name]; dup {
			return errors.New("Roles Names must be unique")
		}
		seen[name] = struct{}{}
	}
	if _, ok := seen[c.Roles.Default]; !ok {
		return errors.New("Roles Default must be one of Roles Names")
	}

	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}
	if c.Verification.TTL <= 0 {
		return errors.New("Verification TTL must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

// knownRole reports whether name belongs to the configured role set.
func (c *Config) knownRole(name string) bool {
	for _, n := range c.Roles.Names {
		if n == name {
			return true
		}
	}
	return false
}
