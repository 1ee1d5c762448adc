package authcore

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestDefaultConfigValidatesWithSecret(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with a secret must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing secret", func(c *Config) { c.JWT.Secret = nil }, "Secret is required"},
		{"short secret", func(c *Config) { c.JWT.Secret = []byte("too-short") }, "256 bits"},
		{"bad algorithm", func(c *Config) { c.JWT.Algorithm = "none" }, "algorithm"},
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }, "AccessTTL"},
		{"refresh shorter than access", func(c *Config) { c.JWT.RefreshTTL = time.Minute }, "RefreshTTL"},
		{"zero rate budget", func(c *Config) { c.RateLimit.MaxRequests = 0 }, "MaxRequests"},
		{"zero rate window", func(c *Config) { c.RateLimit.Window = 0 }, "Window"},
		{"zero lockout threshold", func(c *Config) { c.Lockout.MaxFailures = 0 }, "MaxFailures"},
		{"zero lockout duration", func(c *Config) { c.Lockout.Duration = 0 }, "Duration"},
		{"no roles", func(c *Config) { c.Roles.Names = nil }, "Names"},
		{"empty role name", func(c *Config) { c.Roles.Names = []string{"admin", ""} }, "empty"},
		{"duplicate role", func(c *Config) { c.Roles.Names = []string{"admin", "admin"} }, "unique"},
		{"default outside set", func(c *Config) { c.Roles.Default = "superuser" }, "Default"},
		{"zero reset ttl", func(c *Config) { c.PasswordReset.TTL = 0 }, "PasswordReset"},
		{"zero verification ttl", func(c *Config) { c.Verification.TTL = 0 }, "Verification"},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, "BufferSize"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %q", tc.wantErr, err)
			}
		})
	}
}

func TestCloneConfigDetachesMutableFields(t *testing.T) {
	original := validTestConfig()
	cloned := cloneConfig(original)

	cloned.JWT.Secret[0] ^= 0xFF
	cloned.Roles.Names[0] = "changed"

	if original.JWT.Secret[0] == cloned.JWT.Secret[0] {
		t.Fatal("secret must be copied, not shared")
	}
	if original.Roles.Names[0] == "changed" {
		t.Fatal("role names must be copied, not shared")
	}
}

func TestKnownRole(t *testing.T) {
	cfg := validTestConfig()
	if !cfg.knownRole("admin") {
		t.Fatal("admin should be known")
	}
	if cfg.knownRole("superuser") {
		t.Fatal("superuser should not be known")
	}
}
