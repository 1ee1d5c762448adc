package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authcore-io/authcore/internal/kv"
	"github.com/authcore-io/authcore/internal/lockout"
	"github.com/authcore-io/authcore/internal/rate"
	"github.com/authcore-io/authcore/internal/stores"
	"github.com/authcore-io/authcore/password"
	"github.com/authcore-io/authcore/token"
)

// Builder assembles an [Engine]. Redis is the only hard dependency; role
// store, notifier, and identity provider are optional and the flows that
// need them fail with a configuration sentinel when absent.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	roles     RoleStore
	notifier  Notifier
	idp       IdentityProvider
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithRoleStore(store RoleStore) *Builder {
	b.roles = store
	return b
}

func (b *Builder) WithNotifier(notifier Notifier) *Builder {
	b.notifier = notifier
	return b
}

func (b *Builder) WithIdentityProvider(idp IdentityProvider) *Builder {
	b.idp = idp
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine's time source. Tests use this to drive
// expiry without sleeping.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine. A builder can be
// used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, err
	}

	authority, err := token.New(b.redis, token.Config{
		Secret:     b.config.JWT.Secret,
		Algorithm:  b.config.JWT.Algorithm,
		AccessTTL:  b.config.JWT.AccessTTL,
		RefreshTTL: b.config.JWT.RefreshTTL,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	counters := kv.NewRedisStore(b.redis)

	engine := &Engine{
		config: b.config,
		tokens: authority,
		limiter: rate.New(counters, rate.Config{
			MaxRequests: b.config.RateLimit.MaxRequests,
			Window:      b.config.RateLimit.Window,
		}),
		lockout: lockout.New(counters, lockout.Config{
			MaxFailures: b.config.Lockout.MaxFailures,
			Duration:    b.config.Lockout.Duration,
		}),
		challenges: stores.NewChallengeStore(b.redis),
		roles:      b.roles,
		notifier:   b.notifier,
		idp:        b.idp,
		hasher:     hasher,
		audit:      newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:    newMetricsRecorder(b.config.Metrics),
	}

	b.built = true
	return engine, nil
}
