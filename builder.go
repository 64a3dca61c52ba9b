package flockgate

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/flockhq/flockgate/internal/rate"
	"github.com/flockhq/flockgate/route"
	"github.com/flockhq/flockgate/session"
)

// Builder assembles a [Gate]. Configure with the With* methods, then call
// [Builder.Build] exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	provider  IdentityProvider
	auditSink AuditSink

	built bool
}

// New returns a [Builder] seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithContextID sets the browser-context identifier that keys the persisted
// continuity token.
func (b *Builder) WithContextID(id string) *Builder {
	b.config.ContextID = id
	return b
}

// WithRedis sets the Redis client backing token persistence and the sign-in
// throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithProvider sets the identity provider that verifies credentials.
func (b *Builder) WithProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithRoutes replaces the guard rules while keeping the rest of the config.
func (b *Builder) WithRoutes(rules []route.Rule, fallbackRedirect string) *Builder {
	b.config.Routes = RoutesConfig{Rules: rules, FallbackRedirect: fallbackRedirect}
	return b
}

// WithAuditSink sets the sink receiving audit events. Defaults to a no-op
// sink when auditing is enabled without one.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and wires the gate. The builder cannot
// be reused afterwards.
func (b *Builder) Build() (*Gate, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.provider == nil {
		return nil, errors.New("identity provider required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	table, err := route.NewTable(b.config.Routes.Rules, route.Rule{
		RedirectOnDeny: b.config.Routes.FallbackRedirect,
	})
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if b.config.RateLimit.Enabled {
		limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle: b.config.RateLimit.EnableIPThrottle,
			MaxAttempts:      b.config.RateLimit.MaxAttempts,
			Cooldown:         b.config.RateLimit.Cooldown,
		})
	}

	g := &Gate{
		config:   b.config,
		provider: b.provider,
		routes:   table,
		tokens:   session.NewStore(b.redis, b.config.Session.RedisPrefix),
		limiter:  limiter,
		audit:    newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:  NewMetrics(b.config.Metrics),
		state:    StateAnonymous,
		subs:     make(map[uint64]chan StateChange),
	}

	b.built = true
	return g, nil
}
