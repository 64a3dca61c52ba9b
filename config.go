package flockgate

import (
	"errors"
	"time"

	"github.com/flockhq/flockgate/route"
)

// Config defines the tunable surface of a [Gate]. Configure once before
// [Builder.Build]; treat as immutable afterwards.
type Config struct {
	// ContextID identifies the browser context this gate serves; it keys
	// the persisted continuity token.
	ContextID string

	Session   SessionConfig
	Routes    RoutesConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls continuity-token persistence.
type SessionConfig struct {
	RedisPrefix string
	// DefaultTTL bounds a session whose provider token carries no expiry.
	// Zero means such sessions never expire locally.
	DefaultTTL time.Duration
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig is the static guard policy, loaded once at startup.
type RoutesConfig struct {
	Rules []route.Rule
	// FallbackRedirect is where paths outside every rule land; the public
	// root by convention.
	FallbackRedirect string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls the sign-in attempt throttle.
type RateLimitConfig struct {
	Enabled          bool
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls asynchronous audit event dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the portal's stock configuration: public landing and
// login, member dashboard, admin area, everything else redirected to the
// public root.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "fg",
			DefaultTTL:  24 * time.Hour,
		},
		Routes: RoutesConfig{
			Rules: []route.Rule{
				{PathPrefix: "/", RequiredRole: route.RequirePublic},
				{PathPrefix: "/login", RequiredRole: route.RequirePublic},
				{PathPrefix: "/dashboard", RequiredRole: route.RequireMember, RedirectOnDeny: "/"},
				{PathPrefix: "/admin", RequiredRole: route.RequireAdmin, RedirectOnDeny: "/"},
			},
			FallbackRedirect: "/",
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			EnableIPThrottle: true,
			MaxAttempts:      10,
			Cooldown:         15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func validateConfig(cfg Config) error {
	var errs []error

	if cfg.ContextID == "" {
		errs = append(errs, errors.New("config: ContextID required"))
	}
	if len(cfg.Routes.Rules) == 0 {
		errs = append(errs, errors.New("config: at least one route rule required"))
	}
	if cfg.Routes.FallbackRedirect == "" {
		errs = append(errs, errors.New("config: FallbackRedirect required"))
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.MaxAttempts <= 0 {
			errs = append(errs, errors.New("config: RateLimit.MaxAttempts must be positive"))
		}
		if cfg.RateLimit.Cooldown <= 0 {
			errs = append(errs, errors.New("config: RateLimit.Cooldown must be positive"))
		}
	}
	if cfg.Session.DefaultTTL < 0 {
		errs = append(errs, errors.New("config: Session.DefaultTTL must not be negative"))
	}

	return errors.Join(errs...)
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Routes.Rules = make([]route.Rule, len(cfg.Routes.Rules))
	copy(out.Routes.Rules, cfg.Routes.Rules)
	return out
}
