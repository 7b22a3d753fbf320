// Package config loads so-auth settings from defaults, an optional config
// file and SO_AUTH_* environment variables, resolving secret references in
// the values that may carry credentials.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/blankcnvs/so-auth/auth"
	"github.com/blankcnvs/so-auth/cache"
	"github.com/blankcnvs/so-auth/observe"
	"github.com/blankcnvs/so-auth/resilience"
	"github.com/blankcnvs/so-auth/secret"
	"github.com/blankcnvs/so-auth/session"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SO_AUTH"

// Config is the resolved configuration of one so-auth process.
type Config struct {
	Port        int
	ServiceName string
	Version     string

	Cache cache.Policy
	// CaseFold makes identities differing only in case or surrounding
	// whitespace share a cache slot. Off by default.
	CaseFold bool

	Login   session.LoginConfig
	Guard   GuardConfig
	Auth    auth.Config
	Observe observe.Config
}

// GuardConfig bounds how hard the site's login page is driven.
type GuardConfig struct {
	MaxFailures   int
	ResetTimeout  time.Duration
	MaxConcurrent int
	QueueWait     time.Duration
	Rate          float64
	Burst         int
	Timeout       time.Duration
}

// Executor builds the resilience executor for logins. isFailure decides
// which errors count against the circuit breaker.
func (g GuardConfig) Executor(isFailure func(error) bool) *resilience.Executor {
	return resilience.NewExecutor(
		resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        g.Rate,
			Burst:       g.Burst,
			WaitOnLimit: true,
			MaxWait:     g.QueueWait,
		})),
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: g.MaxConcurrent,
			MaxWait:       g.QueueWait,
		})),
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  g.MaxFailures,
			ResetTimeout: g.ResetTimeout,
			IsFailure:    isFailure,
		})),
		resilience.WithTimeout(g.Timeout),
	)
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	login := session.DefaultLoginConfig()
	policy := cache.DefaultPolicy()

	v.SetDefault("port", 3000)
	v.SetDefault("service.name", "sophia")

	v.SetDefault("cache.ttl", policy.TTL)
	v.SetDefault("cache.single_flight", policy.SingleFlight)
	v.SetDefault("cache.sweep_interval", policy.SweepInterval)
	v.SetDefault("cache.case_fold", false)

	v.SetDefault("login.login_url", login.LoginURL)
	v.SetDefault("login.home_url", login.HomeURL)
	v.SetDefault("login.identity_field", login.IdentityField)
	v.SetDefault("login.secret_field", login.SecretField)
	v.SetDefault("login.session_cookie", login.SessionCookie)
	v.SetDefault("login.auth_cookie", login.AuthCookie)
	v.SetDefault("login.user_agent", login.UserAgent)
	v.SetDefault("login.reject_marker", login.RejectMarker)
	v.SetDefault("login.timeout", login.Timeout)
	v.SetDefault("login.settle_delay", login.SettleDelay)
	v.SetDefault("login.home_settle_delay", login.HomeSettleDelay)

	v.SetDefault("guard.max_failures", 5)
	v.SetDefault("guard.reset_timeout", 30*time.Second)
	v.SetDefault("guard.max_concurrent", 4)
	v.SetDefault("guard.queue_wait", 30*time.Second)
	v.SetDefault("guard.rate", 1.0)
	v.SetDefault("guard.burst", 5)
	v.SetDefault("guard.timeout", 90*time.Second)

	v.SetDefault("auth.api_keys", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")

	v.SetDefault("secrets.dir", "")

	v.SetDefault("observe.tracing.enabled", false)
	v.SetDefault("observe.tracing.exporter", "none")
	v.SetDefault("observe.tracing.sample_pct", 1.0)
	v.SetDefault("observe.metrics.enabled", true)
	v.SetDefault("observe.metrics.exporter", "prometheus")
	v.SetDefault("observe.logging.enabled", true)
	v.SetDefault("observe.logging.level", "info")
}

// New returns a viper instance with defaults and environment bindings. A
// non-empty file is read as well; its format follows the extension.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Plain PORT is what most hosting platforms set.
	if err := v.BindEnv("port", EnvPrefix+"_PORT", "PORT"); err != nil {
		return nil, err
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	return v, nil
}

// Load builds a Config from v. Credential-bearing values are resolved
// through the secret providers ("env", "file") and ${VAR} expansion.
func Load(ctx context.Context, v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:        v.GetInt("port"),
		ServiceName: strings.ToLower(strings.TrimSpace(v.GetString("service.name"))),
		Cache: cache.Policy{
			TTL:           v.GetDuration("cache.ttl"),
			SingleFlight:  v.GetBool("cache.single_flight"),
			SweepInterval: v.GetDuration("cache.sweep_interval"),
		},
		CaseFold: v.GetBool("cache.case_fold"),
		Login: session.LoginConfig{
			LoginURL:        v.GetString("login.login_url"),
			HomeURL:         v.GetString("login.home_url"),
			IdentityField:   v.GetString("login.identity_field"),
			SecretField:     v.GetString("login.secret_field"),
			SessionCookie:   v.GetString("login.session_cookie"),
			AuthCookie:      v.GetString("login.auth_cookie"),
			UserAgent:       v.GetString("login.user_agent"),
			RejectMarker:    v.GetString("login.reject_marker"),
			Timeout:         v.GetDuration("login.timeout"),
			SettleDelay:     v.GetDuration("login.settle_delay"),
			HomeSettleDelay: v.GetDuration("login.home_settle_delay"),
		},
		Guard: GuardConfig{
			MaxFailures:   v.GetInt("guard.max_failures"),
			ResetTimeout:  v.GetDuration("guard.reset_timeout"),
			MaxConcurrent: v.GetInt("guard.max_concurrent"),
			QueueWait:     v.GetDuration("guard.queue_wait"),
			Rate:          v.GetFloat64("guard.rate"),
			Burst:         v.GetInt("guard.burst"),
			Timeout:       v.GetDuration("guard.timeout"),
		},
		Auth: auth.Config{
			APIKeys:   stringList(v.Get("auth.api_keys")),
			JWTSecret: v.GetString("auth.jwt_secret"),
			JWTIssuer: v.GetString("auth.jwt_issuer"),
		},
	}

	cfg.Observe = observe.Config{
		ServiceName: "so-auth-" + cfg.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   v.GetBool("observe.tracing.enabled"),
			Exporter:  v.GetString("observe.tracing.exporter"),
			SamplePct: v.GetFloat64("observe.tracing.sample_pct"),
		},
		Metrics: observe.MetricsConfig{
			Enabled:  v.GetBool("observe.metrics.enabled"),
			Exporter: v.GetString("observe.metrics.exporter"),
		},
		Logging: observe.LoggingConfig{
			Enabled: v.GetBool("observe.logging.enabled"),
			Level:   strings.ToLower(v.GetString("observe.logging.level")),
		},
	}

	resolver, err := secret.DefaultRegistry.NewResolver(true, map[string]map[string]any{
		"file": {"dir": v.GetString("secrets.dir")},
	})
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = resolver.Close() }()

	if err := resolveAll(ctx, resolver, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveAll(ctx context.Context, r *secret.Resolver, cfg *Config) error {
	for _, p := range []*string{&cfg.Auth.JWTSecret, &cfg.Login.LoginURL, &cfg.Login.HomeURL} {
		if *p == "" {
			continue
		}
		out, err := r.ResolveValue(ctx, *p)
		if err != nil {
			return fmt.Errorf("config: resolve: %w", err)
		}
		*p = out
	}

	keys, err := r.ResolveSlice(ctx, cfg.Auth.APIKeys)
	if err != nil {
		return fmt.Errorf("config: resolve api keys: %w", err)
	}
	cfg.Auth.APIKeys = keys
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port))
	}
	if c.ServiceName == "" || strings.ContainsAny(c.ServiceName, "/ ") {
		errs = append(errs, fmt.Errorf("%w: service.name %q", ErrInvalidConfig, c.ServiceName))
	}
	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if err := c.Login.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

// stringList accepts a YAML/JSON list or a comma-separated string.
func stringList(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
