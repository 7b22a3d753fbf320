package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/blankcnvs/so-auth/cache"
	"github.com/blankcnvs/so-auth/secret"
	"github.com/blankcnvs/so-auth/session"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "SO_AUTH_PORT", "SO_AUTH_AUTH_API_KEYS", "SO_AUTH_AUTH_JWT_SECRET", "SO_AUTH_CACHE_TTL", "SO_AUTH_CACHE_CASE_FOLD"} {
		t.Setenv(k, "")
	}
}

func load(t *testing.T, file string) (Config, error) {
	t.Helper()
	v, err := New(file)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return Load(context.Background(), v)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := load(t, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.ServiceName != "sophia" {
		t.Errorf("ServiceName = %q, want sophia", cfg.ServiceName)
	}
	if cfg.Cache != cache.DefaultPolicy() {
		t.Errorf("Cache = %+v, want %+v", cfg.Cache, cache.DefaultPolicy())
	}
	if cfg.CaseFold {
		t.Error("CaseFold on by default")
	}
	if cfg.Login != session.DefaultLoginConfig() {
		t.Errorf("Login = %+v, want defaults", cfg.Login)
	}
	if cfg.Auth.Enabled() {
		t.Error("auth enabled with no keys configured")
	}
	if cfg.Observe.ServiceName != "so-auth-sophia" {
		t.Errorf("Observe.ServiceName = %q", cfg.Observe.ServiceName)
	}
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("SO_AUTH_CACHE_TTL", "10m")
	t.Setenv("SO_AUTH_CACHE_CASE_FOLD", "true")
	t.Setenv("SO_AUTH_AUTH_API_KEYS", "k1, k2,,")
	t.Setenv("SO_AUTH_TEST_JWT", "shh")
	t.Setenv("SO_AUTH_AUTH_JWT_SECRET", "secretref:env:SO_AUTH_TEST_JWT")

	cfg, err := load(t, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("TTL = %v, want 10m", cfg.Cache.TTL)
	}
	if !cfg.CaseFold {
		t.Error("CaseFold = false, want true from SO_AUTH_CACHE_CASE_FOLD")
	}
	if want := []string{"k1", "k2"}; !reflect.DeepEqual(cfg.Auth.APIKeys, want) {
		t.Errorf("APIKeys = %v, want %v", cfg.Auth.APIKeys, want)
	}
	if cfg.Auth.JWTSecret != "shh" {
		t.Errorf("JWTSecret = %q, want resolved value", cfg.Auth.JWTSecret)
	}
}

func TestLoad_PrefixedPortWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("SO_AUTH_PORT", "9090")

	cfg, err := load(t, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "jwt"), []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "so-auth.yaml")
	data := []byte(`
service:
  name: Sophia
cache:
  ttl: 5m
  single_flight: false
secrets:
  dir: ` + dir + `
auth:
  api_keys: [alpha, beta]
  jwt_secret: secretref:file:jwt
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(t, path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServiceName != "sophia" {
		t.Errorf("ServiceName = %q, want lower-cased", cfg.ServiceName)
	}
	if cfg.Cache.TTL != 5*time.Minute || cfg.Cache.SingleFlight {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if want := []string{"alpha", "beta"}; !reflect.DeepEqual(cfg.Auth.APIKeys, want) {
		t.Errorf("APIKeys = %v, want %v", cfg.Auth.APIKeys, want)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Errorf("JWTSecret = %q, want from-file", cfg.Auth.JWTSecret)
	}
}

func TestNew_MissingFile(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("New() with a missing file succeeded")
	}
}

func TestLoad_UnresolvableSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("SO_AUTH_AUTH_JWT_SECRET", "${SO_AUTH_TEST_UNSET_VAR}")

	_, err := load(t, "")
	if !errors.Is(err, secret.ErrMissingEnv) {
		t.Errorf("Load() error = %v, want ErrMissingEnv", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		clearEnv(t)
		cfg, err := load(t, "")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"empty service", func(c *Config) { c.ServiceName = "" }},
		{"service with slash", func(c *Config) { c.ServiceName = "a/b" }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"relative login url", func(c *Config) { c.Login.LoginURL = "/login" }},
		{"bad log level", func(c *Config) { c.Observe.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestStringList(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, []string{}},
		{"csv", " a ,b,, ", []string{"a", "b"}},
		{"slice", []any{"x", 1}, []string{"x", "1"}},
		{"strings", []string{"p", " "}, []string{"p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stringList(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("stringList() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestGuardConfig_Executor(t *testing.T) {
	g := GuardConfig{MaxFailures: 2, MaxConcurrent: 3, Rate: 1, Burst: 1}
	e := g.Executor(session.CountsAgainstSite)
	if e.CircuitBreaker() == nil || e.Bulkhead() == nil {
		t.Fatal("executor missing breaker or bulkhead")
	}
	if got := e.Bulkhead().Metrics().MaxConcurrent; got != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", got)
	}
}
