package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so host environment leakage cannot
// skew the defaults under test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY", "SWAGGER_ENABLED",
		"API_BASE_PATH", "DB_PATH", "CLIENT_URL", "GUARD_TTL", "SWEEP_INTERVAL",
		"RATE_CREATE_LIMIT", "RATE_CREATE_WINDOW", "RATE_VOTE_LIMIT", "RATE_VOTE_WINDOW",
		"RATE_READ_LIMIT", "RATE_READ_WINDOW", "CORS_ALLOWED_ORIGINS",
		"ENABLE_HSTS", "HSTS_MAX_AGE", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("server defaults: %+v", cfg)
	}
	if cfg.APIBasePath != "/api/v1" || cfg.DBPath != "polls.db" {
		t.Fatalf("app defaults: %+v", cfg)
	}
	if cfg.ClientURL != "http://localhost:3000" {
		t.Fatalf("client url: %q", cfg.ClientURL)
	}
	if cfg.GuardTTL != 720*time.Hour || cfg.SweepInterval != 60*time.Second {
		t.Fatalf("lifecycle defaults: ttl=%v sweep=%v", cfg.GuardTTL, cfg.SweepInterval)
	}
	if cfg.RateCreate.Limit != 5 || cfg.RateCreate.Window != 15*time.Minute {
		t.Fatalf("create rate class: %+v", cfg.RateCreate)
	}
	if cfg.RateVote.Limit != 10 || cfg.RateVote.Window != time.Minute {
		t.Fatalf("vote rate class: %+v", cfg.RateVote)
	}
	if cfg.RateRead.Limit != 60 || cfg.RateRead.Window != time.Minute {
		t.Fatalf("read rate class: %+v", cfg.RateRead)
	}
	if len(cfg.CORS.AllowedOrigins) != 0 {
		t.Fatalf("cors defaults: %+v", cfg.CORS)
	}
	if cfg.OTEL.Enabled || cfg.OTEL.ServiceName != "go-poll-backend" || cfg.OTEL.SampleRatio != 1.0 {
		t.Fatalf("otel defaults: %+v", cfg.OTEL)
	}
}

func TestLoad_OverridesAndNormalization(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("CLIENT_URL", "https://polls.example.com/")
	t.Setenv("GUARD_TTL", "24h")
	t.Setenv("RATE_VOTE_LIMIT", "3")
	t.Setenv("RATE_VOTE_WINDOW", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "9999" {
		t.Fatalf("port: %q", cfg.Port)
	}
	// Unknown mode falls back, "warning" is an alias.
	if cfg.GinMode != "release" || cfg.LogLevel != "warn" {
		t.Fatalf("normalization: mode=%q level=%q", cfg.GinMode, cfg.LogLevel)
	}
	// Base path gains its slash and loses the trailing one.
	if cfg.APIBasePath != "/api/v2" {
		t.Fatalf("base path: %q", cfg.APIBasePath)
	}
	if cfg.ClientURL != "https://polls.example.com" {
		t.Fatalf("client url: %q", cfg.ClientURL)
	}
	if cfg.GuardTTL != 24*time.Hour {
		t.Fatalf("guard ttl: %v", cfg.GuardTTL)
	}
	if cfg.RateVote.Limit != 3 || cfg.RateVote.Window != 30*time.Second {
		t.Fatalf("vote rate class: %+v", cfg.RateVote)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("cors origins: %+v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"bad log level", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"negative timeout", "READ_TIMEOUT", "-1s", "timeouts"},
		{"zero sweep", "SWEEP_INTERVAL", "-5s", "SWEEP_INTERVAL"},
		{"zero guard ttl", "GUARD_TTL", "-1h", "GUARD_TTL"},
		{"zero rate limit", "RATE_READ_LIMIT", "0", "rate limits"},
		{"negative rate window", "RATE_VOTE_WINDOW", "-1m", "rate windows"},
		{"sample ratio out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v; want error mentioning %q", err, tc.want)
			}
		})
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_HEADER_BYTES", "not-a-number")
	t.Setenv("READ_TIMEOUT", "soon")
	t.Setenv("LOG_PRETTY", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxHeaderBytes != 1<<20 || cfg.ReadTimeout != 15*time.Second || cfg.LogPretty {
		t.Fatalf("fallbacks: %+v", cfg)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"api", "/api"},
		{"/api/v1/", "/api/v1"},
		{"  /api  ", "/api"},
	}
	for _, tc := range cases {
		if got := normalizeBasePath(tc.in); got != tc.want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
