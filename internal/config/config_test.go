package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envVars = []string{
	"MONEYBALL_PORT", "MONEYBALL_METRICS_PORT", "MONEYBALL_ADMIN_TOKEN",
	"MONEYBALL_RATE_LIMIT_PER_MINUTE", "MONEYBALL_DATABASE_BACKEND", "MONEYBALL_DATABASE_URL",
	"MONEYBALL_SQLITE_PATH", "MONEYBALL_MIGRATE_ON_START", "MONEYBALL_SUPABASE_URL",
	"MONEYBALL_SUPABASE_ANON_KEY", "MONEYBALL_EVENTS_URL", "MONEYBALL_REFRESH_INTERVAL_MS",
	"MONEYBALL_DEFAULT_STRATEGY", "MONEYBALL_LOG_LEVEL", "MONEYBALL_LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8700 {
		t.Errorf("expected port 8700, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected metrics port 8701, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Server.RateLimitPerMinute != 120 {
		t.Errorf("expected rate limit 120, got %d", cfg.Server.RateLimitPerMinute)
	}
	if cfg.Database.Backend != BackendSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.Database.Backend)
	}
	if !cfg.Database.MigrateOnStart {
		t.Error("expected migrate_on_start by default")
	}
	if cfg.Events.URL != "nats://localhost:4222" {
		t.Errorf("expected nats URL, got %s", cfg.Events.URL)
	}
	if cfg.Dashboard.DefaultStrategy != "balanced" {
		t.Errorf("expected balanced default strategy, got %s", cfg.Dashboard.DefaultStrategy)
	}
	if !cfg.Dashboard.FallbackToBuiltin {
		t.Error("expected fallback to built-in catalog by default")
	}
	if cfg.RefreshInterval() != 0 {
		t.Errorf("expected refresh disabled, got %v", cfg.RefreshInterval())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONEYBALL_PORT", "9000")
	t.Setenv("MONEYBALL_METRICS_PORT", "9001")
	t.Setenv("MONEYBALL_ADMIN_TOKEN", "secret-token")
	t.Setenv("MONEYBALL_DATABASE_BACKEND", "POSTGRES")
	t.Setenv("MONEYBALL_DATABASE_URL", "postgres://localhost/moneyball_test")
	t.Setenv("MONEYBALL_MIGRATE_ON_START", "false")
	t.Setenv("MONEYBALL_EVENTS_URL", "nats://nats:4222")
	t.Setenv("MONEYBALL_REFRESH_INTERVAL_MS", "2000")
	t.Setenv("MONEYBALL_DEFAULT_STRATEGY", "impact-first")
	t.Setenv("MONEYBALL_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 9001 {
		t.Errorf("expected metrics port 9001, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Server.AdminToken != "secret-token" {
		t.Errorf("expected admin token 'secret-token', got '%s'", cfg.Server.AdminToken)
	}
	if cfg.Database.Backend != BackendPostgres {
		t.Errorf("expected postgres backend, got %s", cfg.Database.Backend)
	}
	if cfg.Database.URL != "postgres://localhost/moneyball_test" {
		t.Errorf("expected database URL, got '%s'", cfg.Database.URL)
	}
	if cfg.Database.MigrateOnStart {
		t.Error("expected migrate_on_start disabled")
	}
	if cfg.Events.URL != "nats://nats:4222" {
		t.Errorf("expected events URL, got '%s'", cfg.Events.URL)
	}
	if cfg.RefreshInterval() != 2*time.Second {
		t.Errorf("expected 2s refresh, got %v", cfg.RefreshInterval())
	}
	if cfg.Dashboard.DefaultStrategy != "impact-first" {
		t.Errorf("expected impact-first, got %s", cfg.Dashboard.DefaultStrategy)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "moneyball.yaml")
	yamlDoc := `
server:
  port: 8800
database:
  backend: supabase
supabase:
  url: https://example.supabase.co
  anon_key: anon
dashboard:
  refresh_interval_ms: 30000
  default_strategy: maintenance-first
logging:
  format: text
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8800 {
		t.Errorf("expected port 8800, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected default metrics port kept, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Database.Backend != BackendSupabase || cfg.Supabase.AnonKey != "anon" {
		t.Errorf("unexpected database/supabase config %+v %+v", cfg.Database, cfg.Supabase)
	}
	if cfg.RefreshInterval() != 30*time.Second {
		t.Errorf("expected 30s refresh, got %v", cfg.RefreshInterval())
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestReadSkipsValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONEYBALL_DATABASE_BACKEND", "postgres")

	if _, err := Load(""); err == nil {
		t.Fatal("expected Load to reject postgres without a URL")
	}
	cfg, err := Read("")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	cfg.Database.URL = "postgres://localhost/moneyball"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error after override: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Database.Backend = "mysql" }, "unknown database backend"},
		{"postgres without url", func(c *Config) { c.Database.Backend = BackendPostgres }, "database.url"},
		{"supabase without key", func(c *Config) {
			c.Database.Backend = BackendSupabase
			c.Supabase.URL = "https://example.supabase.co"
		}, "anon_key"},
		{"unknown strategy", func(c *Config) { c.Dashboard.DefaultStrategy = "custom" }, "default_strategy"},
		{"negative refresh", func(c *Config) { c.Dashboard.RefreshIntervalMs = -1 }, "refresh_interval_ms"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON output, got %s", out)
	}

	buf.Reset()
	NewLogger(LoggingConfig{Level: "debug", Format: "text"}, &buf).Debug("dbg")
	if !strings.Contains(buf.String(), "msg=dbg") {
		t.Errorf("expected text output, got %s", buf.String())
	}
}
