package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	Events    EventsConfig    `yaml:"events"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port               int    `yaml:"port"`
	MetricsPort        int    `yaml:"metrics_port"`
	AdminToken         string `yaml:"admin_token"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	Backend        string `yaml:"backend"`
	URL            string `yaml:"url"`
	SQLitePath     string `yaml:"sqlite_path"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
	SeedOnStart    bool   `yaml:"seed_on_start"`
}

type SupabaseConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
}

type EventsConfig struct {
	URL string `yaml:"url"`
}

type DashboardConfig struct {
	RefreshIntervalMs int    `yaml:"refresh_interval_ms"`
	FallbackToBuiltin bool   `yaml:"fallback_to_builtin"`
	DefaultStrategy   string `yaml:"default_strategy"`
	SummaryTopN       int    `yaml:"summary_top_n"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RefreshInterval is zero when background reloads are disabled.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Dashboard.RefreshIntervalMs) * time.Millisecond
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8700,
			MetricsPort:        8701,
			RateLimitPerMinute: 120,
		},
		Database: DatabaseConfig{
			Backend:        BackendSQLite,
			SQLitePath:     "data/moneyball.db",
			MigrateOnStart: true,
			SeedOnStart:    true,
		},
		Events: EventsConfig{
			URL: "nats://localhost:4222",
		},
		Dashboard: DashboardConfig{
			RefreshIntervalMs: 0,
			FallbackToBuiltin: true,
			DefaultStrategy:   scoring.BalancedKey,
			SummaryTopN:       scoring.DefaultSummaryTopN,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read layers the YAML file and environment over the defaults without
// validating, for callers that apply further overrides first.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("config: database.url is required for the postgres backend")
		}
	case BackendSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("config: database.sqlite_path is required for the sqlite backend")
		}
	case BackendSupabase:
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
			return fmt.Errorf("config: supabase.url and supabase.anon_key are required for the supabase backend")
		}
	default:
		return fmt.Errorf("config: unknown database backend %q", c.Database.Backend)
	}

	if _, ok := scoring.FindStrategy(scoring.BuiltinStrategies(), c.Dashboard.DefaultStrategy); !ok {
		return fmt.Errorf("config: default_strategy %q is not a built-in strategy", c.Dashboard.DefaultStrategy)
	}
	if c.Dashboard.RefreshIntervalMs < 0 {
		return fmt.Errorf("config: refresh_interval_ms must not be negative")
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: rate_limit_per_minute must not be negative")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Logging.Format)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MONEYBALL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("MONEYBALL_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("MONEYBALL_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("MONEYBALL_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("MONEYBALL_DATABASE_BACKEND"); v != "" {
		cfg.Database.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("MONEYBALL_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("MONEYBALL_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("MONEYBALL_MIGRATE_ON_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Database.MigrateOnStart = b
		}
	}
	if v := os.Getenv("MONEYBALL_SUPABASE_URL"); v != "" {
		cfg.Supabase.URL = v
	}
	if v := os.Getenv("MONEYBALL_SUPABASE_ANON_KEY"); v != "" {
		cfg.Supabase.AnonKey = v
	}
	if v := os.Getenv("MONEYBALL_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("MONEYBALL_REFRESH_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dashboard.RefreshIntervalMs = n
		}
	}
	if v := os.Getenv("MONEYBALL_DEFAULT_STRATEGY"); v != "" {
		cfg.Dashboard.DefaultStrategy = v
	}
	if v := os.Getenv("MONEYBALL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MONEYBALL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
