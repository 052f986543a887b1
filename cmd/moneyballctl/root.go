package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MikeSquared-Agency/Moneyball/internal/backend"
	"github.com/MikeSquared-Agency/Moneyball/internal/config"
	"github.com/MikeSquared-Agency/Moneyball/internal/dashboard"
)

var rootCmd = &cobra.Command{
	Use:           "moneyballctl",
	Short:         "Prioritize 211 service-record statistics from the terminal.",
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.PersistentFlags().String("config", "", "Path to the server YAML config")
	rootCmd.PersistentFlags().String("backend", "", "Catalog backend: postgres or sqlite or supabase")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection string")
	rootCmd.PersistentFlags().String("sqlite-path", "", "SQLite database file")
	rootCmd.PersistentFlags().Bool("offline", false, "Use the built-in catalog without opening a backend")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no)")

	_ = viper.BindPFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	viper.SetEnvPrefix("MONEYBALL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig layers the persistent flags over the server config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Read(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("backend"); v != "" {
		cfg.Database.Backend = strings.ToLower(v)
	}
	if v := viper.GetString("database-url"); v != "" {
		cfg.Database.URL = v
	}
	if v := viper.GetString("sqlite-path"); v != "" {
		cfg.Database.SQLitePath = v
	}
	cfg.Logging = config.LoggingConfig{Level: viper.GetString("log-level"), Format: "text"}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return config.NewLogger(cfg.Logging, os.Stderr)
}

// openSession loads a dashboard session from the configured backend, or from
// the built-in catalog with --offline. The returned close func is never nil.
func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dashboard.Session, func(), error) {
	opts := dashboard.Options{
		FallbackToBuiltin: cfg.Dashboard.FallbackToBuiltin,
		DefaultStrategy:   cfg.Dashboard.DefaultStrategy,
		SummaryTopN:       cfg.Dashboard.SummaryTopN,
	}
	if viper.GetBool("offline") {
		return dashboard.NewSession(nil, nil, opts, logger), func() {}, nil
	}

	db, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return nil, func() {}, err
	}
	s := dashboard.NewSession(db.Catalog, nil, opts, logger)
	if err := s.Load(ctx); err != nil {
		_ = db.Close()
		return nil, func() {}, fmt.Errorf("load catalog: %w", err)
	}
	return s, func() { _ = db.Close() }, nil
}
