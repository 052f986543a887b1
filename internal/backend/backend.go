// Package backend opens the configured catalog store.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/Moneyball/internal/config"
	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
	"github.com/MikeSquared-Agency/Moneyball/internal/store"
	"github.com/MikeSquared-Agency/Moneyball/internal/supabase"
)

// Backend bundles what one store offers. Directory and Seeder are nil for
// the hosted REST backend, which only exposes the catalog tables.
type Backend struct {
	Name      string
	Catalog   store.Catalog
	Directory store.Directory
	Seeder    store.Seeder
}

func (b *Backend) Close() error {
	return b.Catalog.Close()
}

// Open connects to the backend named in cfg.Database, migrating and seeding
// it when configured to.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	var b *Backend
	switch cfg.Database.Backend {
	case config.BackendPostgres:
		if cfg.Database.MigrateOnStart {
			if err := store.MigratePostgres(cfg.Database.URL, store.LatestVersion, logger); err != nil {
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		b = &Backend{Name: config.BackendPostgres, Catalog: pg, Directory: pg, Seeder: pg}

	case config.BackendSQLite:
		lite, err := store.NewSQLiteStore(cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		b = &Backend{Name: config.BackendSQLite, Catalog: lite, Directory: lite, Seeder: lite}

	case config.BackendSupabase:
		b = &Backend{
			Name:    config.BackendSupabase,
			Catalog: supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey),
		}

	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}

	if cfg.Database.SeedOnStart && b.Seeder != nil {
		if err := b.Seeder.Seed(ctx, scoring.DefaultCatalog(), scoring.BuiltinStrategies()); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("seed %s: %w", b.Name, err)
		}
	}

	logger.Info("catalog backend ready", "backend", b.Name)
	return b, nil
}
