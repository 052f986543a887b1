package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const statisticColumns = `id, statistic, why_it_matters, underlying_assumptions, potential_flaws,
	validity_score, relevance_score, actionability_score`

const strategyColumns = `id, strategy_name, description,
	validity_weight, relevance_weight, actionability_weight,
	is_active, updated_at`

func scanStatistic(row pgx.Row) (scoring.Statistic, error) {
	var st scoring.Statistic
	err := row.Scan(
		&st.ID, &st.Name, &st.Rationale, &st.Assumptions, &st.Caveats,
		&st.Scores.Validity, &st.Scores.Relevance, &st.Scores.Actionability,
	)
	return st, err
}

func scanStrategy(row pgx.Row) (StrategyRecord, error) {
	var r StrategyRecord
	err := row.Scan(
		&r.ID, &r.Name, &r.Description,
		&r.Weights.Validity, &r.Weights.Relevance, &r.Weights.Actionability,
		&r.IsActive, &r.UpdatedAt,
	)
	return r, err
}

func (s *PostgresStore) LoadStatistics(ctx context.Context) ([]scoring.Statistic, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+statisticColumns+`
		FROM service_statistics
		ORDER BY position ASC, created_at ASC`)
	if err != nil {
		return nil, loadErr("statistics", err)
	}
	defer rows.Close()

	var stats []scoring.Statistic
	for rows.Next() {
		st, err := scanStatistic(rows)
		if err != nil {
			return nil, loadErr("statistics", err)
		}
		stats = append(stats, st)
	}
	return stats, loadErr("statistics", rows.Err())
}

func (s *PostgresStore) LoadStrategies(ctx context.Context) ([]StrategyRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+strategyColumns+`
		FROM strategy_weights
		ORDER BY strategy_name ASC`)
	if err != nil {
		return nil, loadErr("strategies", err)
	}
	defer rows.Close()

	var records []StrategyRecord
	for rows.Next() {
		r, err := scanStrategy(rows)
		if err != nil {
			return nil, loadErr("strategies", err)
		}
		records = append(records, r)
	}
	return records, loadErr("strategies", rows.Err())
}

func (s *PostgresStore) PersistScore(ctx context.Context, id uuid.UUID, d scoring.Dimension, score int) (*scoring.Statistic, error) {
	if _, err := scoring.DefaultScores().Set(d, score); err != nil {
		return nil, err
	}

	st, err := scanStatistic(s.pool.QueryRow(ctx, `
		UPDATE service_statistics
		SET `+scoreColumn(d)+` = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+statisticColumns, id, score))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, persistErr("score", fmt.Errorf("statistic %s: %w", id, ErrNotFound))
	}
	if err != nil {
		return nil, persistErr("score", err)
	}
	return &st, nil
}

func (s *PostgresStore) PersistWeights(ctx context.Context, w scoring.WeightVector) (*StrategyRecord, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, persistErr("weights", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE strategy_weights SET is_active = false, updated_at = now()
		WHERE is_active AND strategy_name <> $1`, scoring.CustomStrategyName); err != nil {
		return nil, persistErr("weights", err)
	}

	r, err := scanStrategy(tx.QueryRow(ctx, `
		INSERT INTO strategy_weights (strategy_name, description,
			validity_weight, relevance_weight, actionability_weight, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		ON CONFLICT (strategy_name) DO UPDATE SET
			validity_weight = EXCLUDED.validity_weight,
			relevance_weight = EXCLUDED.relevance_weight,
			actionability_weight = EXCLUDED.actionability_weight,
			is_active = true,
			updated_at = now()
		RETURNING `+strategyColumns,
		scoring.CustomStrategyName, customDescription,
		w.Validity, w.Relevance, w.Actionability,
	))
	if err != nil {
		return nil, persistErr("weights", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistErr("weights", err)
	}
	return &r, nil
}

const customDescription = "User-defined custom weighting strategy"

func (s *PostgresStore) SetActiveStrategy(ctx context.Context, name string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return persistErr("active strategy", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE strategy_weights SET is_active = false, updated_at = now()
		WHERE is_active`); err != nil {
		return persistErr("active strategy", err)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE strategy_weights SET is_active = true, updated_at = now()
		WHERE strategy_name = $1`, name)
	if err != nil {
		return persistErr("active strategy", err)
	}
	if tag.RowsAffected() == 0 {
		return persistErr("active strategy", fmt.Errorf("strategy %q: %w", name, ErrNotFound))
	}
	return persistErr("active strategy", tx.Commit(ctx))
}

// SyncStatistics upserts every statistic in one round trip.
func (s *PostgresStore) SyncStatistics(ctx context.Context, stats []scoring.Statistic) error {
	if len(stats) == 0 {
		return nil
	}
	for _, st := range stats {
		if err := st.Scores.Validate(); err != nil {
			return err
		}
	}

	batch := &pgx.Batch{}
	for i, st := range stats {
		batch.Queue(`
			INSERT INTO service_statistics (id, position, statistic,
				why_it_matters, underlying_assumptions, potential_flaws,
				validity_score, relevance_score, actionability_score)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				validity_score = EXCLUDED.validity_score,
				relevance_score = EXCLUDED.relevance_score,
				actionability_score = EXCLUDED.actionability_score,
				updated_at = now()`,
			st.ID, i, st.Name, st.Rationale, st.Assumptions, st.Caveats,
			st.Scores.Validity, st.Scores.Relevance, st.Scores.Actionability,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	for range stats {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return persistErr("sync", err)
		}
	}
	return persistErr("sync", br.Close())
}

// Seed inserts the catalog when the statistics table is empty and adds any
// missing strategies. The balanced preset becomes active only if nothing is.
func (s *PostgresStore) Seed(ctx context.Context, stats []scoring.Statistic, strategies []scoring.Strategy) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM service_statistics`).Scan(&count); err != nil {
		return fmt.Errorf("count statistics: %w", err)
	}
	if count == 0 {
		for i, st := range stats {
			scores := st.Scores.WithDefaults()
			if _, err := tx.Exec(ctx, `
				INSERT INTO service_statistics (id, position, statistic,
					why_it_matters, underlying_assumptions, potential_flaws,
					validity_score, relevance_score, actionability_score)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				st.ID, i, st.Name, st.Rationale, st.Assumptions, st.Caveats,
				scores.Validity, scores.Relevance, scores.Actionability,
			); err != nil {
				return fmt.Errorf("seed statistic %q: %w", st.Name, err)
			}
		}
	}

	for _, st := range strategies {
		if _, err := tx.Exec(ctx, `
			INSERT INTO strategy_weights (strategy_name, description,
				validity_weight, relevance_weight, actionability_weight, is_active)
			SELECT $1, $2, $3, $4, $5,
				$6::boolean AND NOT EXISTS (SELECT 1 FROM strategy_weights WHERE is_active)
			ON CONFLICT (strategy_name) DO NOTHING`,
			st.Name, st.Description,
			st.Weights.Validity, st.Weights.Relevance, st.Weights.Actionability,
			activeFor(st),
		); err != nil {
			return fmt.Errorf("seed strategy %q: %w", st.Name, err)
		}
	}

	return tx.Commit(ctx)
}
