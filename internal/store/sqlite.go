package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore keeps the whole catalog in a local file for offline use.
// Timestamps are stored as RFC 3339 text and ids as text.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps pragmas and transactions on the same handle.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	if err := migrateSQLite(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteStatistic(row rowScanner) (scoring.Statistic, error) {
	var st scoring.Statistic
	err := row.Scan(
		&st.ID, &st.Name, &st.Rationale, &st.Assumptions, &st.Caveats,
		&st.Scores.Validity, &st.Scores.Relevance, &st.Scores.Actionability,
	)
	return st, err
}

func scanSQLiteStrategy(row rowScanner) (StrategyRecord, error) {
	var r StrategyRecord
	var updated string
	err := row.Scan(
		&r.ID, &r.Name, &r.Description,
		&r.Weights.Validity, &r.Weights.Relevance, &r.Weights.Actionability,
		&r.IsActive, &updated,
	)
	r.UpdatedAt = parseTimestamp(updated)
	return r, err
}

func (s *SQLiteStore) LoadStatistics(ctx context.Context) ([]scoring.Statistic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+statisticColumns+`
		FROM service_statistics
		ORDER BY position ASC, created_at ASC`)
	if err != nil {
		return nil, loadErr("statistics", err)
	}
	defer rows.Close()

	var stats []scoring.Statistic
	for rows.Next() {
		st, err := scanSQLiteStatistic(rows)
		if err != nil {
			return nil, loadErr("statistics", err)
		}
		stats = append(stats, st)
	}
	return stats, loadErr("statistics", rows.Err())
}

func (s *SQLiteStore) LoadStrategies(ctx context.Context) ([]StrategyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+strategyColumns+`
		FROM strategy_weights
		ORDER BY strategy_name ASC`)
	if err != nil {
		return nil, loadErr("strategies", err)
	}
	defer rows.Close()

	var records []StrategyRecord
	for rows.Next() {
		r, err := scanSQLiteStrategy(rows)
		if err != nil {
			return nil, loadErr("strategies", err)
		}
		records = append(records, r)
	}
	return records, loadErr("strategies", rows.Err())
}

func (s *SQLiteStore) PersistScore(ctx context.Context, id uuid.UUID, d scoring.Dimension, score int) (*scoring.Statistic, error) {
	if _, err := scoring.DefaultScores().Set(d, score); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE service_statistics
		SET `+scoreColumn(d)+` = ?, updated_at = ?
		WHERE id = ?`, score, s.timestamp(), id)
	if err != nil {
		return nil, persistErr("score", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, persistErr("score", fmt.Errorf("statistic %s: %w", id, ErrNotFound))
	}

	st, err := scanSQLiteStatistic(s.db.QueryRowContext(ctx,
		`SELECT `+statisticColumns+` FROM service_statistics WHERE id = ?`, id))
	if err != nil {
		return nil, persistErr("score", err)
	}
	return &st, nil
}

func (s *SQLiteStore) PersistWeights(ctx context.Context, w scoring.WeightVector) (*StrategyRecord, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistErr("weights", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	if _, err := tx.ExecContext(ctx, `
		UPDATE strategy_weights SET is_active = 0, updated_at = ?
		WHERE is_active = 1 AND strategy_name <> ?`, now, scoring.CustomStrategyName); err != nil {
		return nil, persistErr("weights", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO strategy_weights (id, strategy_name, description,
			validity_weight, relevance_weight, actionability_weight, is_active,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (strategy_name) DO UPDATE SET
			validity_weight = excluded.validity_weight,
			relevance_weight = excluded.relevance_weight,
			actionability_weight = excluded.actionability_weight,
			is_active = 1,
			updated_at = excluded.updated_at`,
		uuid.New(), scoring.CustomStrategyName, customDescription,
		w.Validity, w.Relevance, w.Actionability, now, now,
	); err != nil {
		return nil, persistErr("weights", err)
	}

	r, err := scanSQLiteStrategy(tx.QueryRowContext(ctx,
		`SELECT `+strategyColumns+` FROM strategy_weights WHERE strategy_name = ?`,
		scoring.CustomStrategyName))
	if err != nil {
		return nil, persistErr("weights", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, persistErr("weights", err)
	}
	return &r, nil
}

func (s *SQLiteStore) SetActiveStrategy(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("active strategy", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	if _, err := tx.ExecContext(ctx,
		`UPDATE strategy_weights SET is_active = 0, updated_at = ? WHERE is_active = 1`, now); err != nil {
		return persistErr("active strategy", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE strategy_weights SET is_active = 1, updated_at = ? WHERE strategy_name = ?`, now, name)
	if err != nil {
		return persistErr("active strategy", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistErr("active strategy", fmt.Errorf("strategy %q: %w", name, ErrNotFound))
	}
	return persistErr("active strategy", tx.Commit())
}

func (s *SQLiteStore) SyncStatistics(ctx context.Context, stats []scoring.Statistic) error {
	if len(stats) == 0 {
		return nil
	}
	for _, st := range stats {
		if err := st.Scores.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("sync", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO service_statistics (id, position, statistic,
			why_it_matters, underlying_assumptions, potential_flaws,
			validity_score, relevance_score, actionability_score,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			validity_score = excluded.validity_score,
			relevance_score = excluded.relevance_score,
			actionability_score = excluded.actionability_score,
			updated_at = excluded.updated_at`)
	if err != nil {
		return persistErr("sync", err)
	}
	defer stmt.Close()

	now := s.timestamp()
	for i, st := range stats {
		if _, err := stmt.ExecContext(ctx,
			st.ID, i, st.Name, st.Rationale, st.Assumptions, st.Caveats,
			st.Scores.Validity, st.Scores.Relevance, st.Scores.Actionability,
			now, now,
		); err != nil {
			return persistErr("sync", err)
		}
	}
	return persistErr("sync", tx.Commit())
}

func (s *SQLiteStore) Seed(ctx context.Context, stats []scoring.Statistic, strategies []scoring.Strategy) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_statistics`).Scan(&count); err != nil {
		return fmt.Errorf("count statistics: %w", err)
	}
	if count == 0 {
		for i, st := range stats {
			scores := st.Scores.WithDefaults()
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO service_statistics (id, position, statistic,
					why_it_matters, underlying_assumptions, potential_flaws,
					validity_score, relevance_score, actionability_score,
					created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				st.ID, i, st.Name, st.Rationale, st.Assumptions, st.Caveats,
				scores.Validity, scores.Relevance, scores.Actionability, now, now,
			); err != nil {
				return fmt.Errorf("seed statistic %q: %w", st.Name, err)
			}
		}
	}

	var active int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM strategy_weights WHERE is_active = 1`).Scan(&active); err != nil {
		return fmt.Errorf("count active strategies: %w", err)
	}
	for _, st := range strategies {
		makeActive := active == 0 && activeFor(st)
		res, err := tx.ExecContext(ctx, `
			INSERT INTO strategy_weights (id, strategy_name, description,
				validity_weight, relevance_weight, actionability_weight, is_active,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (strategy_name) DO NOTHING`,
			uuid.New(), st.Name, st.Description,
			st.Weights.Validity, st.Weights.Relevance, st.Weights.Actionability,
			boolInt(makeActive), now, now,
		)
		if err != nil {
			return fmt.Errorf("seed strategy %q: %w", st.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 && makeActive {
			active++
		}
	}

	return tx.Commit()
}

// --- Directory ---

func scanSQLiteOrganization(row rowScanner) (*Organization, error) {
	o := &Organization{}
	var created, updated string
	err := row.Scan(
		&o.ID, &o.Name, &o.Type, &o.Location, &o.ContactPerson, &o.Phone, &o.Email,
		&o.Website, &o.Services, &o.Notes, &created, &updated,
	)
	o.CreatedAt, o.UpdatedAt = parseTimestamp(created), parseTimestamp(updated)
	return o, err
}

func scanSQLiteMetric(row rowScanner) (*Metric, error) {
	m := &Metric{}
	var created, updated string
	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &m.Category, &m.Unit, &m.TargetValue,
		&m.OrganizationID, &created, &updated,
	)
	m.CreatedAt, m.UpdatedAt = parseTimestamp(created), parseTimestamp(updated)
	return m, err
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		o, err := scanSQLiteOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	o, err := scanSQLiteOrganization(s.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *SQLiteStore) CreateOrganization(ctx context.Context, o *Organization) error {
	if err := o.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	o.ID = uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, type, location, contact_person, phone, email,
			website, services, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Name, o.Type, o.Location, o.ContactPerson, o.Phone, o.Email,
		o.Website, o.Services, o.Notes,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	o.CreatedAt, o.UpdatedAt = now, now
	return nil
}

func (s *SQLiteStore) UpdateOrganization(ctx context.Context, o *Organization) error {
	if err := o.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET
			name = ?, type = ?, location = ?, contact_person = ?, phone = ?,
			email = ?, website = ?, services = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		o.Name, o.Type, o.Location, o.ContactPerson, o.Phone,
		o.Email, o.Website, o.Services, o.Notes, now.Format(time.RFC3339Nano), o.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("organization %s: %w", o.ID, ErrNotFound)
	}
	o.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	return s.deleteByID(ctx, "organizations", "organization", id)
}

func (s *SQLiteStore) ListMetrics(ctx context.Context, filter MetricFilter) ([]*Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM metrics WHERE 1=1`
	args := []interface{}{}
	if filter.OrganizationID != nil {
		query += " AND organization_id = ?"
		args = append(args, *filter.OrganizationID)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []*Metric
	for rows.Next() {
		m, err := scanSQLiteMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func (s *SQLiteStore) GetMetric(ctx context.Context, id uuid.UUID) (*Metric, error) {
	m, err := scanSQLiteMetric(s.db.QueryRowContext(ctx,
		`SELECT `+metricColumns+` FROM metrics WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) CreateMetric(ctx context.Context, m *Metric) error {
	if err := m.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	m.ID = uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics (id, name, description, category, unit, target_value,
			organization_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Description, m.Category, m.Unit, m.TargetValue,
		m.OrganizationID, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	m.CreatedAt, m.UpdatedAt = now, now
	return nil
}

func (s *SQLiteStore) UpdateMetric(ctx context.Context, m *Metric) error {
	if err := m.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE metrics SET
			name = ?, description = ?, category = ?, unit = ?,
			target_value = ?, organization_id = ?, updated_at = ?
		WHERE id = ?`,
		m.Name, m.Description, m.Category, m.Unit, m.TargetValue, m.OrganizationID,
		now.Format(time.RFC3339Nano), m.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("metric %s: %w", m.ID, ErrNotFound)
	}
	m.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) DeleteMetric(ctx context.Context, id uuid.UUID) error {
	return s.deleteByID(ctx, "metrics", "metric", id)
}

func (s *SQLiteStore) deleteByID(ctx context.Context, table, kind string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) UpsertStrategy(ctx context.Context, r *StrategyRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	now := s.timestamp()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO strategy_weights (id, strategy_name, description,
			validity_weight, relevance_weight, actionability_weight,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (strategy_name) DO UPDATE SET
			description = excluded.description,
			validity_weight = excluded.validity_weight,
			relevance_weight = excluded.relevance_weight,
			actionability_weight = excluded.actionability_weight,
			updated_at = excluded.updated_at`,
		uuid.New(), r.Name, r.Description,
		r.Weights.Validity, r.Weights.Relevance, r.Weights.Actionability, now, now,
	); err != nil {
		return err
	}

	stored, err := scanSQLiteStrategy(s.db.QueryRowContext(ctx,
		`SELECT `+strategyColumns+` FROM strategy_weights WHERE strategy_name = ?`, r.Name))
	if err != nil {
		return err
	}
	r.ID, r.IsActive, r.UpdatedAt = stored.ID, stored.IsActive, stored.UpdatedAt
	return nil
}

func (s *SQLiteStore) DeleteStrategy(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM strategy_weights WHERE strategy_name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("strategy %q: %w", name, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	var active, last sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM service_statistics),
			(SELECT COUNT(*) FROM strategy_weights),
			(SELECT COUNT(*) FROM organizations),
			(SELECT COUNT(*) FROM metrics),
			(SELECT strategy_name FROM strategy_weights WHERE is_active = 1 LIMIT 1),
			(SELECT MAX(updated_at) FROM service_statistics)`,
	).Scan(&sum.Statistics, &sum.Strategies, &sum.Organizations, &sum.Metrics, &active, &last)
	if err != nil {
		return nil, err
	}
	sum.ActiveStrategy = active.String
	if last.Valid {
		t := parseTimestamp(last.String)
		sum.LastUpdated = &t
	}
	return sum, nil
}
