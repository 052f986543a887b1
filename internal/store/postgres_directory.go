package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const organizationColumns = `id, name, type, location, contact_person, phone, email,
	website, services, notes, created_at, updated_at`

const metricColumns = `id, name, description, category, unit, target_value,
	organization_id, created_at, updated_at`

func scanOrganization(row pgx.Row) (*Organization, error) {
	o := &Organization{}
	err := row.Scan(
		&o.ID, &o.Name, &o.Type, &o.Location, &o.ContactPerson, &o.Phone, &o.Email,
		&o.Website, &o.Services, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanMetric(row pgx.Row) (*Metric, error) {
	m := &Metric{}
	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &m.Category, &m.Unit, &m.TargetValue,
		&m.OrganizationID, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// --- Organizations ---

func (s *PostgresStore) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+organizationColumns+` FROM organizations ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	o, err := scanOrganization(s.pool.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (s *PostgresStore) CreateOrganization(ctx context.Context, o *Organization) error {
	if err := o.Validate(); err != nil {
		return err
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO organizations (name, type, location, contact_person, phone, email,
			website, services, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		o.Name, o.Type, o.Location, o.ContactPerson, o.Phone, o.Email,
		o.Website, o.Services, o.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (s *PostgresStore) UpdateOrganization(ctx context.Context, o *Organization) error {
	if err := o.Validate(); err != nil {
		return err
	}
	err := s.pool.QueryRow(ctx, `
		UPDATE organizations SET
			name = $2, type = $3, location = $4, contact_person = $5, phone = $6,
			email = $7, website = $8, services = $9, notes = $10, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		o.ID, o.Name, o.Type, o.Location, o.ContactPerson, o.Phone,
		o.Email, o.Website, o.Services, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("organization %s: %w", o.ID, ErrNotFound)
	}
	return err
}

func (s *PostgresStore) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Metrics ---

func (s *PostgresStore) ListMetrics(ctx context.Context, filter MetricFilter) ([]*Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM metrics WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.OrganizationID != nil {
		n++
		query += fmt.Sprintf(" AND organization_id = $%d", n)
		args = append(args, *filter.OrganizationID)
	}
	if filter.Category != "" {
		n++
		query += fmt.Sprintf(" AND category = $%d", n)
		args = append(args, filter.Category)
	}
	query += " ORDER BY name ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []*Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func (s *PostgresStore) GetMetric(ctx context.Context, id uuid.UUID) (*Metric, error) {
	m, err := scanMetric(s.pool.QueryRow(ctx,
		`SELECT `+metricColumns+` FROM metrics WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (s *PostgresStore) CreateMetric(ctx context.Context, m *Metric) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO metrics (name, description, category, unit, target_value, organization_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		m.Name, m.Description, m.Category, m.Unit, m.TargetValue, m.OrganizationID,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (s *PostgresStore) UpdateMetric(ctx context.Context, m *Metric) error {
	if err := m.Validate(); err != nil {
		return err
	}
	err := s.pool.QueryRow(ctx, `
		UPDATE metrics SET
			name = $2, description = $3, category = $4, unit = $5,
			target_value = $6, organization_id = $7, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.Description, m.Category, m.Unit, m.TargetValue, m.OrganizationID,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("metric %s: %w", m.ID, ErrNotFound)
	}
	return err
}

func (s *PostgresStore) DeleteMetric(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM metrics WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("metric %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Strategies ---

// UpsertStrategy creates or replaces a strategy by name. The active flag is
// left alone; use SetActiveStrategy to change it.
func (s *PostgresStore) UpsertStrategy(ctx context.Context, r *StrategyRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO strategy_weights (strategy_name, description,
			validity_weight, relevance_weight, actionability_weight)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (strategy_name) DO UPDATE SET
			description = EXCLUDED.description,
			validity_weight = EXCLUDED.validity_weight,
			relevance_weight = EXCLUDED.relevance_weight,
			actionability_weight = EXCLUDED.actionability_weight,
			updated_at = now()
		RETURNING id, is_active, updated_at`,
		r.Name, r.Description, r.Weights.Validity, r.Weights.Relevance, r.Weights.Actionability,
	).Scan(&r.ID, &r.IsActive, &r.UpdatedAt)
}

func (s *PostgresStore) DeleteStrategy(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM strategy_weights WHERE strategy_name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("strategy %q: %w", name, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	var active *string
	var last *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM service_statistics),
			(SELECT COUNT(*) FROM strategy_weights),
			(SELECT COUNT(*) FROM organizations),
			(SELECT COUNT(*) FROM metrics),
			(SELECT strategy_name FROM strategy_weights WHERE is_active LIMIT 1),
			(SELECT MAX(updated_at) FROM service_statistics)`,
	).Scan(&sum.Statistics, &sum.Strategies, &sum.Organizations, &sum.Metrics, &active, &last)
	if err != nil {
		return nil, err
	}
	if active != nil {
		sum.ActiveStrategy = *active
	}
	sum.LastUpdated = last
	return sum, nil
}
