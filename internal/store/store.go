package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
)

// ErrNotFound is returned by updates and deletes that match no row.
var ErrNotFound = errors.New("not found")

// LoadError reports a failed read from the backing store. Callers fall back
// to the built-in catalog.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Op, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// PersistError reports a failed write. Local state has already changed.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }

func (e *PersistError) Unwrap() error { return e.Err }

func loadErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &LoadError{Op: op, Err: err}
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistError{Op: op, Err: err}
}

// StrategyRecord is a stored weight preset. Name is the display name
// ("Balanced Strategy"); the preset key is derived from it.
type StrategyRecord struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"strategy_name"`
	Description string               `json:"description"`
	Weights     scoring.WeightVector `json:"weights"`
	IsActive    bool                 `json:"is_active"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Strategy converts the record into a preset keyed by StrategyKey(Name).
func (r StrategyRecord) Strategy() scoring.Strategy {
	return scoring.Strategy{
		Key:         scoring.StrategyKey(r.Name),
		Name:        r.Name,
		Description: r.Description,
		Weights:     r.Weights,
	}
}

func (r *StrategyRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &scoring.ValidationError{Field: "strategy_name", Reason: "required"}
	}
	return r.Weights.Validate()
}

// RecordFromStrategy builds an inactive record for a preset.
func RecordFromStrategy(s scoring.Strategy) StrategyRecord {
	return StrategyRecord{
		Name:        s.Name,
		Description: s.Description,
		Weights:     s.Weights,
	}
}

// Organization is a 211 service provider tracked alongside the statistics.
type Organization struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type,omitempty"`
	Location      string    `json:"location,omitempty"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Website       string    `json:"website,omitempty"`
	Services      string    `json:"services,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (o *Organization) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return &scoring.ValidationError{Field: "name", Reason: "required"}
	}
	return nil
}

// Metric is a tracked KPI, optionally tied to one organization.
type Metric struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Category       string     `json:"category,omitempty"`
	Unit           string     `json:"unit,omitempty"`
	TargetValue    *float64   `json:"target_value,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (m *Metric) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return &scoring.ValidationError{Field: "name", Reason: "required"}
	}
	return nil
}

type MetricFilter struct {
	OrganizationID *uuid.UUID
	Category       string
}

// Summary counts what the store holds.
type Summary struct {
	Statistics     int        `json:"statistics"`
	Strategies     int        `json:"strategies"`
	Organizations  int        `json:"organizations"`
	Metrics        int        `json:"metrics"`
	ActiveStrategy string     `json:"active_strategy,omitempty"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
}

// Catalog is the persistence collaborator of the dashboard. Reads fail with
// *LoadError and writes with *PersistError.
type Catalog interface {
	LoadStatistics(ctx context.Context) ([]scoring.Statistic, error)
	LoadStrategies(ctx context.Context) ([]StrategyRecord, error)

	PersistScore(ctx context.Context, id uuid.UUID, d scoring.Dimension, score int) (*scoring.Statistic, error)
	// PersistWeights upserts the custom strategy, marks it active and
	// deactivates every other strategy.
	PersistWeights(ctx context.Context, w scoring.WeightVector) (*StrategyRecord, error)
	SetActiveStrategy(ctx context.Context, name string) error
	SyncStatistics(ctx context.Context, stats []scoring.Statistic) error

	Close() error
}

// Directory is the administrative surface over organizations, metrics and
// stored strategies. Get methods return (nil, nil) when nothing matches.
type Directory interface {
	ListOrganizations(ctx context.Context) ([]*Organization, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)
	CreateOrganization(ctx context.Context, o *Organization) error
	UpdateOrganization(ctx context.Context, o *Organization) error
	DeleteOrganization(ctx context.Context, id uuid.UUID) error

	ListMetrics(ctx context.Context, filter MetricFilter) ([]*Metric, error)
	GetMetric(ctx context.Context, id uuid.UUID) (*Metric, error)
	CreateMetric(ctx context.Context, m *Metric) error
	UpdateMetric(ctx context.Context, m *Metric) error
	DeleteMetric(ctx context.Context, id uuid.UUID) error

	UpsertStrategy(ctx context.Context, r *StrategyRecord) error
	DeleteStrategy(ctx context.Context, name string) error

	Summary(ctx context.Context) (*Summary, error)
}

// Seeder fills an empty store with the built-in catalog.
type Seeder interface {
	Seed(ctx context.Context, stats []scoring.Statistic, strategies []scoring.Strategy) error
}

// scoreColumn maps a dimension to its column. d must already be valid.
func scoreColumn(d scoring.Dimension) string {
	return string(d) + "_score"
}

func activeFor(s scoring.Strategy) bool {
	return s.Key == scoring.BalancedKey
}
