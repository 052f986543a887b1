package events

import (
	"time"

	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
)

// Event is a dashboard change worth announcing. Each event picks its own
// subject under SubjectAll.
type Event interface {
	Subject() string
}

type ScoreUpdatedEvent struct {
	StatisticID   string            `json:"statistic_id"`
	Dimension     scoring.Dimension `json:"dimension"`
	Score         int               `json:"score"`
	WeightedScore float64           `json:"weighted_score"`
	Persisted     bool              `json:"persisted"`
}

func (e ScoreUpdatedEvent) Subject() string { return SubjectScoreUpdated(e.StatisticID) }

type WeightsUpdatedEvent struct {
	Weights  scoring.WeightVector     `json:"weights"`
	Locks    scoring.LockSet          `json:"locks"`
	Selected scoring.SelectedStrategy `json:"selected_strategy"`
	Trigger  string                   `json:"trigger"`
}

func (e WeightsUpdatedEvent) Subject() string { return SubjectWeightsUpdated }

type StrategyAppliedEvent struct {
	Key     string               `json:"key"`
	Name    string               `json:"name"`
	Weights scoring.WeightVector `json:"weights"`
}

func (e StrategyAppliedEvent) Subject() string { return SubjectStrategyApplied(e.Key) }

// WeightsSavedEvent announces the custom strategy written by a save.
type WeightsSavedEvent struct {
	Key     string               `json:"key"`
	Name    string               `json:"name"`
	Weights scoring.WeightVector `json:"weights"`
}

func (e WeightsSavedEvent) Subject() string { return SubjectWeightsSaved }

type CatalogReloadedEvent struct {
	Source     string    `json:"source"`
	Statistics int       `json:"statistics"`
	Strategies int       `json:"strategies"`
	LoadedAt   time.Time `json:"loaded_at"`
}

func (e CatalogReloadedEvent) Subject() string { return SubjectCatalogReloaded }

type CatalogSyncedEvent struct {
	Count int `json:"count"`
}

func (e CatalogSyncedEvent) Subject() string { return SubjectCatalogSynced }
