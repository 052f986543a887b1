// Package dashboard composes the weight allocator and score aggregator into
// the single mutable dashboard the API serves. It owns the sorted flag, the
// catalog source and the record of unsaved local edits.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/MikeSquared-Agency/Moneyball/internal/events"
	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
	"github.com/MikeSquared-Agency/Moneyball/internal/store"
	"github.com/MikeSquared-Agency/Moneyball/internal/telemetry"
)

type Source string

const (
	SourceDatabase Source = "database"
	SourceBuiltin  Source = "builtin"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrNoCatalog       = errors.New("no catalog backend configured")
)

type Options struct {
	FallbackToBuiltin bool
	DefaultStrategy   string
	SummaryTopN       int
}

// Snapshot is a consistent read of the whole dashboard.
type Snapshot struct {
	Weights    scoring.WeightVector      `json:"weights"`
	Locks      scoring.LockSet           `json:"locks"`
	Selected   scoring.SelectedStrategy  `json:"selected_strategy"`
	Sorted     bool                      `json:"sorted"`
	Source     Source                    `json:"source"`
	Strategies []scoring.Strategy        `json:"strategies"`
	Statistics []scoring.RankedStatistic `json:"statistics"`
	Summary    scoring.ImpactSummary     `json:"summary"`
	Unsaved    int                       `json:"unsaved_statistics"`
	LoadedAt   time.Time                 `json:"loaded_at"`
}

// ScoreUpdate reports a score edit. The edit is applied locally even when
// Persisted is false.
type ScoreUpdate struct {
	Statistic     scoring.Statistic `json:"statistic"`
	WeightedScore float64           `json:"weighted_score"`
	Persisted     bool              `json:"persisted"`
	PersistError  string            `json:"persist_error,omitempty"`
}

type Explanation struct {
	Statistic     scoring.Statistic      `json:"statistic"`
	WeightedScore float64                `json:"weighted_score"`
	Factors       []scoring.FactorResult `json:"factors"`
}

type Session struct {
	catalog store.Catalog
	events  events.Client
	opts    Options
	logger  *slog.Logger

	loads singleflight.Group

	mu           sync.Mutex
	allocator    *scoring.WeightAllocator
	stats        []scoring.Statistic
	strategies   []scoring.Strategy
	sorted       bool
	source       Source
	dirty        map[uuid.UUID]uint64
	edited       map[uuid.UUID]uint64
	version      uint64
	weightsDirty bool
	weightsGen   uint64
	activating   int
	loadedAt     time.Time
}

// fetchMark records local state at the moment a reload starts fetching. Rows
// read by that fetch may predate any edit made after it.
type fetchMark struct {
	version    uint64
	weightsGen uint64
	pending    map[uuid.UUID]bool
	activating bool
}

// NewSession starts on the built-in catalog with the default strategy
// applied. catalog and ev may be nil; without a catalog the session stays on
// built-in data.
func NewSession(catalog store.Catalog, ev events.Client, opts Options, logger *slog.Logger) *Session {
	if opts.SummaryTopN <= 0 {
		opts.SummaryTopN = scoring.DefaultSummaryTopN
	}
	s := &Session{
		catalog:    catalog,
		events:     ev,
		opts:       opts,
		logger:     logger,
		allocator:  scoring.NewWeightAllocator(),
		stats:      scoring.DefaultCatalog(),
		strategies: scoring.BuiltinStrategies(),
		source:     SourceBuiltin,
		dirty:      make(map[uuid.UUID]uint64),
		edited:     make(map[uuid.UUID]uint64),
	}
	if strat, ok := scoring.FindStrategy(s.strategies, opts.DefaultStrategy); ok {
		_ = s.allocator.ApplyStrategy(strat)
	}
	return s
}

// Load fetches statistics and strategies from the catalog. Concurrent calls
// share one fetch. When the catalog fails or is empty the built-in data is
// used, unless fallback is disabled, in which case the error is returned and
// the session is left as it was.
func (s *Session) Load(ctx context.Context) error {
	_, err, _ := s.loads.Do("load", func() (interface{}, error) {
		return nil, s.load(ctx)
	})
	return err
}

func (s *Session) load(ctx context.Context) error {
	mark := s.markFetch()

	var (
		stats            []scoring.Statistic
		records          []store.StrategyRecord
		statsErr, recErr error
	)
	if s.catalog != nil {
		var g errgroup.Group
		g.Go(func() error {
			stats, statsErr = s.catalog.LoadStatistics(ctx)
			return statsErr
		})
		g.Go(func() error {
			records, recErr = s.catalog.LoadStrategies(ctx)
			return recErr
		})
		if err := g.Wait(); err != nil && !s.opts.FallbackToBuiltin {
			return err
		}
	}

	source := SourceDatabase
	if s.catalog == nil || statsErr != nil || len(stats) == 0 {
		if statsErr != nil {
			s.logger.Warn("statistics unavailable, using built-in catalog", "error", statsErr)
		}
		if s.catalog != nil && !s.opts.FallbackToBuiltin {
			return &store.LoadError{Op: "statistics", Err: errors.New("catalog has no statistics")}
		}
		stats = scoring.DefaultCatalog()
		source = SourceBuiltin
	}

	strategies := scoring.BuiltinStrategies()
	activeKey := ""
	if recErr != nil {
		s.logger.Warn("strategies unavailable, using built-in presets", "error", recErr)
	} else if len(records) > 0 {
		strategies = make([]scoring.Strategy, 0, len(records))
		for _, r := range records {
			st := r.Strategy()
			strategies = append(strategies, st)
			if r.IsActive {
				activeKey = st.Key
			}
		}
	}

	for i := range stats {
		stats[i].Scores = stats[i].Scores.WithDefaults()
	}

	s.mu.Lock()
	local := make(map[uuid.UUID]scoring.DimensionScores)
	for _, st := range s.stats {
		if s.keepLocal(st.ID, mark) {
			local[st.ID] = st.Scores
		}
	}
	kept := make(map[uuid.UUID]uint64, len(s.dirty))
	for i := range stats {
		if scores, ok := local[stats[i].ID]; ok {
			stats[i].Scores = scores
			if v, dirty := s.dirty[stats[i].ID]; dirty {
				kept[stats[i].ID] = v
			}
		}
	}
	for id, v := range s.edited {
		if v <= mark.version {
			delete(s.edited, id)
		}
	}

	s.stats = stats
	s.strategies = strategies
	s.source = source
	s.dirty = kept
	s.loadedAt = time.Now()

	applied := false
	if activeKey != "" && !s.weightsDirty && s.storedStrategyCurrent(mark) {
		if strat, ok := scoring.FindStrategy(strategies, activeKey); ok {
			before, selected := s.allocator.Weights(), s.allocator.Selected()
			if err := s.allocator.ApplyStrategy(strat); err != nil {
				s.logger.Warn("stored active strategy rejected", "strategy", strat.Name, "error", err)
			} else if before != s.allocator.Weights() || selected != s.allocator.Selected() {
				s.sorted = false
				applied = true
			}
		}
	}
	evt := events.CatalogReloadedEvent{
		Source:     string(source),
		Statistics: len(stats),
		Strategies: len(strategies),
		LoadedAt:   s.loadedAt,
	}
	s.mu.Unlock()

	telemetry.CatalogLoads.WithLabelValues(string(source)).Inc()
	s.logger.Info("catalog loaded",
		"source", source,
		"statistics", len(stats),
		"strategies", len(strategies),
		"active_strategy", activeKey,
		"applied", applied,
	)
	s.publish(evt)
	return nil
}

func (s *Session) markFetch() fetchMark {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make(map[uuid.UUID]bool, len(s.dirty))
	for id := range s.dirty {
		pending[id] = true
	}
	return fetchMark{
		version:    s.version,
		weightsGen: s.weightsGen,
		pending:    pending,
		activating: s.activating > 0,
	}
}

// keepLocal reports whether the local scores for id win over a fetched row.
// That holds while a write is outstanding, and for any edit made after the
// fetch started even if it has since been saved.
func (s *Session) keepLocal(id uuid.UUID, mark fetchMark) bool {
	if _, dirty := s.dirty[id]; dirty {
		return true
	}
	return mark.pending[id] || s.edited[id] > mark.version
}

// storedStrategyCurrent reports whether the active flag read by the fetch can
// still be trusted: no weights changed and no activation was in flight.
func (s *Session) storedStrategyCurrent(mark fetchMark) bool {
	return s.weightsGen == mark.weightsGen && !mark.activating && s.activating == 0
}

// View ranks the current statistics under the current weights.
func (s *Session) View() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	weights := s.allocator.Weights()
	ranked := scoring.Rank(s.stats, weights, s.sorted)
	strategies := make([]scoring.Strategy, len(s.strategies))
	copy(strategies, s.strategies)
	return Snapshot{
		Weights:    weights,
		Locks:      s.allocator.Locks(),
		Selected:   s.allocator.Selected(),
		Sorted:     s.sorted,
		Source:     s.source,
		Strategies: strategies,
		Statistics: ranked,
		Summary:    scoring.Summarize(ranked, weights, s.opts.SummaryTopN),
		Unsaved:    len(s.dirty),
		LoadedAt:   s.loadedAt,
	}
}

func (s *Session) Strategies() []scoring.Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scoring.Strategy, len(s.strategies))
	copy(out, s.strategies)
	return out
}

// SetWeight moves one weight and redistributes the others. The view drops
// back to unsorted.
func (s *Session) SetWeight(d scoring.Dimension, value float64) (Snapshot, error) {
	s.mu.Lock()
	if _, err := s.allocator.SetDimension(d, value); err != nil {
		s.mu.Unlock()
		telemetry.WeightUpdates.WithLabelValues(telemetry.ResultRejected).Inc()
		return Snapshot{}, err
	}
	s.sorted = false
	s.weightsDirty = true
	s.weightsGen++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	telemetry.WeightUpdates.WithLabelValues(telemetry.ResultOK).Inc()
	s.publishWeights(snap, "set_weight")
	return snap, nil
}

// ToggleLock flips the lock on d. Weights and ordering are untouched.
func (s *Session) ToggleLock(d scoring.Dimension) (Snapshot, error) {
	s.mu.Lock()
	if _, err := s.allocator.ToggleLock(d); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publishWeights(snap, "toggle_lock")
	return snap, nil
}

// ApplyStrategy switches to the preset with the given key and marks it active
// in the catalog. Marking is best effort.
func (s *Session) ApplyStrategy(ctx context.Context, key string) (Snapshot, error) {
	s.mu.Lock()
	strat, ok := scoring.FindStrategy(s.strategies, key)
	if !ok {
		s.mu.Unlock()
		telemetry.WeightUpdates.WithLabelValues(telemetry.ResultRejected).Inc()
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, key)
	}
	if err := s.allocator.ApplyStrategy(strat); err != nil {
		s.mu.Unlock()
		telemetry.WeightUpdates.WithLabelValues(telemetry.ResultRejected).Inc()
		return Snapshot{}, err
	}
	s.sorted = false
	s.weightsDirty = false
	s.weightsGen++
	persist := s.catalog != nil && s.source == SourceDatabase
	if persist {
		s.activating++
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	telemetry.WeightUpdates.WithLabelValues(telemetry.ResultOK).Inc()
	if persist {
		if err := s.catalog.SetActiveStrategy(ctx, strat.Name); err != nil {
			telemetry.PersistFailures.WithLabelValues("active_strategy").Inc()
			s.logger.Warn("failed to mark strategy active", "strategy", strat.Name, "error", err)
		}
		s.mu.Lock()
		s.activating--
		s.mu.Unlock()
	}

	s.publish(events.StrategyAppliedEvent{
		Key:     strat.Key,
		Name:    strat.Name,
		Weights: strat.Weights,
	})
	return snap, nil
}

// UpdateScore changes one score locally, then writes it through to the
// catalog when the statistics came from there. A failed write leaves the
// statistic marked unsaved; it is not an error for the caller.
func (s *Session) UpdateScore(ctx context.Context, id uuid.UUID, d scoring.Dimension, score int) (*ScoreUpdate, error) {
	s.mu.Lock()
	next, err := scoring.UpdateScore(s.stats, id, d, score)
	if err != nil {
		s.mu.Unlock()
		telemetry.ScoreUpdates.WithLabelValues(telemetry.ResultRejected).Inc()
		return nil, err
	}
	s.stats = next
	s.sorted = false
	s.version++
	version := s.version
	s.dirty[id] = version
	s.edited[id] = version

	var stat scoring.Statistic
	for _, st := range next {
		if st.ID == id {
			stat = st
			break
		}
	}
	weights := s.allocator.Weights()
	persist := s.catalog != nil && s.source == SourceDatabase
	s.mu.Unlock()

	res := &ScoreUpdate{
		Statistic:     stat,
		WeightedScore: scoring.ComputeWeightedScore(stat, weights),
	}
	if persist {
		if _, err := s.catalog.PersistScore(ctx, id, d, score); err != nil {
			telemetry.PersistFailures.WithLabelValues("score").Inc()
			s.logger.Warn("failed to persist score",
				"statistic_id", id, "dimension", d, "score", score, "error", err)
			res.PersistError = err.Error()
		} else {
			res.Persisted = true
			s.mu.Lock()
			if s.dirty[id] == version {
				delete(s.dirty, id)
			}
			s.mu.Unlock()
		}
	}

	telemetry.ScoreUpdates.WithLabelValues(telemetry.ResultOK).Inc()
	s.publish(events.ScoreUpdatedEvent{
		StatisticID:   id.String(),
		Dimension:     d,
		Score:         score,
		WeightedScore: res.WeightedScore,
		Persisted:     res.Persisted,
	})
	return res, nil
}

// SortByPriority is the only transition into the sorted view.
func (s *Session) SortByPriority() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorted = true
	return s.snapshotLocked()
}

// SaveWeights stores the current weights as the active custom strategy.
func (s *Session) SaveWeights(ctx context.Context) (*store.StrategyRecord, error) {
	if s.catalog == nil {
		return nil, ErrNoCatalog
	}
	s.mu.Lock()
	w := s.allocator.Weights()
	s.mu.Unlock()

	rec, err := s.catalog.PersistWeights(ctx, w)
	if err != nil {
		telemetry.PersistFailures.WithLabelValues("weights").Inc()
		return nil, err
	}

	saved := rec.Strategy()
	s.mu.Lock()
	if s.allocator.Weights() == w {
		s.weightsDirty = false
	}
	replaced := false
	for i := range s.strategies {
		if s.strategies[i].Key == saved.Key {
			s.strategies[i] = saved
			replaced = true
		}
	}
	if !replaced {
		s.strategies = append(s.strategies, saved)
	}
	s.mu.Unlock()

	s.logger.Info("weights saved", "strategy", rec.Name,
		"validity", w.Validity, "relevance", w.Relevance, "actionability", w.Actionability)
	s.publish(events.WeightsSavedEvent{
		Key:     saved.Key,
		Name:    saved.Name,
		Weights: saved.Weights,
	})
	return rec, nil
}

// Sync upserts every local statistic into the catalog and clears the unsaved
// marks that were not superseded while the write was in flight.
func (s *Session) Sync(ctx context.Context) (int, error) {
	if s.catalog == nil {
		return 0, ErrNoCatalog
	}
	s.mu.Lock()
	stats := make([]scoring.Statistic, len(s.stats))
	copy(stats, s.stats)
	versions := make(map[uuid.UUID]uint64, len(s.dirty))
	for id, v := range s.dirty {
		versions[id] = v
	}
	s.mu.Unlock()

	if err := s.catalog.SyncStatistics(ctx, stats); err != nil {
		telemetry.PersistFailures.WithLabelValues("sync").Inc()
		return 0, err
	}

	s.mu.Lock()
	for id, v := range versions {
		if s.dirty[id] == v {
			delete(s.dirty, id)
		}
	}
	s.source = SourceDatabase
	s.mu.Unlock()

	s.logger.Info("statistics synced", "count", len(stats))
	s.publish(events.CatalogSyncedEvent{Count: len(stats)})
	return len(stats), nil
}

// Explain breaks one statistic's weighted score down by dimension.
func (s *Session) Explain(id uuid.UUID) (*Explanation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	weights := s.allocator.Weights()
	for _, st := range s.stats {
		if st.ID == id {
			return &Explanation{
				Statistic:     st,
				WeightedScore: scoring.ComputeWeightedScore(st, weights),
				Factors:       scoring.Explain(st, weights),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", scoring.ErrStatisticNotFound, id)
}

func (s *Session) publishWeights(snap Snapshot, trigger string) {
	s.publish(events.WeightsUpdatedEvent{
		Weights:  snap.Weights,
		Locks:    snap.Locks,
		Selected: snap.Selected,
		Trigger:  trigger,
	})
}

func (s *Session) publish(e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.Background(), e); err != nil {
		s.logger.Warn("failed to publish event", "subject", e.Subject(), "error", err)
	}
}
