package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
	"github.com/MikeSquared-Agency/Moneyball/internal/store"
)

// gatedCatalog serves the same stored rows on every load. Once armed, a
// statistics fetch blocks until release is closed, so writes can land while
// a reload is holding rows read before them.
type gatedCatalog struct {
	MockCatalog
	active   string
	fetching chan struct{}
	release  chan struct{}
}

func (c *gatedCatalog) LoadStatistics(context.Context) ([]scoring.Statistic, error) {
	if c.release != nil {
		c.fetching <- struct{}{}
		<-c.release
	}
	return storedStats(), nil
}

func (c *gatedCatalog) LoadStrategies(context.Context) ([]store.StrategyRecord, error) {
	return storedStrategies(c.active), nil
}

func (c *gatedCatalog) arm() {
	c.fetching = make(chan struct{})
	c.release = make(chan struct{})
}

func newGatedSession(t *testing.T, active string) (*Session, *gatedCatalog) {
	t.Helper()
	cat := &gatedCatalog{active: active}
	s := NewSession(cat, nil, defaultOptions(), testLogger())
	require.NoError(t, s.Load(context.Background()))
	cat.arm()
	return s, cat
}

// startReload begins a Load and returns once its statistics fetch is blocked.
func startReload(s *Session, cat *gatedCatalog) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-cat.fetching
	return done
}

func scoresOf(t *testing.T, snap Snapshot, id uuid.UUID) scoring.DimensionScores {
	t.Helper()
	for _, st := range snap.Statistics {
		if st.ID == id {
			return st.Scores
		}
	}
	t.Fatalf("statistic %s not in view", id)
	return scoring.DimensionScores{}
}

func TestReloadKeepsScoreSavedDuringFetch(t *testing.T) {
	s, cat := newGatedSession(t, "")
	cat.On("PersistScore", mock.Anything, highID, scoring.Validity, 1).Return(&scoring.Statistic{ID: highID}, nil)

	done := startReload(s, cat)
	res, err := s.UpdateScore(context.Background(), highID, scoring.Validity, 1)
	require.NoError(t, err)
	require.True(t, res.Persisted)
	close(cat.release)
	require.NoError(t, <-done)

	snap := s.View()
	assert.Equal(t, 1, scoresOf(t, snap, highID).Validity, "saved edit survives the stale fetch")
	assert.Equal(t, 0, snap.Unsaved)
	assert.Equal(t, 1, scoresOf(t, snap, lowID).Validity)
}

func TestReloadKeepsScoreFailedDuringFetch(t *testing.T) {
	s, cat := newGatedSession(t, "")
	cat.On("PersistScore", mock.Anything, lowID, scoring.Relevance, 5).
		Return(nil, &store.PersistError{Op: "score", Err: errors.New("connection reset")})

	done := startReload(s, cat)
	res, err := s.UpdateScore(context.Background(), lowID, scoring.Relevance, 5)
	require.NoError(t, err)
	require.False(t, res.Persisted)
	close(cat.release)
	require.NoError(t, <-done)

	snap := s.View()
	assert.Equal(t, 5, scoresOf(t, snap, lowID).Relevance)
	assert.Equal(t, 1, snap.Unsaved)
}

func TestReloadKeepsScoreWhoseWriteFinishesDuringFetch(t *testing.T) {
	s, cat := newGatedSession(t, "")
	writing := make(chan struct{})
	cat.On("PersistScore", mock.Anything, highID, scoring.Actionability, 2).
		Run(func(mock.Arguments) { <-writing }).
		Return(&scoring.Statistic{ID: highID}, nil)

	updated := make(chan error, 1)
	go func() {
		_, err := s.UpdateScore(context.Background(), highID, scoring.Actionability, 2)
		updated <- err
	}()
	require.Eventually(t, func() bool { return s.View().Unsaved == 1 }, time.Second, time.Millisecond)

	done := startReload(s, cat)
	close(writing)
	require.NoError(t, <-updated)
	assert.Equal(t, 0, s.View().Unsaved)
	close(cat.release)
	require.NoError(t, <-done)

	assert.Equal(t, 2, scoresOf(t, s.View(), highID).Actionability)
}

func TestLaterReloadTakesStoredScores(t *testing.T) {
	s, cat := newGatedSession(t, "")
	cat.On("PersistScore", mock.Anything, highID, scoring.Validity, 1).Return(&scoring.Statistic{ID: highID}, nil)

	done := startReload(s, cat)
	_, err := s.UpdateScore(context.Background(), highID, scoring.Validity, 1)
	require.NoError(t, err)
	close(cat.release)
	require.NoError(t, <-done)

	// Nothing was edited after this fetch started, so its rows are current.
	cat.release = nil
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 5, scoresOf(t, s.View(), highID).Validity)
}

func TestReloadKeepsStrategyAppliedDuringFetch(t *testing.T) {
	s, cat := newGatedSession(t, scoring.ImpactFirstKey)
	require.Equal(t, scoring.NamedStrategy(scoring.ImpactFirstKey), s.View().Selected)
	cat.On("SetActiveStrategy", mock.Anything, "Maintenance-First Strategy").Return(nil)

	done := startReload(s, cat)
	_, err := s.ApplyStrategy(context.Background(), scoring.MaintenanceFirstKey)
	require.NoError(t, err)
	s.SortByPriority()
	close(cat.release)
	require.NoError(t, <-done)

	snap := s.View()
	assert.Equal(t, scoring.NamedStrategy(scoring.MaintenanceFirstKey), snap.Selected)
	assert.Equal(t, scoring.WeightVector{Validity: 0.2, Relevance: 0.3, Actionability: 0.5}, snap.Weights)
	assert.True(t, snap.Sorted, "a skipped strategy reapply leaves the view alone")
}

func TestReloadKeepsWeightsSetDuringFetch(t *testing.T) {
	s, cat := newGatedSession(t, scoring.ImpactFirstKey)

	done := startReload(s, cat)
	before, err := s.SetWeight(scoring.Actionability, 0.6)
	require.NoError(t, err)
	close(cat.release)
	require.NoError(t, <-done)

	snap := s.View()
	assert.Equal(t, before.Weights, snap.Weights)
	assert.True(t, snap.Selected.IsNone())
}

func TestLoadEmptyCatalogWithoutFallback(t *testing.T) {
	cat := new(MockCatalog)
	cat.On("LoadStatistics", mock.Anything).Return([]scoring.Statistic{}, nil)
	cat.On("LoadStrategies", mock.Anything).Return(storedStrategies(""), nil)

	s := NewSession(cat, nil, Options{DefaultStrategy: scoring.BalancedKey}, testLogger())
	err := s.Load(context.Background())

	var le *store.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "statistics", le.Op)
	assert.Contains(t, err.Error(), "catalog has no statistics")
}
