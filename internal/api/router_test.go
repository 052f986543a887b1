package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Moneyball/internal/config"
	"github.com/MikeSquared-Agency/Moneyball/internal/dashboard"
	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
	"github.com/MikeSquared-Agency/Moneyball/internal/store"
)

// MockDirectory implements store.Directory for testing
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ListOrganizations(ctx context.Context) ([]*store.Organization, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Organization), args.Error(1)
}

func (m *MockDirectory) GetOrganization(ctx context.Context, id uuid.UUID) (*store.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Organization), args.Error(1)
}

func (m *MockDirectory) CreateOrganization(ctx context.Context, o *store.Organization) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockDirectory) UpdateOrganization(ctx context.Context, o *store.Organization) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockDirectory) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDirectory) ListMetrics(ctx context.Context, filter store.MetricFilter) ([]*store.Metric, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Metric), args.Error(1)
}

func (m *MockDirectory) GetMetric(ctx context.Context, id uuid.UUID) (*store.Metric, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Metric), args.Error(1)
}

func (m *MockDirectory) CreateMetric(ctx context.Context, mt *store.Metric) error {
	return m.Called(ctx, mt).Error(0)
}

func (m *MockDirectory) UpdateMetric(ctx context.Context, mt *store.Metric) error {
	return m.Called(ctx, mt).Error(0)
}

func (m *MockDirectory) DeleteMetric(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDirectory) UpsertStrategy(ctx context.Context, r *store.StrategyRecord) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockDirectory) DeleteStrategy(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockDirectory) Summary(ctx context.Context) (*store.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Summary), args.Error(1)
}

// stubCatalog fails every call with the configured errors.
type stubCatalog struct {
	loadErr    error
	persistErr error
}

func (c *stubCatalog) LoadStatistics(context.Context) ([]scoring.Statistic, error) {
	return nil, c.loadErr
}
func (c *stubCatalog) LoadStrategies(context.Context) ([]store.StrategyRecord, error) {
	return nil, c.loadErr
}
func (c *stubCatalog) PersistScore(context.Context, uuid.UUID, scoring.Dimension, int) (*scoring.Statistic, error) {
	return nil, c.persistErr
}
func (c *stubCatalog) PersistWeights(context.Context, scoring.WeightVector) (*store.StrategyRecord, error) {
	return nil, c.persistErr
}
func (c *stubCatalog) SetActiveStrategy(context.Context, string) error {
	return c.persistErr
}
func (c *stubCatalog) SyncStatistics(context.Context, []scoring.Statistic) error {
	return c.persistErr
}
func (c *stubCatalog) Close() error { return nil }

const adminToken = "test-admin"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(catalog store.Catalog, dir store.Directory) (http.Handler, *dashboard.Session) {
	s := dashboard.NewSession(catalog, nil, dashboard.Options{DefaultStrategy: scoring.BalancedKey}, testLogger())
	cfg := config.ServerConfig{AdminToken: adminToken}
	return NewRouter(s, dir, cfg, testLogger()), s
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) dashboard.Snapshot {
	t.Helper()
	var snap dashboard.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func TestGetDashboard(t *testing.T) {
	h, _ := newTestRouter(nil, nil)
	w := doRequest(t, h, http.MethodGet, "/api/v1/dashboard", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w)
	assert.Equal(t, dashboard.SourceBuiltin, snap.Source)
	assert.Len(t, snap.Statistics, 10)
	assert.Equal(t, scoring.NamedStrategy(scoring.BalancedKey), snap.Selected)
	assert.False(t, snap.Sorted)
}

func TestSetWeight(t *testing.T) {
	h, _ := newTestRouter(nil, nil)

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"valid", "/api/v1/weights/validity", map[string]float64{"value": 0.5}, http.StatusOK},
		{"out of range", "/api/v1/weights/validity", map[string]float64{"value": 1.2}, http.StatusUnprocessableEntity},
		{"unknown dimension", "/api/v1/weights/cost", map[string]float64{"value": 0.5}, http.StatusBadRequest},
		{"missing value", "/api/v1/weights/relevance", map[string]string{}, http.StatusBadRequest},
		{"malformed body", "/api/v1/weights/relevance", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, http.MethodPut, tt.path, tt.body, false)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSetWeightResponse(t *testing.T) {
	h, _ := newTestRouter(nil, nil)
	w := doRequest(t, h, http.MethodPut, "/api/v1/weights/Actionability", map[string]float64{"value": 0.6}, false)
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w)
	assert.True(t, snap.Selected.IsNone())
	assert.InDelta(t, 0.6, snap.Weights.Actionability, 1e-9)
	assert.InDelta(t, 0.2, snap.Weights.Validity, 1e-9)
	assert.InDelta(t, 0.2, snap.Weights.Relevance, 1e-9)
}

func TestLockBlocksWeightChange(t *testing.T) {
	h, _ := newTestRouter(nil, nil)

	w := doRequest(t, h, http.MethodPost, "/api/v1/weights/relevance/lock", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeSnapshot(t, w).Locks.Relevance)

	w = doRequest(t, h, http.MethodPut, "/api/v1/weights/relevance", map[string]float64{"value": 0.1}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(t, h, http.MethodPut, "/api/v1/weights/validity", map[string]float64{"value": 0.5}, false)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, 0.33, snap.Weights.Relevance)
	assert.InDelta(t, 0.17, snap.Weights.Actionability, 1e-9)
}

func TestApplyStrategy(t *testing.T) {
	h, _ := newTestRouter(nil, nil)

	w := doRequest(t, h, http.MethodPost, "/api/v1/strategies/maintenance-first/apply", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, scoring.NamedStrategy(scoring.MaintenanceFirstKey), snap.Selected)
	assert.Equal(t, 0.5, snap.Weights.Actionability)

	w = doRequest(t, h, http.MethodPost, "/api/v1/strategies/aggressive/apply", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListStrategies(t *testing.T) {
	h, _ := newTestRouter(nil, nil)
	w := doRequest(t, h, http.MethodGet, "/api/v1/strategies", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Strategies []scoring.Strategy       `json:"strategies"`
		Selected   scoring.SelectedStrategy `json:"selected_strategy"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Strategies, 3)
	assert.Equal(t, scoring.NamedStrategy(scoring.BalancedKey), body.Selected)
}

func TestSortAndScoreEdit(t *testing.T) {
	h, _ := newTestRouter(nil, nil)

	w := doRequest(t, h, http.MethodPost, "/api/v1/dashboard/sort", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	require.True(t, snap.Sorted)
	for i := 1; i < len(snap.Statistics); i++ {
		assert.GreaterOrEqual(t, snap.Statistics[i-1].WeightedScore, snap.Statistics[i].WeightedScore)
	}

	id := scoring.DefaultCatalog()[0].ID
	w = doRequest(t, h, http.MethodPut, fmt.Sprintf("/api/v1/statistics/%s/scores/validity", id), map[string]int{"score": 1}, false)
	require.Equal(t, http.StatusOK, w.Code)

	var res dashboard.ScoreUpdate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Statistic.Scores.Validity)
	assert.False(t, res.Persisted)

	w = doRequest(t, h, http.MethodGet, "/api/v1/dashboard", nil, false)
	snap = decodeSnapshot(t, w)
	assert.False(t, snap.Sorted)
	assert.Equal(t, id, snap.Statistics[0].ID)
}

func TestUpdateScoreErrors(t *testing.T) {
	h, _ := newTestRouter(nil, nil)
	id := scoring.DefaultCatalog()[0].ID

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"out of range", fmt.Sprintf("/api/v1/statistics/%s/scores/validity", id), map[string]int{"score": 6}, http.StatusUnprocessableEntity},
		{"fractional", fmt.Sprintf("/api/v1/statistics/%s/scores/validity", id), `{"score": 4.5}`, http.StatusBadRequest},
		{"missing", fmt.Sprintf("/api/v1/statistics/%s/scores/validity", id), `{}`, http.StatusBadRequest},
		{"unknown statistic", fmt.Sprintf("/api/v1/statistics/%s/scores/validity", uuid.New()), map[string]int{"score": 4}, http.StatusNotFound},
		{"bad id", "/api/v1/statistics/not-a-uuid/scores/validity", map[string]int{"score": 4}, http.StatusBadRequest},
		{"bad dimension", fmt.Sprintf("/api/v1/statistics/%s/scores/cost", id), map[string]int{"score": 4}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, http.MethodPut, tt.path, tt.body, false)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestExplainStatistic(t *testing.T) {
	h, _ := newTestRouter(nil, nil)
	id := scoring.DefaultCatalog()[2].ID

	w := doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/statistics/%s/explain", id), nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var exp dashboard.Explanation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exp))
	assert.Equal(t, id, exp.Statistic.ID)
	assert.Len(t, exp.Factors, 3)

	w = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/statistics/%s/explain", uuid.New()), nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWritesWithoutCatalog(t *testing.T) {
	h, _ := newTestRouter(nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, h, http.MethodPost, "/api/v1/weights/save", nil, false).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, h, http.MethodPost, "/api/v1/dashboard/sync", nil, false).Code)
}

func TestBackendFailuresMapToBadGateway(t *testing.T) {
	cat := &stubCatalog{
		loadErr:    &store.LoadError{Op: "statistics", Err: errors.New("connection refused")},
		persistErr: &store.PersistError{Op: "weights", Err: errors.New("permission denied")},
	}
	h, _ := newTestRouter(cat, nil)

	w := doRequest(t, h, http.MethodPost, "/api/v1/weights/save", nil, false)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = doRequest(t, h, http.MethodPost, "/api/v1/dashboard/refresh", nil, false)
	assert.Equal(t, http.StatusBadGateway, w.Code, "refresh without fallback surfaces the load error")
}

func TestAdminRoutesRequireDirectory(t *testing.T) {
	h, _ := newTestRouter(nil, nil)
	w := doRequest(t, h, http.MethodGet, "/api/v1/organizations", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrganizations(t *testing.T) {
	dir := new(MockDirectory)
	h, _ := newTestRouter(nil, dir)
	orgID := uuid.New()

	dir.On("ListOrganizations", mock.Anything).Return([]*store.Organization{{ID: orgID, Name: "Crisis Line"}}, nil)
	dir.On("GetOrganization", mock.Anything, orgID).Return(&store.Organization{ID: orgID, Name: "Crisis Line"}, nil)
	dir.On("GetOrganization", mock.Anything, mock.Anything).Return(nil, nil)
	dir.On("CreateOrganization", mock.Anything, mock.MatchedBy(func(o *store.Organization) bool {
		return o.Name == ""
	})).Return(&scoring.ValidationError{Field: "name", Reason: "required"})
	dir.On("CreateOrganization", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*store.Organization).ID = orgID
	}).Return(nil)
	dir.On("DeleteOrganization", mock.Anything, orgID).Return(nil)
	dir.On("DeleteOrganization", mock.Anything, mock.Anything).Return(fmt.Errorf("organization: %w", store.ErrNotFound))

	w := doRequest(t, h, http.MethodGet, "/api/v1/organizations", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, h, http.MethodGet, "/api/v1/organizations", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var orgs []store.Organization
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orgs))
	require.Len(t, orgs, 1)
	assert.Equal(t, "Crisis Line", orgs[0].Name)

	w = doRequest(t, h, http.MethodGet, "/api/v1/organizations/"+orgID.String(), nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, h, http.MethodGet, "/api/v1/organizations/"+uuid.New().String(), nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, h, http.MethodPost, "/api/v1/organizations", map[string]string{"type": "nonprofit"}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(t, h, http.MethodPost, "/api/v1/organizations", map[string]string{"name": "Food Bank"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	var created store.Organization
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, orgID, created.ID)

	assert.Equal(t, http.StatusNoContent, doRequest(t, h, http.MethodDelete, "/api/v1/organizations/"+orgID.String(), nil, true).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, h, http.MethodDelete, "/api/v1/organizations/"+uuid.New().String(), nil, true).Code)
}

func TestUpdateOrganizationUsesPathID(t *testing.T) {
	dir := new(MockDirectory)
	h, _ := newTestRouter(nil, dir)
	orgID := uuid.New()

	dir.On("UpdateOrganization", mock.Anything, mock.MatchedBy(func(o *store.Organization) bool {
		return o.ID == orgID && o.Name == "Renamed"
	})).Return(nil)

	body := map[string]string{"id": uuid.New().String(), "name": "Renamed"}
	w := doRequest(t, h, http.MethodPut, "/api/v1/organizations/"+orgID.String(), body, true)
	assert.Equal(t, http.StatusOK, w.Code)
	dir.AssertExpectations(t)
}

func TestListMetricsFilter(t *testing.T) {
	dir := new(MockDirectory)
	h, _ := newTestRouter(nil, dir)
	orgID := uuid.New()

	dir.On("ListMetrics", mock.Anything, store.MetricFilter{OrganizationID: &orgID, Category: "quality"}).
		Return([]*store.Metric{{ID: uuid.New(), Name: "Accuracy"}}, nil)

	w := doRequest(t, h, http.MethodGet, "/api/v1/metrics?organization_id="+orgID.String()+"&category=quality", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	dir.AssertExpectations(t)

	w = doRequest(t, h, http.MethodGet, "/api/v1/metrics?organization_id=nope", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEmptyList(t *testing.T) {
	dir := new(MockDirectory)
	h, _ := newTestRouter(nil, dir)
	dir.On("ListMetrics", mock.Anything, store.MetricFilter{}).Return(nil, nil)

	w := doRequest(t, h, http.MethodGet, "/api/v1/metrics", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestStrategyDirectory(t *testing.T) {
	dir := new(MockDirectory)
	h, s := newTestRouter(nil, dir)

	dir.On("UpsertStrategy", mock.Anything, mock.MatchedBy(func(r *store.StrategyRecord) bool {
		return r.Name == "Outreach Strategy"
	})).Return(nil)
	dir.On("DeleteStrategy", mock.Anything, "Outreach Strategy").Return(nil)
	dir.On("DeleteStrategy", mock.Anything, mock.Anything).Return(fmt.Errorf("strategy: %w", store.ErrNotFound))

	rec := store.StrategyRecord{
		Name:    "Outreach Strategy",
		Weights: scoring.WeightVector{Validity: 0.2, Relevance: 0.6, Actionability: 0.2},
	}
	w := doRequest(t, h, http.MethodPost, "/api/v1/strategies", rec, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.Strategies(), 3, "no catalog means the built-in presets stay in place")

	assert.Equal(t, http.StatusNoContent, doRequest(t, h, http.MethodDelete, "/api/v1/strategies/Outreach%20Strategy", nil, true).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, h, http.MethodDelete, "/api/v1/strategies/Missing", nil, true).Code)
}

func TestSummaryEndpoint(t *testing.T) {
	dir := new(MockDirectory)
	h, _ := newTestRouter(nil, dir)
	dir.On("Summary", mock.Anything).Return(&store.Summary{Statistics: 10, Strategies: 3, ActiveStrategy: "Balanced Strategy"}, nil)

	w := doRequest(t, h, http.MethodGet, "/api/v1/summary", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var sum store.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, 10, sum.Statistics)
	assert.Equal(t, "Balanced Strategy", sum.ActiveStrategy)
}

func TestMetricsRouterHealth(t *testing.T) {
	w := httptest.NewRecorder()
	NewMetricsRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
