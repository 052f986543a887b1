// Package supabase reads and writes the catalog through a hosted
// PostgREST endpoint using the project's anon key.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
	"github.com/MikeSquared-Agency/Moneyball/internal/store"
)

const restPrefix = "/rest/v1/"

type statisticRow struct {
	ID                    uuid.UUID `json:"id"`
	Position              int       `json:"position"`
	Statistic             string    `json:"statistic"`
	WhyItMatters          string    `json:"why_it_matters"`
	UnderlyingAssumptions string    `json:"underlying_assumptions"`
	PotentialFlaws        string    `json:"potential_flaws"`
	ValidityScore         int       `json:"validity_score"`
	RelevanceScore        int       `json:"relevance_score"`
	ActionabilityScore    int       `json:"actionability_score"`
}

func (r statisticRow) statistic() scoring.Statistic {
	return scoring.Statistic{
		ID:          r.ID,
		Name:        r.Statistic,
		Rationale:   r.WhyItMatters,
		Assumptions: r.UnderlyingAssumptions,
		Caveats:     r.PotentialFlaws,
		Scores: scoring.DimensionScores{
			Validity:      r.ValidityScore,
			Relevance:     r.RelevanceScore,
			Actionability: r.ActionabilityScore,
		},
	}
}

type strategyRow struct {
	ID                  uuid.UUID `json:"id"`
	StrategyName        string    `json:"strategy_name"`
	Description         string    `json:"description"`
	ValidityWeight      float64   `json:"validity_weight"`
	RelevanceWeight     float64   `json:"relevance_weight"`
	ActionabilityWeight float64   `json:"actionability_weight"`
	IsActive            bool      `json:"is_active"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (r strategyRow) record() store.StrategyRecord {
	return store.StrategyRecord{
		ID:          r.ID,
		Name:        r.StrategyName,
		Description: r.Description,
		Weights: scoring.WeightVector{
			Validity:      r.ValidityWeight,
			Relevance:     r.RelevanceWeight,
			Actionability: r.ActionabilityWeight,
		},
		IsActive:  r.IsActive,
		UpdatedAt: r.UpdatedAt,
	}
}

// Client implements store.Catalog over PostgREST. Writes that touch more
// than one row are issued as separate requests and are not atomic.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

var _ store.Catalog = (*Client)(nil)

func (c *Client) doReq(ctx context.Context, method, path string, body interface{}, prefer string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+restPrefix+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("supabase %s %s: %d %s", method, path, resp.StatusCode, string(data))
	}
	return data, nil
}

func (c *Client) LoadStatistics(ctx context.Context) ([]scoring.Statistic, error) {
	data, err := c.doReq(ctx, http.MethodGet,
		"service_statistics?select=*&order=position.asc,created_at.asc", nil, "")
	if err != nil {
		return nil, &store.LoadError{Op: "statistics", Err: err}
	}
	var rows []statisticRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &store.LoadError{Op: "statistics", Err: err}
	}
	stats := make([]scoring.Statistic, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, r.statistic())
	}
	return stats, nil
}

func (c *Client) LoadStrategies(ctx context.Context) ([]store.StrategyRecord, error) {
	data, err := c.doReq(ctx, http.MethodGet,
		"strategy_weights?select=*&order=strategy_name.asc", nil, "")
	if err != nil {
		return nil, &store.LoadError{Op: "strategies", Err: err}
	}
	var rows []strategyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &store.LoadError{Op: "strategies", Err: err}
	}
	records := make([]store.StrategyRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

func (c *Client) PersistScore(ctx context.Context, id uuid.UUID, d scoring.Dimension, score int) (*scoring.Statistic, error) {
	if _, err := scoring.DefaultScores().Set(d, score); err != nil {
		return nil, err
	}

	patch := map[string]int{string(d) + "_score": score}
	data, err := c.doReq(ctx, http.MethodPatch,
		"service_statistics?id=eq."+id.String(), patch, "return=representation")
	if err != nil {
		return nil, &store.PersistError{Op: "score", Err: err}
	}
	var rows []statisticRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &store.PersistError{Op: "score", Err: err}
	}
	if len(rows) == 0 {
		return nil, &store.PersistError{Op: "score", Err: fmt.Errorf("statistic %s: %w", id, store.ErrNotFound)}
	}
	st := rows[0].statistic()
	return &st, nil
}

func (c *Client) PersistWeights(ctx context.Context, w scoring.WeightVector) (*store.StrategyRecord, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	if _, err := c.doReq(ctx, http.MethodPatch,
		"strategy_weights?is_active=is.true&strategy_name=neq."+url.PathEscape(scoring.CustomStrategyName),
		map[string]bool{"is_active": false}, "return=minimal"); err != nil {
		return nil, &store.PersistError{Op: "weights", Err: err}
	}

	row := strategyRow{
		StrategyName:        scoring.CustomStrategyName,
		Description:         "User-defined custom weighting strategy",
		ValidityWeight:      w.Validity,
		RelevanceWeight:     w.Relevance,
		ActionabilityWeight: w.Actionability,
		IsActive:            true,
	}
	data, err := c.doReq(ctx, http.MethodPost,
		"strategy_weights?on_conflict=strategy_name", upsertStrategyBody(row),
		"resolution=merge-duplicates,return=representation")
	if err != nil {
		return nil, &store.PersistError{Op: "weights", Err: err}
	}
	var rows []strategyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &store.PersistError{Op: "weights", Err: err}
	}
	if len(rows) == 0 {
		return nil, &store.PersistError{Op: "weights", Err: fmt.Errorf("upsert returned no rows")}
	}
	rec := rows[0].record()
	return &rec, nil
}

// upsertStrategyBody leaves id and timestamps to the database.
func upsertStrategyBody(r strategyRow) map[string]interface{} {
	return map[string]interface{}{
		"strategy_name":        r.StrategyName,
		"description":          r.Description,
		"validity_weight":      r.ValidityWeight,
		"relevance_weight":     r.RelevanceWeight,
		"actionability_weight": r.ActionabilityWeight,
		"is_active":            r.IsActive,
	}
}

func (c *Client) SetActiveStrategy(ctx context.Context, name string) error {
	if _, err := c.doReq(ctx, http.MethodPatch, "strategy_weights?is_active=is.true",
		map[string]bool{"is_active": false}, "return=minimal"); err != nil {
		return &store.PersistError{Op: "active strategy", Err: err}
	}

	data, err := c.doReq(ctx, http.MethodPatch,
		"strategy_weights?strategy_name=eq."+url.PathEscape(name),
		map[string]bool{"is_active": true}, "return=representation")
	if err != nil {
		return &store.PersistError{Op: "active strategy", Err: err}
	}
	var rows []strategyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return &store.PersistError{Op: "active strategy", Err: err}
	}
	if len(rows) == 0 {
		return &store.PersistError{Op: "active strategy", Err: fmt.Errorf("strategy %q: %w", name, store.ErrNotFound)}
	}
	return nil
}

func (c *Client) SyncStatistics(ctx context.Context, stats []scoring.Statistic) error {
	if len(stats) == 0 {
		return nil
	}
	rows := make([]statisticRow, 0, len(stats))
	for i, st := range stats {
		if err := st.Scores.Validate(); err != nil {
			return err
		}
		rows = append(rows, statisticRow{
			ID:                    st.ID,
			Position:              i,
			Statistic:             st.Name,
			WhyItMatters:          st.Rationale,
			UnderlyingAssumptions: st.Assumptions,
			PotentialFlaws:        st.Caveats,
			ValidityScore:         st.Scores.Validity,
			RelevanceScore:        st.Scores.Relevance,
			ActionabilityScore:    st.Scores.Actionability,
		})
	}

	_, err := c.doReq(ctx, http.MethodPost, "service_statistics?on_conflict=id", rows,
		"resolution=merge-duplicates,return=minimal")
	if err != nil {
		return &store.PersistError{Op: "sync", Err: err}
	}
	return nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
