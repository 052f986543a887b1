package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Moneyball/internal/dashboard"
	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
)

type DashboardHandler struct {
	session *dashboard.Session
}

func NewDashboardHandler(s *dashboard.Session) *DashboardHandler {
	return &DashboardHandler{session: s}
}

type SetWeightRequest struct {
	Value *float64 `json:"value"`
}

type UpdateScoreRequest struct {
	Score *int `json:"score"`
}

// Get handles GET /api/v1/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.View())
}

// Refresh handles POST /api/v1/dashboard/refresh
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Load(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.View())
}

// Sort handles POST /api/v1/dashboard/sort
func (h *DashboardHandler) Sort(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.SortByPriority())
}

// Sync handles POST /api/v1/dashboard/sync
func (h *DashboardHandler) Sync(w http.ResponseWriter, r *http.Request) {
	n, err := h.session.Sync(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"synced": n})
}

// SetWeight handles PUT /api/v1/weights/{dimension}
func (h *DashboardHandler) SetWeight(w http.ResponseWriter, r *http.Request) {
	d, ok := parseDimension(w, chi.URLParam(r, "dimension"))
	if !ok {
		return
	}
	var req SetWeightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Value == nil {
		badRequest(w, "value required")
		return
	}

	snap, err := h.session.SetWeight(d, *req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ToggleLock handles POST /api/v1/weights/{dimension}/lock
func (h *DashboardHandler) ToggleLock(w http.ResponseWriter, r *http.Request) {
	d, ok := parseDimension(w, chi.URLParam(r, "dimension"))
	if !ok {
		return
	}
	snap, err := h.session.ToggleLock(d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SaveWeights handles POST /api/v1/weights/save
func (h *DashboardHandler) SaveWeights(w http.ResponseWriter, r *http.Request) {
	rec, err := h.session.SaveWeights(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListStrategies handles GET /api/v1/strategies
func (h *DashboardHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	snap := h.session.View()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies":        snap.Strategies,
		"selected_strategy": snap.Selected,
	})
}

// ApplyStrategy handles POST /api/v1/strategies/{key}/apply
func (h *DashboardHandler) ApplyStrategy(w http.ResponseWriter, r *http.Request) {
	snap, err := h.session.ApplyStrategy(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// UpdateScore handles PUT /api/v1/statistics/{id}/scores/{dimension}
func (h *DashboardHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	d, ok := parseDimension(w, chi.URLParam(r, "dimension"))
	if !ok {
		return
	}
	var req UpdateScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "score must be an integer between 1 and 5")
		return
	}
	if req.Score == nil {
		badRequest(w, "score required")
		return
	}

	res, err := h.session.UpdateScore(r.Context(), id, d, *req.Score)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Explain handles GET /api/v1/statistics/{id}/explain
func (h *DashboardHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	exp, err := h.session.Explain(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// Dimensions handles GET /api/v1/dimensions
func (h *DashboardHandler) Dimensions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scoring.Dimensions())
}
