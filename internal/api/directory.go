package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Moneyball/internal/dashboard"
	"github.com/MikeSquared-Agency/Moneyball/internal/store"
)

// DirectoryHandler serves the administrative CRUD surface.
type DirectoryHandler struct {
	dir     store.Directory
	session *dashboard.Session
	logger  *slog.Logger
}

func NewDirectoryHandler(dir store.Directory, s *dashboard.Session, logger *slog.Logger) *DirectoryHandler {
	return &DirectoryHandler{dir: dir, session: s, logger: logger}
}

// --- Organizations ---

// ListOrganizations handles GET /api/v1/organizations
func (h *DirectoryHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.dir.ListOrganizations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if orgs == nil {
		orgs = []*store.Organization{}
	}
	writeJSON(w, http.StatusOK, orgs)
}

// GetOrganization handles GET /api/v1/organizations/{id}
func (h *DirectoryHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	o, err := h.dir.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if o == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "organization not found"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// CreateOrganization handles POST /api/v1/organizations
func (h *DirectoryHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var o store.Organization
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	o.ID = uuid.Nil
	if err := h.dir.CreateOrganization(r.Context(), &o); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// UpdateOrganization handles PUT /api/v1/organizations/{id}
func (h *DirectoryHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var o store.Organization
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	o.ID = id
	if err := h.dir.UpdateOrganization(r.Context(), &o); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// DeleteOrganization handles DELETE /api/v1/organizations/{id}
func (h *DirectoryHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.dir.DeleteOrganization(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Metrics ---

// ListMetrics handles GET /api/v1/metrics?organization_id=&category=
func (h *DirectoryHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	var filter store.MetricFilter
	if v := r.URL.Query().Get("organization_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(w, "invalid organization_id")
			return
		}
		filter.OrganizationID = &id
	}
	filter.Category = r.URL.Query().Get("category")

	metrics, err := h.dir.ListMetrics(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if metrics == nil {
		metrics = []*store.Metric{}
	}
	writeJSON(w, http.StatusOK, metrics)
}

// GetMetric handles GET /api/v1/metrics/{id}
func (h *DirectoryHandler) GetMetric(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	m, err := h.dir.GetMetric(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if m == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "metric not found"})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// CreateMetric handles POST /api/v1/metrics
func (h *DirectoryHandler) CreateMetric(w http.ResponseWriter, r *http.Request) {
	var m store.Metric
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	m.ID = uuid.Nil
	if err := h.dir.CreateMetric(r.Context(), &m); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// UpdateMetric handles PUT /api/v1/metrics/{id}
func (h *DirectoryHandler) UpdateMetric(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var m store.Metric
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	m.ID = id
	if err := h.dir.UpdateMetric(r.Context(), &m); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteMetric handles DELETE /api/v1/metrics/{id}
func (h *DirectoryHandler) DeleteMetric(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.dir.DeleteMetric(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Strategies ---

// UpsertStrategy handles POST /api/v1/strategies
func (h *DirectoryHandler) UpsertStrategy(w http.ResponseWriter, r *http.Request) {
	var rec store.StrategyRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := h.dir.UpsertStrategy(r.Context(), &rec); err != nil {
		writeError(w, err)
		return
	}
	h.reload(r)
	writeJSON(w, http.StatusOK, rec)
}

// DeleteStrategy handles DELETE /api/v1/strategies/{name}
func (h *DirectoryHandler) DeleteStrategy(w http.ResponseWriter, r *http.Request) {
	if err := h.dir.DeleteStrategy(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	h.reload(r)
	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /api/v1/summary
func (h *DirectoryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.dir.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// reload refreshes the dashboard's strategy list after a directory write.
func (h *DirectoryHandler) reload(r *http.Request) {
	if err := h.session.Load(r.Context()); err != nil {
		h.logger.Warn("failed to reload catalog after strategy change", "error", err)
	}
}
