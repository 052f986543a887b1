package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Moneyball/internal/dashboard"
	"github.com/MikeSquared-Agency/Moneyball/internal/scoring"
	"github.com/MikeSquared-Agency/Moneyball/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		loadErr    *store.LoadError
		persistErr *store.PersistError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scoring.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, scoring.ErrStatisticNotFound),
		errors.Is(err, dashboard.ErrUnknownStrategy),
		errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dashboard.ErrNoCatalog):
		status = http.StatusServiceUnavailable
	case errors.As(err, &loadErr), errors.As(err, &persistErr):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func parseDimension(w http.ResponseWriter, raw string) (scoring.Dimension, bool) {
	d, err := scoring.ParseDimension(raw)
	if err != nil {
		badRequest(w, err.Error())
		return "", false
	}
	return d, true
}
