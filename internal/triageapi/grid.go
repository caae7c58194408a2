package triageapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/docbox/internal/triage"
)

func (a *API) handleGetGrid(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")

	limit := a.previewLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = triage.ClampPreviewLimit(n)
	}

	grid, err := a.svc.Grid(r.Context(), owner, limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "grid build failed", "owner", owner)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

type correctRequest struct {
	Zone triage.Zone `json:"zone"`
}

func (a *API) handleCorrect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req correctRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !triage.ValidZone(req.Zone) {
		writeError(w, http.StatusBadRequest, "zone must be one of STAT, TODAY, THIS_WEEK, LATER")
		return
	}

	v, err := a.svc.Correct(r.Context(), id, req.Zone)
	if err != nil {
		if errors.Is(err, triage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		a.logger.Error(r.Context(), err, "correction failed", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, v)
}
