package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tabserve/internal/domain"
)

func tokenParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "token")
	token, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.ErrValidation("invalid job token %q", raw)
	}
	return token, nil
}

// GetJob returns the full job record: status, progress steps, and the
// result payload once completed.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	token, err := tokenParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	j, err := h.jobs.Get(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// ListJobs returns all live jobs, newest first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// CancelJob cancels a pending or running job. The response reports
// whether this request performed the cancellation; cancelling an already
// terminal job is not an error.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	token, err := tokenParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cancelled, err := h.jobs.Cancel(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"cancelled": cancelled,
	})
}

// JobHistory returns terminal jobs from the persistent audit store,
// newest first. 404 when history is not configured.
func (h *Handler) JobHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, domain.ErrNotFound("job history is not configured"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, domain.ErrValidation("invalid limit %q", v))
			return
		}
		limit = n
	}
	entries, err := h.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.JobHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}
