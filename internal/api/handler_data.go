package api

import (
	"encoding/json"
	"net/http"

	"tabserve/internal/domain"
)

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// submit creates the job record and hands it to the runner. The HTTP
// response never waits for the work.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, kind domain.JobKind, params interface{}) {
	token, err := h.jobs.Create(r.Context(), kind, params)
	if err != nil {
		writeError(w, err)
		return
	}
	h.runner.Dispatch(token, kind, params)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"token":  token,
		"status": domain.JobStatusPending,
	})
}

// SubmitDiscover starts a file discovery job.
func (h *Handler) SubmitDiscover(w http.ResponseWriter, r *http.Request) {
	var params domain.DiscoverParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, err)
		return
	}
	h.submit(w, r, domain.JobKindDiscover, params)
}

// SubmitInferSchema starts a schema inference job.
func (h *Handler) SubmitInferSchema(w http.ResponseWriter, r *http.Request) {
	var params domain.InferSchemaParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, err)
		return
	}
	h.submit(w, r, domain.JobKindInferSchema, params)
}

// SubmitPreview starts a data preview job.
func (h *Handler) SubmitPreview(w http.ResponseWriter, r *http.Request) {
	var params domain.PreviewParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, err)
		return
	}
	h.submit(w, r, domain.JobKindPreview, params)
}

// SubmitQuery starts a query job. The plan's shape is validated up front;
// column and dataset resolution happens inside the job.
func (h *Handler) SubmitQuery(w http.ResponseWriter, r *http.Request) {
	var params domain.QueryParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, err)
		return
	}
	if params.Plan == nil {
		writeError(w, domain.ErrValidation("query requires a plan"))
		return
	}
	if err := params.Plan.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if params.Output != "" && params.Output != domain.OutputColumnar && params.Output != domain.OutputRows {
		writeError(w, domain.ErrValidation("unknown output encoding %q", params.Output))
		return
	}
	h.submit(w, r, domain.JobKindQuery, params)
}

// SubmitAnalyze starts an analysis job.
func (h *Handler) SubmitAnalyze(w http.ResponseWriter, r *http.Request) {
	var params domain.AnalyzeParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, err)
		return
	}
	if params.Kind != "" {
		if _, err := domain.ParseAnalysisKind(string(params.Kind)); err != nil {
			writeError(w, err)
			return
		}
	}
	h.submit(w, r, domain.JobKindAnalyze, params)
}
