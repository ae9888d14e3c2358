// Package api provides HTTP handlers for the tabular job service REST API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tabserve/internal/dataset"
	"tabserve/internal/domain"
	"tabserve/internal/middleware"
	"tabserve/internal/service/job"
)

// Handler exposes the job service over HTTP. Submit endpoints return 202
// with a token; clients poll GET /v1/jobs/{token} for progress and results.
type Handler struct {
	jobs     *job.Service
	runner   *job.Runner
	registry *dataset.Registry
	history  domain.JobHistoryRepository // nil when history is disabled
	logger   *slog.Logger
}

func NewHandler(jobs *job.Service, runner *job.Runner, registry *dataset.Registry, history domain.JobHistoryRepository, logger *slog.Logger) *Handler {
	return &Handler{
		jobs:     jobs,
		runner:   runner,
		registry: registry,
		history:  history,
		logger:   logger,
	}
}

// RouterConfig carries the middleware settings for Routes.
type RouterConfig struct {
	SharedSecret       string
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

// Routes builds the chi router: public health endpoint, then the
// authenticated, rate-limited /v1 API.
func (h *Handler) Routes(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.SharedSecret(cfg.SharedSecret))
		if cfg.RateLimitRPS > 0 {
			r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimitRPS,
				Burst:             cfg.RateLimitBurst,
			}))
		}

		r.Post("/discover", h.SubmitDiscover)
		r.Post("/infer_schema", h.SubmitInferSchema)
		r.Post("/preview", h.SubmitPreview)
		r.Post("/query", h.SubmitQuery)
		r.Post("/analyze", h.SubmitAnalyze)

		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/history", h.JobHistory)
		r.Get("/jobs/{token}", h.GetJob)
		r.Delete("/jobs/{token}", h.CancelJob)

		r.Get("/datasources", h.ListDatasources)
	})

	return r
}

// Health reports liveness. Public, unauthenticated.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListDatasources returns the configured datasource registry.
func (h *Handler) ListDatasources(w http.ResponseWriter, _ *http.Request) {
	sources := h.registry.List()
	out := make([]map[string]interface{}, 0, len(sources))
	for _, s := range sources {
		out = append(out, map[string]interface{}{
			"id":      s.ID,
			"default": s.Default,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"datasources": out})
}
