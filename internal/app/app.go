// Package app provides application-level wiring and dependency injection
// for the tabular job service.
package app

import (
	"database/sql"
	"log/slog"

	"tabserve/internal/config"
	"tabserve/internal/dataset"
	"tabserve/internal/db/repository"
	"tabserve/internal/domain"
	"tabserve/internal/engine"
	"tabserve/internal/service/job"
)

// Deps holds the external dependencies that main() must provide. These are
// things the app package cannot (or should not) create itself: the job
// store, config, and an optional history database handle.
type Deps struct {
	Cfg       *config.Config
	Store     domain.KeyValueStore
	HistoryDB *sql.DB // nil when history is disabled
	Logger    *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Jobs     *job.Service
	Runner   *job.Runner
	Registry *dataset.Registry
	History  domain.JobHistoryRepository // nil when history is disabled
}

// New wires the dataset registry, engine, and job services from the
// provided deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg

	sources := []dataset.Source{{ID: "default", Root: cfg.DataRoot, Default: true}}
	for id, root := range cfg.Datasources {
		sources = append(sources, dataset.Source{ID: id, Root: root})
	}
	registry, err := dataset.NewRegistry(sources)
	if err != nil {
		return nil, err
	}

	catalog := dataset.NewCatalog(cfg.AllowedExtensions)
	resolver := dataset.NewResolver(registry, catalog)

	var history domain.JobHistoryRepository
	if deps.HistoryDB != nil {
		history = repository.NewHistoryRepo(deps.HistoryDB)
	}

	jobs := job.NewService(deps.Store, history, deps.Logger.With("component", "jobs"), cfg.JobTTL)
	runner := job.NewRunner(
		jobs, resolver, catalog,
		engine.New(cfg.DefaultRowLimit),
		deps.Logger.With("component", "runner"),
		job.RunnerConfig{MaxWorkers: cfg.MaxWorkers, InferRows: cfg.InferRows},
	)

	return &App{
		Jobs:     jobs,
		Runner:   runner,
		Registry: registry,
		History:  history,
	}, nil
}
