package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"tabserve/internal/analyze"
	"tabserve/internal/dataset"
	"tabserve/internal/domain"
	"tabserve/internal/engine"
)

const (
	defaultInferRows    = 10000
	defaultPreviewLimit = 100
)

// Runner executes job work functions on background goroutines, bounded by
// a weighted semaphore. Work functions report progress through the job
// Service and must not let a panic escape: a panicking job is marked
// failed, never crashes the process.
type Runner struct {
	jobs      *Service
	resolver  *dataset.Resolver
	catalog   *dataset.Catalog
	engine    *engine.Engine
	logger    *slog.Logger
	sem       *semaphore.Weighted
	wg        sync.WaitGroup
	inferRows int
}

// RunnerConfig carries the tunables for a Runner.
type RunnerConfig struct {
	// MaxWorkers bounds concurrently executing jobs. <= 0 means 4.
	MaxWorkers int
	// InferRows caps how many rows schema inference reads per file.
	// <= 0 means 10000.
	InferRows int
}

func NewRunner(jobs *Service, resolver *dataset.Resolver, catalog *dataset.Catalog, eng *engine.Engine, logger *slog.Logger, cfg RunnerConfig) *Runner {
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 4
	}
	inferRows := cfg.InferRows
	if inferRows <= 0 {
		inferRows = defaultInferRows
	}
	return &Runner{
		jobs:      jobs,
		resolver:  resolver,
		catalog:   catalog,
		engine:    eng,
		logger:    logger,
		sem:       semaphore.NewWeighted(int64(workers)),
		inferRows: inferRows,
	}
}

// Wait blocks until all scheduled jobs have finished. Used during
// shutdown and in tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Dispatch schedules the work function for a freshly created job. An
// unknown kind, or params that do not match the kind, fails the job
// rather than panicking in the caller.
func (r *Runner) Dispatch(token int64, kind domain.JobKind, params interface{}) {
	switch kind {
	case domain.JobKindDiscover:
		if p, ok := params.(domain.DiscoverParams); ok {
			r.Discover(token, p)
			return
		}
	case domain.JobKindInferSchema:
		if p, ok := params.(domain.InferSchemaParams); ok {
			r.InferSchema(token, p)
			return
		}
	case domain.JobKindPreview:
		if p, ok := params.(domain.PreviewParams); ok {
			r.Preview(token, p)
			return
		}
	case domain.JobKindQuery:
		if p, ok := params.(domain.QueryParams); ok {
			r.Query(token, p)
			return
		}
	case domain.JobKindAnalyze:
		if p, ok := params.(domain.AnalyzeParams); ok {
			r.Analyze(token, p)
			return
		}
	}
	r.schedule(token, func(ctx context.Context) (string, interface{}, error) {
		return "", nil, domain.ErrValidation("cannot dispatch job kind %q with params of type %T", kind, params)
	})
}

// Discover schedules a file discovery job.
func (r *Runner) Discover(token int64, p domain.DiscoverParams) {
	r.schedule(token, func(ctx context.Context) (string, interface{}, error) {
		if !r.jobs.Start(ctx, token, "Starting file discovery") {
			return "", nil, nil
		}
		root, err := r.resolver.Path(p.Datasource, p.URI)
		if err != nil {
			return "", nil, err
		}
		files, err := r.catalog.Discover(root, p.Recurse, p.MaxFiles)
		if err != nil {
			return "", nil, err
		}
		result := domain.DiscoverResult{Files: files}
		return fmt.Sprintf("Found %d files", len(files)), result, nil
	})
}

// InferSchema schedules a schema inference job over the first discovered
// files of a dataset.
func (r *Runner) InferSchema(token int64, p domain.InferSchemaParams) {
	r.schedule(token, func(ctx context.Context) (string, interface{}, error) {
		if !r.jobs.Start(ctx, token, "Starting schema inference") {
			return "", nil, nil
		}
		root, err := r.resolver.Path(p.Datasource, p.URI)
		if err != nil {
			return "", nil, err
		}
		maxFiles := p.SampleFiles
		if maxFiles <= 0 {
			maxFiles = 1
		}
		files, err := r.catalog.Discover(root, true, maxFiles)
		if err != nil {
			return "", nil, err
		}
		if len(files) == 0 {
			return "", nil, domain.ErrNotFound("no supported files found under %s", root)
		}
		r.jobs.Progress(ctx, token, fmt.Sprintf("Sampling %d file(s)", len(files)))

		rows := p.InferRows
		if rows <= 0 {
			rows = r.inferRows
		}
		table, err := dataset.Load(files[0].Path, rows)
		if err != nil {
			return "", nil, err
		}
		result := analyze.InferSchema(table)
		return "Schema inference completed", result, nil
	})
}

// Preview schedules a data preview job. Without an explicit path the
// first supported file of the datasource is previewed.
func (r *Runner) Preview(token int64, p domain.PreviewParams) {
	r.schedule(token, func(ctx context.Context) (string, interface{}, error) {
		if !r.jobs.Start(ctx, token, "Loading data preview") {
			return "", nil, nil
		}
		var path string
		var err error
		if p.Path != "" {
			path, err = r.resolver.Path(p.Datasource, p.Path)
		} else {
			var fd domain.FileDescriptor
			fd, err = r.resolver.FirstFile(p.Datasource)
			path = fd.Path
		}
		if err != nil {
			return "", nil, err
		}

		limit := p.Limit
		if limit <= 0 {
			limit = defaultPreviewLimit
		}
		table, err := dataset.Load(path, limit)
		if err != nil {
			return "", nil, err
		}
		result := domain.PreviewResult{
			Rows:   engine.RowMaps(table),
			Schema: engine.TableSchema(table),
			Stats:  domain.PreviewStats{Sampled: true, TotalRows: table.NumRows()},
		}
		return fmt.Sprintf("Preview loaded: %d rows", table.NumRows()), result, nil
	})
}

// Query schedules a query job: load the plan's dataset, run the plan
// through the engine, and encode the result in the requested layout.
func (r *Runner) Query(token int64, p domain.QueryParams) {
	r.schedule(token, func(ctx context.Context) (string, interface{}, error) {
		if !r.jobs.Start(ctx, token, "Executing query") {
			return "", nil, nil
		}
		if p.Plan == nil {
			return "", nil, domain.ErrValidation("query job requires a plan")
		}
		output := p.Output
		if output == "" {
			output = domain.OutputColumnar
		}

		table, notes, err := r.resolver.Table(p.Datasource, p.Plan.Dataset, 0)
		if err != nil {
			return "", nil, err
		}
		for _, note := range notes {
			r.jobs.Progress(ctx, token, note)
		}
		r.jobs.Progress(ctx, token, fmt.Sprintf("Loaded %d rows", table.NumRows()))

		result, err := r.engine.Execute(p.Plan, table, output)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("Query completed: %d rows", result.Metrics.Rows), result, nil
	})
}

// Analyze schedules an analysis job. The frame to analyze is either a
// direct file reference or a dataset plus query plan; exactly one of the
// two must be given.
func (r *Runner) Analyze(token int64, p domain.AnalyzeParams) {
	r.schedule(token, func(ctx context.Context) (string, interface{}, error) {
		kind := p.Kind
		if kind == "" {
			kind = domain.AnalysisKindEDA
		}
		if _, err := domain.ParseAnalysisKind(string(kind)); err != nil {
			return "", nil, err
		}
		hasRef := p.FrameRef != nil && p.FrameRef.Path != ""
		hasPlan := p.Plan != nil
		if hasRef == hasPlan {
			return "", nil, domain.ErrValidation("analysis requires either frame_ref or a dataset plan, not both")
		}
		if !r.jobs.Start(ctx, token, fmt.Sprintf("Starting %s analysis", kind)) {
			return "", nil, nil
		}

		var table *domain.Table
		var err error
		if hasRef {
			var path string
			path, err = r.resolver.Path(p.Datasource, p.FrameRef.Path)
			if err != nil {
				return "", nil, err
			}
			table, err = dataset.Load(path, 0)
		} else {
			table, _, err = r.resolver.Table(p.Datasource, p.Plan.Dataset, 0)
			if err == nil {
				table, err = r.engine.Apply(p.Plan, table)
			}
		}
		if err != nil {
			return "", nil, err
		}
		r.jobs.Progress(ctx, token, fmt.Sprintf("Analyzing %d rows", table.NumRows()))

		report := analyze.Report(table, kind)
		return fmt.Sprintf("%s analysis completed", kind), report, nil
	})
}

// schedule runs fn on a pooled goroutine and funnels its outcome into the
// job state machine. A nil error with an empty message means the work
// function declined to run (the job was cancelled before it started).
func (r *Runner) schedule(token int64, fn func(ctx context.Context) (string, interface{}, error)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx := context.Background()

		if err := r.sem.Acquire(ctx, 1); err != nil {
			_ = r.jobs.Fail(ctx, token, fmt.Sprintf("worker pool unavailable: %v", err))
			return
		}
		defer r.sem.Release(1)

		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("job panicked", "token", token, "panic", rec)
				_ = r.jobs.Fail(ctx, token, fmt.Sprintf("internal error: %v", rec))
			}
		}()

		message, result, err := fn(ctx)
		if err != nil {
			_ = r.jobs.Fail(ctx, token, err.Error())
			return
		}
		if message == "" && result == nil {
			// Cancelled before the work function started.
			return
		}
		_ = r.jobs.Complete(ctx, token, message, result)
	}()
}
