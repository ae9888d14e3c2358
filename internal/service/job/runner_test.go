package job

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabserve/internal/dataset"
	"tabserve/internal/domain"
	"tabserve/internal/engine"
	"tabserve/internal/jobstore"
)

func newTestRunner(t *testing.T, root string) (*Runner, *Service) {
	t.Helper()
	registry, err := dataset.NewRegistry([]dataset.Source{{ID: "local", Root: root, Default: true}})
	require.NoError(t, err)
	catalog := dataset.NewCatalog(nil)
	resolver := dataset.NewResolver(registry, catalog)
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	svc := NewService(jobstore.NewMemoryStore(), nil, logger, time.Hour)
	runner := NewRunner(svc, resolver, catalog, engine.New(0), logger, RunnerConfig{MaxWorkers: 2})
	return runner, svc
}

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func awaitTerminal(t *testing.T, svc *Service, token int64) *domain.Job {
	t.Helper()
	j, err := svc.Get(context.Background(), token)
	require.NoError(t, err)
	require.True(t, j.Terminal(), "job %d still %s", token, j.Status)
	return j
}

func TestRunner_DiscoverCompletes(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCSV(t, root, "a.csv", "id\n1\n")
	writeCSV(t, root, "b.csv", "id\n2\n")
	writeCSV(t, root, "readme.txt", "not tabular")
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	token, err := svc.Create(ctx, domain.JobKindDiscover, domain.DiscoverParams{Recurse: true})
	require.NoError(t, err)
	runner.Discover(token, domain.DiscoverParams{Recurse: true})
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	assert.Equal(t, domain.JobStatusCompleted, j.Status)

	var result domain.DiscoverResult
	require.NoError(t, json.Unmarshal(j.Result, &result))
	assert.Len(t, result.Files, 2)

	require.NotEmpty(t, j.Steps)
	assert.Equal(t, "Starting file discovery", j.Steps[0].Message)
	assert.Equal(t, "Found 2 files", j.Steps[len(j.Steps)-1].Message)
}

func TestRunner_DiscoverMissingRootFails(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	params := domain.DiscoverParams{URI: "nope"}
	token, err := svc.Create(ctx, domain.JobKindDiscover, params)
	require.NoError(t, err)
	runner.Discover(token, params)
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	assert.Equal(t, domain.JobStatusFailed, j.Status)
	assert.Contains(t, j.Error, "nope")
}

func TestRunner_InferSchemaCompletes(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCSV(t, root, "people.csv", "name,age\nada,36\ngrace,45\n")
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	params := domain.InferSchemaParams{}
	token, err := svc.Create(ctx, domain.JobKindInferSchema, params)
	require.NoError(t, err)
	runner.InferSchema(token, params)
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	require.Equal(t, domain.JobStatusCompleted, j.Status, "error: %s", j.Error)

	var result domain.SchemaResult
	require.NoError(t, json.Unmarshal(j.Result, &result))
	require.Len(t, result.Schema.Fields, 2)
	assert.Equal(t, "name", result.Schema.Fields[0].Name)
	assert.Equal(t, domain.ColumnTypeString, result.Schema.Fields[0].Type)
	assert.Equal(t, domain.ColumnTypeInt, result.Schema.Fields[1].Type)
	assert.Equal(t, 2, result.Stats.Rows)
}

func TestRunner_InferSchemaEmptyFileSetFails(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCSV(t, root, "readme.txt", "not tabular")
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	params := domain.InferSchemaParams{}
	token, err := svc.Create(ctx, domain.JobKindInferSchema, params)
	require.NoError(t, err)
	runner.InferSchema(token, params)
	runner.Wait()

	// No eligible files must fail the job, not complete with an empty schema.
	j := awaitTerminal(t, svc, token)
	assert.Equal(t, domain.JobStatusFailed, j.Status)
	assert.Contains(t, j.Error, "no supported files")
	assert.Nil(t, j.Result)
}

func TestRunner_PreviewDefaultsToFirstFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCSV(t, root, "orders.csv", "id,total\n1,9.5\n2,3.25\n3,7.0\n")
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	params := domain.PreviewParams{Limit: 2}
	token, err := svc.Create(ctx, domain.JobKindPreview, params)
	require.NoError(t, err)
	runner.Preview(token, params)
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	require.Equal(t, domain.JobStatusCompleted, j.Status, "error: %s", j.Error)

	var result domain.PreviewResult
	require.NoError(t, json.Unmarshal(j.Result, &result))
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Stats.Sampled)
	assert.Equal(t, 2, result.Stats.TotalRows)
}

func TestRunner_QueryCompletes(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCSV(t, filepath.Join(root, "sales"), "2024.csv", "region,amount\neast,10\nwest,20\neast,30\n")
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	params := domain.QueryParams{
		Plan: &domain.QueryPlan{
			Dataset: "sales",
			GroupBy: []string{"region"},
			Aggs:    []domain.Agg{{Col: "amount", Fn: domain.AggSum}},
		},
	}
	token, err := svc.Create(ctx, domain.JobKindQuery, params)
	require.NoError(t, err)
	runner.Query(token, params)
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	require.Equal(t, domain.JobStatusCompleted, j.Status, "error: %s", j.Error)

	var result domain.QueryResult
	require.NoError(t, json.Unmarshal(j.Result, &result))
	assert.Equal(t, domain.OutputColumnar, result.Format)
	assert.Equal(t, 2, result.Metrics.Rows)
	require.Len(t, result.Columns, 2)
	assert.Equal(t, "region", result.Columns[0].Name)
	assert.Equal(t, "sum_amount", result.Columns[1].Name)
}

func TestRunner_QueryUnknownColumnFails(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCSV(t, root, "data.csv", "a\n1\n")
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	params := domain.QueryParams{
		Plan: &domain.QueryPlan{
			Dataset: "data.csv",
			Filters: []domain.Filter{{Col: "missing", Op: domain.OpEQ, Val: 1}},
		},
	}
	token, err := svc.Create(ctx, domain.JobKindQuery, params)
	require.NoError(t, err)
	runner.Query(token, params)
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	assert.Equal(t, domain.JobStatusFailed, j.Status)
	assert.Contains(t, j.Error, "missing")
}

func TestRunner_AnalyzeFrameRef(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCSV(t, root, "metrics.csv", "x,y\n1,2\n2,4\n3,6\n")
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	params := domain.AnalyzeParams{
		FrameRef: &domain.FrameRef{Path: "metrics.csv"},
		Kind:     domain.AnalysisKindEDA,
	}
	token, err := svc.Create(ctx, domain.JobKindAnalyze, params)
	require.NoError(t, err)
	runner.Analyze(token, params)
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	require.Equal(t, domain.JobStatusCompleted, j.Status, "error: %s", j.Error)

	var report domain.AnalysisReport
	require.NoError(t, json.Unmarshal(j.Result, &report))
	assert.Equal(t, 3, report.Metrics.Rows)
	assert.InDelta(t, 1.0, report.Metrics.Correlations["x"]["y"], 1e-9)
	assert.NotEmpty(t, report.ChartHints)
}

func TestRunner_AnalyzeRequiresExactlyOneInput(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	// Neither frame_ref nor plan.
	token, err := svc.Create(ctx, domain.JobKindAnalyze, domain.AnalyzeParams{})
	require.NoError(t, err)
	runner.Analyze(token, domain.AnalyzeParams{})
	runner.Wait()
	j := awaitTerminal(t, svc, token)
	assert.Equal(t, domain.JobStatusFailed, j.Status)

	// Both at once.
	both := domain.AnalyzeParams{
		FrameRef: &domain.FrameRef{Path: "a.csv"},
		Plan:     &domain.QueryPlan{},
	}
	token2, err := svc.Create(ctx, domain.JobKindAnalyze, both)
	require.NoError(t, err)
	runner.Analyze(token2, both)
	runner.Wait()
	j2 := awaitTerminal(t, svc, token2)
	assert.Equal(t, domain.JobStatusFailed, j2.Status)
}

func TestRunner_CancelledJobNeverRuns(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCSV(t, root, "a.csv", "id\n1\n")
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	token, err := svc.Create(ctx, domain.JobKindDiscover, domain.DiscoverParams{})
	require.NoError(t, err)
	cancelled, err := svc.Cancel(ctx, token)
	require.NoError(t, err)
	require.True(t, cancelled)

	runner.Discover(token, domain.DiscoverParams{})
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	assert.Equal(t, domain.JobStatusCancelled, j.Status)
	assert.Nil(t, j.Result)
}

func TestRunner_PanicBecomesFailure(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	token, err := svc.Create(ctx, domain.JobKindQuery, domain.QueryParams{})
	require.NoError(t, err)
	runner.schedule(token, func(ctx context.Context) (string, interface{}, error) {
		panic("boom")
	})
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	assert.Equal(t, domain.JobStatusFailed, j.Status)
	assert.Contains(t, j.Error, "boom")
}

func TestRunner_DispatchUnknownKindFails(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	token, err := svc.Create(ctx, domain.JobKind("bogus"), nil)
	require.NoError(t, err)
	runner.Dispatch(token, domain.JobKind("bogus"), nil)
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	assert.Equal(t, domain.JobStatusFailed, j.Status)
}

func TestRunner_DispatchMismatchedParamsFails(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	runner, svc := newTestRunner(t, root)
	ctx := context.Background()

	token, err := svc.Create(ctx, domain.JobKindQuery, domain.DiscoverParams{})
	require.NoError(t, err)
	require.NotPanics(t, func() {
		runner.Dispatch(token, domain.JobKindQuery, domain.DiscoverParams{})
	})
	runner.Wait()

	j := awaitTerminal(t, svc, token)
	assert.Equal(t, domain.JobStatusFailed, j.Status)
	assert.Contains(t, j.Error, "cannot dispatch")
}
