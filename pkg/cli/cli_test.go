package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabserve/internal/domain"
)

// execute runs the root command with the given args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configDirOverride = t.TempDir()
	t.Cleanup(func() { configDirOverride = "" })

	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// newFakeServer serves a minimal slice of the job API.
func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"token": 7, "status": "pending"})
	})
	mux.HandleFunc("GET /v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jobs": []domain.Job{
				{Token: 7, Kind: domain.JobKindQuery, Status: domain.JobStatusCompleted, CreatedAt: created},
			},
		})
	})
	mux.HandleFunc("GET /v1/jobs/7", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Job{
			Token:     7,
			Kind:      domain.JobKindQuery,
			Status:    domain.JobStatusCompleted,
			CreatedAt: created,
			Steps: []domain.ProgressStep{
				{Step: 1, Message: "Executing query", Timestamp: created},
			},
			Result: json.RawMessage(`{"rows":1}`),
		})
	})
	mux.HandleFunc("DELETE /v1/jobs/7", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"token": 7, "cancelled": false})
	})
	mux.HandleFunc("GET /v1/jobs/99", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 404, "message": "job 99 not found"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tabserve")
}

func TestSubmitCmd(t *testing.T) {
	srv := newFakeServer(t)

	out, err := execute(t, "--host", srv.URL, "submit", "query",
		"--params", `{"plan":{"dataset":"sales"}}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Job 7 submitted")
}

func TestSubmitCmd_RejectsUnknownKind(t *testing.T) {
	_, err := execute(t, "submit", "wrangle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job kind")
}

func TestSubmitCmd_RejectsBadParams(t *testing.T) {
	_, err := execute(t, "submit", "query", "--params", "{nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params JSON")
}

func TestJobsListCmd(t *testing.T) {
	srv := newFakeServer(t)

	out, err := execute(t, "--host", srv.URL, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "TOKEN")
	assert.Contains(t, out, "query")
	assert.Contains(t, out, "completed")
}

func TestJobsGetCmd(t *testing.T) {
	srv := newFakeServer(t)

	out, err := execute(t, "--host", srv.URL, "jobs", "get", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Job 7")
	assert.Contains(t, out, "Executing query")
	assert.Contains(t, out, `"rows": 1`)
}

func TestJobsGetCmd_NotFound(t *testing.T) {
	srv := newFakeServer(t)

	_, err := execute(t, "--host", srv.URL, "jobs", "get", "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestJobsGetCmd_JSONOutput(t *testing.T) {
	srv := newFakeServer(t)

	out, err := execute(t, "--host", srv.URL, "-o", "json", "jobs", "get", "7")
	require.NoError(t, err)

	var j domain.Job
	require.NoError(t, json.Unmarshal([]byte(out), &j))
	assert.Equal(t, int64(7), j.Token)
}

func TestJobsCancelCmd(t *testing.T) {
	srv := newFakeServer(t)

	out, err := execute(t, "--host", srv.URL, "jobs", "cancel", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "already finished")
}

func TestUnsupportedOutputFormat(t *testing.T) {
	_, err := execute(t, "-o", "csv", "jobs", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestConfigProfileRoundTrip(t *testing.T) {
	configDirOverride = t.TempDir()
	t.Cleanup(func() { configDirOverride = "" })

	run := func(args ...string) (string, error) {
		root := newRootCmd()
		buf := &bytes.Buffer{}
		root.SetOut(buf)
		root.SetErr(buf)
		root.SetArgs(args)
		err := root.Execute()
		return buf.String(), err
	}

	_, err := run("config", "set-profile", "--name", "staging",
		"--host", "https://staging.example.com", "--token", "super-secret-token-value")
	require.NoError(t, err)

	_, err = run("config", "use-profile", "staging")
	require.NoError(t, err)

	out, err := run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "staging.example.com")
	assert.NotContains(t, out, "super-secret-token-value")

	out, err = run("config", "show", "--reveal")
	require.NoError(t, err)
	assert.Contains(t, out, "super-secret-token-value")

	_, err = run("config", "use-profile", "missing")
	require.Error(t, err)

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.CurrentProfile)
}

func TestProfileSuppliesHostAndToken(t *testing.T) {
	configDirOverride = t.TempDir()
	t.Cleanup(func() { configDirOverride = "" })

	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jobs": []domain.Job{}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	require.NoError(t, SaveUserConfig(&UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {Host: srv.URL, Token: "profile-token"},
		},
	}))

	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"jobs", "list"})
	require.NoError(t, root.Execute())

	assert.Equal(t, fmt.Sprintf("Bearer %s", "profile-token"), gotAuth)
}
