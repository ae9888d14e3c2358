package domain

import (
	"encoding/json"
	"time"
)

// JobKind identifies the operation a job performs.
type JobKind string

// Supported job kinds.
const (
	JobKindDiscover    JobKind = "discover"
	JobKindInferSchema JobKind = "infer_schema"
	JobKindPreview     JobKind = "preview"
	JobKindQuery       JobKind = "query"
	JobKindAnalyze     JobKind = "analyze"
)

// ParseJobKind converts a string to a JobKind.
func ParseJobKind(s string) (JobKind, error) {
	switch JobKind(s) {
	case JobKindDiscover, JobKindInferSchema, JobKindPreview, JobKindQuery, JobKindAnalyze:
		return JobKind(s), nil
	}
	return "", ErrValidation("invalid job kind: %q", s)
}

// JobStatus represents the lifecycle state of a job.
type JobStatus string

// Job lifecycle statuses.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ProgressStep is a single timestamped progress entry. Immutable once appended.
type ProgressStep struct {
	Step       int       `json:"step"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMS *int64    `json:"duration_ms,omitempty"`
}

// Job is the unit of trackable work. The full record is serialized as JSON
// into the keyed store; every mutation rewrites the record and refreshes
// its TTL.
type Job struct {
	Token     int64           `json:"token"`
	Kind      JobKind         `json:"kind"`
	Status    JobStatus       `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	Params    json.RawMessage `json:"params,omitempty"`
	Steps     []ProgressStep  `json:"steps"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Terminal reports whether the job has reached a terminal status.
func (j *Job) Terminal() bool { return j.Status.Terminal() }

// DiscoverParams are the parameters for a discover job.
type DiscoverParams struct {
	Datasource string `json:"datasource,omitempty"`
	URI        string `json:"uri,omitempty"`
	Recurse    bool   `json:"recurse"`
	MaxFiles   int    `json:"max_files,omitempty"`
}

// InferSchemaParams are the parameters for an infer_schema job.
type InferSchemaParams struct {
	Datasource  string `json:"datasource,omitempty"`
	URI         string `json:"uri,omitempty"`
	SampleFiles int    `json:"sample_files,omitempty"`
	InferRows   int    `json:"infer_rows,omitempty"`
}

// PreviewParams are the parameters for a preview job.
type PreviewParams struct {
	Datasource string `json:"datasource,omitempty"`
	Path       string `json:"path,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// QueryParams are the parameters for a query job.
type QueryParams struct {
	Datasource string     `json:"datasource,omitempty"`
	Plan       *QueryPlan `json:"plan"`
	Output     string     `json:"output,omitempty"`
}

// AnalysisKind selects the analysis pass performed by an analyze job.
type AnalysisKind string

// Supported analysis kinds.
const (
	AnalysisKindEDA       AnalysisKind = "eda"
	AnalysisKindProfile   AnalysisKind = "profile"
	AnalysisKindValidate  AnalysisKind = "validate"
	AnalysisKindTransform AnalysisKind = "transform"
)

// ParseAnalysisKind converts a string to an AnalysisKind.
func ParseAnalysisKind(s string) (AnalysisKind, error) {
	switch AnalysisKind(s) {
	case AnalysisKindEDA, AnalysisKindProfile, AnalysisKindValidate, AnalysisKindTransform:
		return AnalysisKind(s), nil
	}
	return "", ErrValidation("invalid analysis kind: %q", s)
}

// FrameRef points at a previously materialized frame on disk.
type FrameRef struct {
	Path string `json:"path"`
}

// AnalyzeParams are the parameters for an analyze job. Either FrameRef or
// Datasource+Plan must be supplied.
type AnalyzeParams struct {
	FrameRef   *FrameRef              `json:"frame_ref,omitempty"`
	Datasource string                 `json:"datasource,omitempty"`
	Plan       *QueryPlan             `json:"plan,omitempty"`
	Kind       AnalysisKind           `json:"job_kind,omitempty"`
	Options    map[string]interface{} `json:"options,omitempty"`
}
