package domain

// FieldSchema describes one derived field: name, type, nullability.
type FieldSchema struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

// Schema is an ordered list of derived field descriptors. Never hand-edited.
type Schema struct {
	Fields []FieldSchema `json:"fields"`
}

// SchemaStats carries basic statistics gathered during schema inference.
type SchemaStats struct {
	Rows      int                `json:"rows"`
	Columns   int                `json:"columns"`
	NullRatio map[string]float64 `json:"null_ratio"`
}

// SchemaResult is the payload of a completed infer_schema job.
type SchemaResult struct {
	Schema Schema      `json:"schema"`
	Stats  SchemaStats `json:"stats"`
}

// DiscoverResult is the payload of a completed discover job.
type DiscoverResult struct {
	Files []FileDescriptor `json:"files"`
}

// PreviewStats describes how a preview was sampled.
type PreviewStats struct {
	Sampled   bool `json:"sampled"`
	TotalRows int  `json:"total_rows"`
}

// PreviewResult is the payload of a completed preview job.
type PreviewResult struct {
	Rows   []map[string]interface{} `json:"rows"`
	Schema Schema                   `json:"schema"`
	Stats  PreviewStats             `json:"stats"`
}

// QueryMetrics reports final row and column counts regardless of encoding.
type QueryMetrics struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// EncodedColumn is one typed column of a columnar query result.
type EncodedColumn struct {
	Name   string        `json:"name"`
	Type   ColumnType    `json:"type"`
	Values []interface{} `json:"values"`
}

// QueryResult is the payload of a completed query job. Exactly one of
// Columns (columnar encoding) or Rows (row-major encoding) is populated,
// selected by the caller.
type QueryResult struct {
	Format  string                   `json:"format"`
	Columns []EncodedColumn          `json:"columns,omitempty"`
	Rows    []map[string]interface{} `json:"rows,omitempty"`
	Schema  Schema                   `json:"schema"`
	Metrics QueryMetrics             `json:"metrics"`
}

// Issue is a data-quality finding raised by the analyzer.
type Issue struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// ChartHint suggests a visualization for the analyzed frame.
type ChartHint struct {
	Chart   string   `json:"chart"`
	Columns []string `json:"columns"`
}

// AnalysisMetrics summarizes the analyzed frame.
type AnalysisMetrics struct {
	Rows         int                           `json:"rows"`
	Columns      int                           `json:"columns"`
	MemoryBytes  int64                         `json:"memory_bytes"`
	Correlations map[string]map[string]float64 `json:"correlations,omitempty"`
}

// AnalysisReport is the payload of a completed analyze job.
type AnalysisReport struct {
	Metrics    AnalysisMetrics          `json:"metrics"`
	Issues     []Issue                  `json:"issues"`
	ChartHints []ChartHint              `json:"chart_hints"`
	Sample     []map[string]interface{} `json:"sample"`
	Schema     Schema                   `json:"schema"`
}
