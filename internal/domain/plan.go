package domain

// Filter operators understood by the interpreter.
const (
	OpGTE = ">="
	OpLTE = "<="
	OpEQ  = "=="
	OpNEQ = "!="
	OpGT  = ">"
	OpLT  = "<"
)

// Filter is a single row-wise predicate: column <op> value.
type Filter struct {
	Col string      `json:"col"`
	Op  string      `json:"op"`
	Val interface{} `json:"val"`
}

// Aggregate functions understood by the interpreter.
const (
	AggSum   = "sum"
	AggCount = "count"
	AggMin   = "min"
	AggMax   = "max"
	AggMean  = "mean"
)

// Agg requests one aggregate over one column. The output column is named
// <fn>_<col>.
type Agg struct {
	Col string `json:"col"`
	Fn  string `json:"fn"`
}

// QueryPlan is a declarative description of a filter/select/group/aggregate
// pass over a dataset. Immutable once submitted with a job. Steps apply in
// fixed order: filters, select, groupby+aggs, limit.
type QueryPlan struct {
	Dataset string   `json:"dataset"`
	Filters []Filter `json:"filters,omitempty"`
	Select  []string `json:"select,omitempty"`
	GroupBy []string `json:"groupby,omitempty"`
	Aggs    []Agg    `json:"aggs,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Validate checks structural validity of the plan. Operator and column
// resolution happen at execution time against the loaded table.
func (p *QueryPlan) Validate() error {
	if p == nil {
		return ErrValidation("query plan is required")
	}
	if p.Dataset == "" {
		return ErrValidation("plan dataset is required")
	}
	for _, f := range p.Filters {
		if f.Col == "" {
			return ErrValidation("filter column is required")
		}
		if f.Op == "" {
			return ErrValidation("filter operator is required")
		}
	}
	for _, a := range p.Aggs {
		if a.Col == "" {
			return ErrValidation("aggregate column is required")
		}
		if a.Fn == "" {
			return ErrValidation("aggregate function is required")
		}
	}
	if p.Limit < 0 {
		return ErrValidation("plan limit must be non-negative")
	}
	return nil
}

// Output encodings for query results.
const (
	OutputColumnar = "columnar"
	OutputRows     = "rows"
)
