// Package engine interprets declarative query plans over in-memory tables.
package engine

import (
	"fmt"
	"strings"

	"tabserve/internal/domain"
)

// DefaultRowLimit caps result size when a plan carries no explicit limit.
const DefaultRowLimit = 50000

// Engine applies query plans. Plan steps run in fixed order: filters,
// select, groupby+aggs, limit. The steps are not commutative, so the order
// is part of the contract.
type Engine struct {
	defaultLimit int
}

// New creates an Engine. defaultLimit <= 0 falls back to DefaultRowLimit.
func New(defaultLimit int) *Engine {
	if defaultLimit <= 0 {
		defaultLimit = DefaultRowLimit
	}
	return &Engine{defaultLimit: defaultLimit}
}

// Execute applies the plan to the source table and encodes the result in
// the requested output format.
func (e *Engine) Execute(plan *domain.QueryPlan, table *domain.Table, output string) (*domain.QueryResult, error) {
	result, err := e.Apply(plan, table)
	if err != nil {
		return nil, err
	}
	return Encode(result, output)
}

// Apply runs the plan's steps against the table and returns the result
// table. The input table is not modified.
func (e *Engine) Apply(plan *domain.QueryPlan, table *domain.Table) (*domain.Table, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	out := table
	var err error

	for _, f := range plan.Filters {
		if out, err = applyFilter(out, f); err != nil {
			return nil, err
		}
	}

	if len(plan.Select) > 0 {
		if out, err = project(out, plan.Select); err != nil {
			return nil, err
		}
	}

	// Grouping requires both groupby and aggs; either alone passes the
	// table through unchanged.
	if len(plan.GroupBy) > 0 && len(plan.Aggs) > 0 {
		if out, err = groupAggregate(out, plan.GroupBy, plan.Aggs); err != nil {
			return nil, err
		}
	}

	limit := plan.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}
	return out.Head(limit), nil
}

// --- filters ---

func applyFilter(table *domain.Table, f domain.Filter) (*domain.Table, error) {
	idx := table.ColumnIndex(f.Col)
	if idx < 0 {
		return nil, domain.ErrUnknownColumn("unknown filter column: %s", f.Col)
	}
	switch f.Op {
	case domain.OpGTE, domain.OpLTE, domain.OpEQ, domain.OpNEQ, domain.OpGT, domain.OpLT:
	default:
		return nil, domain.ErrUnsupportedOperator("unsupported filter operator: %s", f.Op)
	}

	col := table.Columns[idx]
	keep := make([]bool, len(col.Values))
	for i, v := range col.Values {
		// Comparisons against null are false for every operator.
		if v == nil {
			continue
		}
		cmp, comparable := compareValues(v, f.Val)
		if !comparable {
			continue
		}
		switch f.Op {
		case domain.OpGTE:
			keep[i] = cmp >= 0
		case domain.OpLTE:
			keep[i] = cmp <= 0
		case domain.OpEQ:
			keep[i] = cmp == 0
		case domain.OpNEQ:
			keep[i] = cmp != 0
		case domain.OpGT:
			keep[i] = cmp > 0
		case domain.OpLT:
			keep[i] = cmp < 0
		}
	}

	out := &domain.Table{Columns: make([]domain.Column, len(table.Columns))}
	for c := range table.Columns {
		src := &table.Columns[c]
		vals := make([]interface{}, 0, len(src.Values))
		for i, k := range keep {
			if k {
				vals = append(vals, src.Values[i])
			}
		}
		out.Columns[c] = domain.Column{Name: src.Name, Type: src.Type, Values: vals}
	}
	return out, nil
}

// compareValues compares a stored value with a plan value, coercing mixed
// numeric widths. Returns comparable=false when the pair has no ordering.
func compareValues(a, b interface{}) (int, bool) {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	switch av := a.(type) {
	case string:
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bs), true
	case bool:
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bb:
			return 0, true
		case av:
			return 1, true
		default:
			return -1, true
		}
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// --- select ---

func project(table *domain.Table, names []string) (*domain.Table, error) {
	out := &domain.Table{Columns: make([]domain.Column, 0, len(names))}
	for _, name := range names {
		idx := table.ColumnIndex(name)
		if idx < 0 {
			return nil, domain.ErrUnknownColumn("unknown column in select: %s", name)
		}
		out.Columns = append(out.Columns, table.Columns[idx])
	}
	return out, nil
}

// --- groupby + aggs ---

type group struct {
	keyVals []interface{}
	rows    []int
}

func groupAggregate(table *domain.Table, groupBy []string, aggs []domain.Agg) (*domain.Table, error) {
	keyIdx := make([]int, len(groupBy))
	for i, name := range groupBy {
		idx := table.ColumnIndex(name)
		if idx < 0 {
			return nil, domain.ErrUnknownColumn("unknown groupby column: %s", name)
		}
		keyIdx[i] = idx
	}
	for _, a := range aggs {
		if table.ColumnIndex(a.Col) < 0 {
			return nil, domain.ErrUnknownColumn("unknown aggregate column: %s", a.Col)
		}
		switch a.Fn {
		case domain.AggSum, domain.AggCount, domain.AggMin, domain.AggMax, domain.AggMean:
		default:
			return nil, domain.ErrUnsupportedOperator("unsupported aggregate function: %s", a.Fn)
		}
	}

	// Partition rows by the distinct group-key tuples, preserving the order
	// in which each tuple first appears.
	var order []string
	groups := make(map[string]*group)
	for row := 0; row < table.NumRows(); row++ {
		keyVals := make([]interface{}, len(keyIdx))
		for i, idx := range keyIdx {
			keyVals[i] = table.Columns[idx].Values[row]
		}
		key := groupKey(keyVals)
		g, ok := groups[key]
		if !ok {
			g = &group{keyVals: keyVals}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, row)
	}

	out := &domain.Table{}
	for i, name := range groupBy {
		out.Columns = append(out.Columns, domain.Column{Name: name, Type: table.Columns[keyIdx[i]].Type})
	}
	for _, a := range aggs {
		src := table.Columns[table.ColumnIndex(a.Col)]
		out.Columns = append(out.Columns, domain.Column{
			Name: fmt.Sprintf("%s_%s", a.Fn, a.Col),
			Type: aggType(a.Fn, src.Type),
		})
	}

	for _, key := range order {
		g := groups[key]
		row := make([]interface{}, 0, len(groupBy)+len(aggs))
		row = append(row, g.keyVals...)
		for _, a := range aggs {
			src := table.Columns[table.ColumnIndex(a.Col)]
			row = append(row, aggregate(a.Fn, &src, g.rows))
		}
		out.AppendRow(row)
	}
	return out, nil
}

func groupKey(vals []interface{}) string {
	var b strings.Builder
	for _, v := range vals {
		if v == nil {
			b.WriteString("\x00nil")
		} else {
			fmt.Fprintf(&b, "%T:%v", v, v)
		}
		b.WriteByte('\x1f')
	}
	return b.String()
}

func aggType(fn string, src domain.ColumnType) domain.ColumnType {
	switch fn {
	case domain.AggCount:
		return domain.ColumnTypeInt
	case domain.AggMean:
		return domain.ColumnTypeFloat
	case domain.AggSum:
		if src == domain.ColumnTypeInt {
			return domain.ColumnTypeInt
		}
		return domain.ColumnTypeFloat
	default: // min, max keep the source type
		return src
	}
}

// aggregate folds the selected rows of one column. Nulls are ignored: sum
// skips them, count counts only non-null values.
func aggregate(fn string, col *domain.Column, rows []int) interface{} {
	switch fn {
	case domain.AggCount:
		n := int64(0)
		for _, r := range rows {
			if col.Values[r] != nil {
				n++
			}
		}
		return n
	case domain.AggSum:
		if col.Type == domain.ColumnTypeInt {
			var sum int64
			for _, r := range rows {
				if v, ok := col.Values[r].(int64); ok {
					sum += v
				}
			}
			return sum
		}
		var sum float64
		for _, r := range rows {
			if f, ok := asFloat(col.Values[r]); ok && col.Values[r] != nil {
				sum += f
			}
		}
		return sum
	case domain.AggMean:
		var sum float64
		var n int
		for _, r := range rows {
			if col.Values[r] == nil {
				continue
			}
			if f, ok := asFloat(col.Values[r]); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return nil
		}
		return sum / float64(n)
	case domain.AggMin, domain.AggMax:
		var best interface{}
		for _, r := range rows {
			v := col.Values[r]
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			cmp, ok := compareValues(v, best)
			if !ok {
				continue
			}
			if (fn == domain.AggMin && cmp < 0) || (fn == domain.AggMax && cmp > 0) {
				best = v
			}
		}
		return best
	}
	return nil
}
