// Package analyze derives schemas, statistics, and data-quality findings
// from in-memory tables.
package analyze

import (
	"fmt"
	"math"

	"tabserve/internal/domain"
	"tabserve/internal/engine"
)

// sampleRows caps the number of rows included in an analysis report sample.
const sampleRows = 50

// InferSchema derives field names, types, and nullability plus basic
// statistics from a loaded table.
func InferSchema(table *domain.Table) domain.SchemaResult {
	rows := table.NumRows()
	ratios := make(map[string]float64, table.NumCols())
	for i := range table.Columns {
		c := &table.Columns[i]
		if rows > 0 {
			ratios[c.Name] = float64(c.NullCount()) / float64(rows)
		} else {
			ratios[c.Name] = 0
		}
	}
	return domain.SchemaResult{
		Schema: engine.TableSchema(table),
		Stats: domain.SchemaStats{
			Rows:      rows,
			Columns:   table.NumCols(),
			NullRatio: ratios,
		},
	}
}

// Report runs one analysis pass over a table. The eda and profile kinds add
// pairwise correlations across numeric columns; the validate and profile
// kinds add missing-value issues; eda also emits chart hints.
func Report(table *domain.Table, kind domain.AnalysisKind) *domain.AnalysisReport {
	report := &domain.AnalysisReport{
		Metrics: domain.AnalysisMetrics{
			Rows:        table.NumRows(),
			Columns:     table.NumCols(),
			MemoryBytes: estimateSize(table),
		},
		Issues:     []domain.Issue{},
		ChartHints: []domain.ChartHint{},
		Sample:     engine.RowMaps(table.Head(sampleRows)),
		Schema:     engine.TableSchema(table),
	}

	if kind == domain.AnalysisKindEDA || kind == domain.AnalysisKindProfile {
		if corr := correlations(table); len(corr) > 0 {
			report.Metrics.Correlations = corr
		}
	}

	if kind == domain.AnalysisKindValidate || kind == domain.AnalysisKindProfile {
		for i := range table.Columns {
			c := &table.Columns[i]
			if n := c.NullCount(); n > 0 {
				report.Issues = append(report.Issues, domain.Issue{
					Code:   "MISSING_VALUES",
					Detail: fmt.Sprintf("column %s has %d missing values", c.Name, n),
				})
			}
		}
	}

	if kind == domain.AnalysisKindEDA {
		report.ChartHints = chartHints(table)
	}

	return report
}

// correlations computes the Pearson correlation for every pair of numeric
// columns, skipping rows where either side is null. Requires at least two
// numeric columns.
func correlations(table *domain.Table) map[string]map[string]float64 {
	var numeric []*domain.Column
	for i := range table.Columns {
		if table.Columns[i].Type.Numeric() {
			numeric = append(numeric, &table.Columns[i])
		}
	}
	if len(numeric) < 2 {
		return nil
	}

	out := make(map[string]map[string]float64, len(numeric))
	for _, a := range numeric {
		out[a.Name] = make(map[string]float64, len(numeric))
		for _, b := range numeric {
			out[a.Name][b.Name] = pearson(a, b)
		}
	}
	return out
}

func pearson(a, b *domain.Column) float64 {
	var xs, ys []float64
	for i := range a.Values {
		x, xok := toFloat(a.Values[i])
		y, yok := toFloat(b.Values[i])
		if xok && yok {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	n := float64(len(xs))
	if n < 2 {
		return 0
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	r := cov / math.Sqrt(varX*varY)
	// Clamp accumulated float error.
	return math.Max(-1, math.Min(1, r))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func chartHints(table *domain.Table) []domain.ChartHint {
	hints := []domain.ChartHint{}
	var numeric, categorical []string
	for i := range table.Columns {
		c := &table.Columns[i]
		if c.Type.Numeric() {
			numeric = append(numeric, c.Name)
		} else if c.Type == domain.ColumnTypeString {
			categorical = append(categorical, c.Name)
		}
	}
	for _, name := range numeric {
		hints = append(hints, domain.ChartHint{Chart: "histogram", Columns: []string{name}})
	}
	if len(numeric) >= 2 {
		hints = append(hints, domain.ChartHint{Chart: "scatter", Columns: numeric[:2]})
	}
	if len(categorical) > 0 && len(numeric) > 0 {
		hints = append(hints, domain.ChartHint{Chart: "bar", Columns: []string{categorical[0], numeric[0]}})
	}
	return hints
}

func estimateSize(table *domain.Table) int64 {
	var total int64
	for i := range table.Columns {
		for _, v := range table.Columns[i].Values {
			switch val := v.(type) {
			case nil:
			case string:
				total += int64(len(val)) + 16
			case bool:
				total += 1
			default:
				total += 8
			}
		}
	}
	return total
}
