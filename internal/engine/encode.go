package engine

import "tabserve/internal/domain"

// Encode serializes a result table in the requested output encoding.
// The columnar encoding preserves typed columns; the row-major encoding
// emits one map per row for direct serialization. Metrics always carries
// the final row and column counts.
func Encode(table *domain.Table, output string) (*domain.QueryResult, error) {
	result := &domain.QueryResult{
		Format: output,
		Schema: TableSchema(table),
		Metrics: domain.QueryMetrics{
			Rows:    table.NumRows(),
			Columns: table.NumCols(),
		},
	}

	switch output {
	case domain.OutputColumnar:
		result.Columns = make([]domain.EncodedColumn, len(table.Columns))
		for i, c := range table.Columns {
			values := c.Values
			if values == nil {
				values = []interface{}{}
			}
			result.Columns[i] = domain.EncodedColumn{Name: c.Name, Type: c.Type, Values: values}
		}
	case domain.OutputRows:
		result.Rows = RowMaps(table)
	default:
		return nil, domain.ErrUnsupportedFormat("unsupported output encoding: %q", output)
	}

	return result, nil
}

// TableSchema derives the field descriptors of a table. A field is marked
// nullable when the column holds at least one null.
func TableSchema(table *domain.Table) domain.Schema {
	fields := make([]domain.FieldSchema, len(table.Columns))
	for i, c := range table.Columns {
		fields[i] = domain.FieldSchema{
			Name:     c.Name,
			Type:     c.Type,
			Nullable: c.NullCount() > 0,
		}
	}
	return domain.Schema{Fields: fields}
}

// RowMaps materializes a table as named records in row-major order.
func RowMaps(table *domain.Table) []map[string]interface{} {
	rows := make([]map[string]interface{}, table.NumRows())
	for i := range rows {
		rec := make(map[string]interface{}, len(table.Columns))
		for c := range table.Columns {
			rec[table.Columns[c].Name] = table.Columns[c].Values[i]
		}
		rows[i] = rec
	}
	return rows
}
