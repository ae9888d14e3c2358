package dataset

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"tabserve/internal/domain"
)

// loadParquet reads a flat parquet file. Nested schemas are not supported;
// each leaf column maps to one table column.
func loadParquet(path string, rowCap int) (*domain.Table, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, domain.ErrComputation("stat %s: %v", path, err)
	}

	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, domain.ErrComputation("open parquet %s: %v", path, err)
	}

	fields := pf.Schema().Fields()
	table := &domain.Table{Columns: make([]domain.Column, len(fields))}
	for i, field := range fields {
		if !field.Leaf() {
			return nil, domain.ErrUnsupportedFormat("nested parquet schemas are not supported: %s", field.Name())
		}
		table.Columns[i] = domain.Column{Name: field.Name(), Type: parquetColumnType(field.Type().Kind())}
	}

	total := 0
	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		if rowCap > 0 && total >= rowCap {
			break
		}
		rows := rg.Rows()
		for rowCap <= 0 || total < rowCap {
			n, readErr := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				if rowCap > 0 && total >= rowCap {
					break
				}
				appendParquetRow(table, row)
				total++
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				_ = rows.Close()
				return nil, domain.ErrComputation("read parquet %s: %v", path, readErr)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, domain.ErrComputation("close parquet reader %s: %v", path, err)
		}
	}

	return table, nil
}

func parquetColumnType(kind parquet.Kind) domain.ColumnType {
	switch kind {
	case parquet.Boolean:
		return domain.ColumnTypeBool
	case parquet.Int32, parquet.Int64:
		return domain.ColumnTypeInt
	case parquet.Float, parquet.Double:
		return domain.ColumnTypeFloat
	default:
		return domain.ColumnTypeString
	}
}

func appendParquetRow(table *domain.Table, row parquet.Row) {
	for _, v := range row {
		col := &table.Columns[v.Column()]
		if v.IsNull() {
			col.Values = append(col.Values, nil)
			continue
		}
		switch col.Type {
		case domain.ColumnTypeBool:
			col.Values = append(col.Values, v.Boolean())
		case domain.ColumnTypeInt:
			col.Values = append(col.Values, v.Int64())
		case domain.ColumnTypeFloat:
			col.Values = append(col.Values, v.Double())
		default:
			col.Values = append(col.Values, v.String())
		}
	}
}
