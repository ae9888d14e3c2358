package domain

// ColumnType identifies the element type of a table column.
type ColumnType string

// Supported column types. Values inside a column are int64, float64, bool,
// or string; nil marks a null.
const (
	ColumnTypeInt    ColumnType = "int64"
	ColumnTypeFloat  ColumnType = "float64"
	ColumnTypeBool   ColumnType = "bool"
	ColumnTypeString ColumnType = "string"
)

// Numeric reports whether values of this type participate in numeric
// aggregation and correlation.
func (t ColumnType) Numeric() bool {
	return t == ColumnTypeInt || t == ColumnTypeFloat
}

// Column is a named, homogeneously typed sequence of values.
type Column struct {
	Name   string
	Type   ColumnType
	Values []interface{}
}

// NullCount returns the number of null entries in the column.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Table is an in-memory columnar relation. All columns have equal length.
// A Table is a value scoped to one work-function invocation; it has no
// identity or lifecycle beyond that.
type Table struct {
	Columns []Column
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.Columns) }

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i := range t.Columns {
		names[i] = t.Columns[i].Name
	}
	return names
}

// Row materializes row i as a positional slice.
func (t *Table) Row(i int) []interface{} {
	row := make([]interface{}, len(t.Columns))
	for c := range t.Columns {
		row[c] = t.Columns[c].Values[i]
	}
	return row
}

// Rows materializes all rows in row-major order.
func (t *Table) Rows() [][]interface{} {
	rows := make([][]interface{}, t.NumRows())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// AppendRow appends one positional row. The caller must supply one value
// per column.
func (t *Table) AppendRow(row []interface{}) {
	for c := range t.Columns {
		t.Columns[c].Values = append(t.Columns[c].Values, row[c])
	}
}

// Head returns a new table containing at most n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > t.NumRows() {
		n = t.NumRows()
	}
	out := &Table{Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = Column{Name: c.Name, Type: c.Type, Values: c.Values[:n:n]}
	}
	return out
}

// SameShape reports whether the other table has identical column names and
// types in identical order.
func (t *Table) SameShape(other *Table) bool {
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i].Name != other.Columns[i].Name || t.Columns[i].Type != other.Columns[i].Type {
			return false
		}
	}
	return true
}

// AppendTable appends all rows of other. Shapes must match.
func (t *Table) AppendTable(other *Table) {
	for i := range t.Columns {
		t.Columns[i].Values = append(t.Columns[i].Values, other.Columns[i].Values...)
	}
}
