package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabserve/internal/domain"
)

func TestLoad_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := Load("data.xlsx", 0)
	var unsupported *domain.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), 0)
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestLoadCSV_InfersTypes(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "data.csv",
		"id,score,active,city\n1,1.5,true,Berlin\n2,2.5,false,\n3,,true,Oslo\n")

	table, err := Load(path, 0)
	require.NoError(t, err)

	require.Equal(t, 4, table.NumCols())
	assert.Equal(t, 3, table.NumRows())

	assert.Equal(t, domain.ColumnTypeInt, table.Columns[0].Type)
	assert.Equal(t, domain.ColumnTypeFloat, table.Columns[1].Type)
	assert.Equal(t, domain.ColumnTypeBool, table.Columns[2].Type)
	assert.Equal(t, domain.ColumnTypeString, table.Columns[3].Type)

	assert.Equal(t, int64(1), table.Columns[0].Values[0])
	assert.Nil(t, table.Columns[1].Values[2], "empty cell is null")
	assert.Nil(t, table.Columns[3].Values[1], "empty cell is null")
	assert.Equal(t, 1, table.Columns[1].NullCount())
}

func TestLoadCSV_RowCap(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "data.csv", "x\n1\n2\n3\n4\n5\n")

	table, err := Load(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumRows())
}

func TestLoadCSV_EmptyFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "data.csv", "")

	table, err := Load(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, table.NumCols())
	assert.Equal(t, 0, table.NumRows())
}

func TestLoadNDJSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "data.jsonl",
		`{"age":30,"name":"ada"}`+"\n"+
			`{"age":31,"name":"bob","ratio":0.5}`+"\n"+
			`{"age":null,"name":"eve","ratio":1}`+"\n")

	table, err := Load(path, 0)
	require.NoError(t, err)

	require.Equal(t, 3, table.NumCols())
	assert.Equal(t, 3, table.NumRows())

	age := table.Columns[table.ColumnIndex("age")]
	assert.Equal(t, domain.ColumnTypeInt, age.Type)
	assert.Equal(t, int64(30), age.Values[0])
	assert.Nil(t, age.Values[2])

	// int and float observations widen to float.
	ratio := table.Columns[table.ColumnIndex("ratio")]
	assert.Equal(t, domain.ColumnTypeFloat, ratio.Type)
	assert.Nil(t, ratio.Values[0], "missing key is null")
	assert.Equal(t, 1.0, ratio.Values[2])
}

func TestLoadNDJSON_RowCap(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "data.jsonl",
		`{"x":1}`+"\n"+`{"x":2}`+"\n"+`{"x":3}`+"\n")

	table, err := Load(path, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, table.NumRows())
}

type parquetRow struct {
	ID     int64   `parquet:"id"`
	Score  float64 `parquet:"score"`
	Active bool    `parquet:"active"`
	City   string  `parquet:"city"`
}

func writeParquet(t *testing.T, rows []parquetRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[parquetRow](f)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestLoadParquet(t *testing.T) {
	t.Parallel()

	path := writeParquet(t, []parquetRow{
		{ID: 1, Score: 1.5, Active: true, City: "Berlin"},
		{ID: 2, Score: 2.5, Active: false, City: "Oslo"},
		{ID: 3, Score: 3.5, Active: true, City: "Lagos"},
	})

	table, err := Load(path, 0)
	require.NoError(t, err)

	require.Equal(t, 4, table.NumCols())
	assert.Equal(t, 3, table.NumRows())

	assert.Equal(t, domain.ColumnTypeInt, table.Columns[table.ColumnIndex("id")].Type)
	assert.Equal(t, domain.ColumnTypeFloat, table.Columns[table.ColumnIndex("score")].Type)
	assert.Equal(t, domain.ColumnTypeBool, table.Columns[table.ColumnIndex("active")].Type)
	assert.Equal(t, domain.ColumnTypeString, table.Columns[table.ColumnIndex("city")].Type)

	assert.Equal(t, int64(2), table.Columns[table.ColumnIndex("id")].Values[1])
	assert.Equal(t, "Oslo", table.Columns[table.ColumnIndex("city")].Values[1])
}

func TestLoadParquet_RowCap(t *testing.T) {
	t.Parallel()

	path := writeParquet(t, []parquetRow{
		{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4},
	})

	table, err := Load(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumRows())
}
