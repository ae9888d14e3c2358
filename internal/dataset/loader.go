package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"tabserve/internal/domain"
)

// Load reads a single supported file into a Table, selecting the decoder by
// extension. rowCap, when positive, truncates during the read so that large
// files are never fully materialized.
func Load(path string, rowCap int) (*domain.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path, rowCap)
	case ".parquet":
		return loadParquet(path, rowCap)
	case ".jsonl":
		return loadNDJSON(path, rowCap)
	default:
		return nil, domain.ErrUnsupportedFormat("unsupported file format: %s", filepath.Ext(path))
	}
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, domain.ErrNotFound("path not found: %s", path)
	}
	if err != nil {
		return nil, domain.ErrComputation("open %s: %v", path, err)
	}
	return f, nil
}

// --- CSV ---

func loadCSV(path string, rowCap int) (*domain.Table, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return &domain.Table{}, nil
	}
	if err != nil {
		return nil, domain.ErrComputation("read csv header %s: %v", path, err)
	}
	names := append([]string(nil), header...)

	var records [][]string
	for rowCap <= 0 || len(records) < rowCap {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.ErrComputation("read csv %s: %v", path, err)
		}
		records = append(records, append([]string(nil), rec...))
	}

	table := &domain.Table{Columns: make([]domain.Column, len(names))}
	for c, name := range names {
		cells := make([]string, len(records))
		for i, rec := range records {
			if c < len(rec) {
				cells[i] = rec[c]
			}
		}
		table.Columns[c] = typedColumn(name, cells)
	}
	return table, nil
}

// typedColumn infers the narrowest type that covers all non-empty cells and
// converts them; empty cells become nulls.
func typedColumn(name string, cells []string) domain.Column {
	colType := inferCellType(cells)
	values := make([]interface{}, len(cells))
	for i, cell := range cells {
		if cell == "" {
			continue
		}
		switch colType {
		case domain.ColumnTypeInt:
			v, _ := strconv.ParseInt(cell, 10, 64)
			values[i] = v
		case domain.ColumnTypeFloat:
			v, _ := strconv.ParseFloat(cell, 64)
			values[i] = v
		case domain.ColumnTypeBool:
			v, _ := strconv.ParseBool(strings.ToLower(cell))
			values[i] = v
		default:
			values[i] = cell
		}
	}
	return domain.Column{Name: name, Type: colType, Values: values}
}

func inferCellType(cells []string) domain.ColumnType {
	sawValue := false
	isInt, isFloat, isBool := true, true, true
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		sawValue = true
		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, err := strconv.ParseBool(strings.ToLower(cell)); err != nil {
				isBool = false
			}
		}
	}
	switch {
	case !sawValue:
		return domain.ColumnTypeString
	case isInt:
		return domain.ColumnTypeInt
	case isFloat:
		return domain.ColumnTypeFloat
	case isBool:
		return domain.ColumnTypeBool
	default:
		return domain.ColumnTypeString
	}
}

// --- NDJSON ---

func loadNDJSON(path string, rowCap int) (*domain.Table, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		names   []string
		nameIdx = map[string]int{}
		records []map[string]interface{}
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if rowCap > 0 && len(records) >= rowCap {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		var rec map[string]interface{}
		if err := dec.Decode(&rec); err != nil {
			return nil, domain.ErrComputation("parse ndjson %s line %d: %v", path, len(records)+1, err)
		}
		// Preserve column order by first occurrence. Object key order within
		// a line is not recoverable from encoding/json, so sort new keys.
		newKeys := make([]string, 0, len(rec))
		for k := range rec {
			if _, ok := nameIdx[k]; !ok {
				newKeys = append(newKeys, k)
			}
		}
		sort.Strings(newKeys)
		for _, k := range newKeys {
			nameIdx[k] = len(names)
			names = append(names, k)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.ErrComputation("read ndjson %s: %v", path, err)
	}

	table := &domain.Table{Columns: make([]domain.Column, len(names))}
	for c, name := range names {
		table.Columns[c] = jsonColumn(name, records)
	}
	return table, nil
}

// jsonColumn unifies the JSON values observed for one key into a typed
// column. Numbers stay int64 while every value is integral, otherwise
// float64; mixed types degrade to string.
func jsonColumn(name string, records []map[string]interface{}) domain.Column {
	const (
		kindNone = iota
		kindInt
		kindFloat
		kindBool
		kindString
	)
	kind := kindNone
	widen := func(k int) {
		switch {
		case kind == kindNone:
			kind = k
		case kind == k:
		case (kind == kindInt && k == kindFloat) || (kind == kindFloat && k == kindInt):
			kind = kindFloat
		default:
			kind = kindString
		}
	}

	for _, rec := range records {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case json.Number:
			if _, err := strconv.ParseInt(val.String(), 10, 64); err == nil {
				widen(kindInt)
			} else {
				widen(kindFloat)
			}
		case bool:
			widen(kindBool)
		default:
			widen(kindString)
		}
	}

	colType := domain.ColumnTypeString
	switch kind {
	case kindInt:
		colType = domain.ColumnTypeInt
	case kindFloat:
		colType = domain.ColumnTypeFloat
	case kindBool:
		colType = domain.ColumnTypeBool
	}

	values := make([]interface{}, len(records))
	for i, rec := range records {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		switch colType {
		case domain.ColumnTypeInt:
			n, _ := v.(json.Number).Int64()
			values[i] = n
		case domain.ColumnTypeFloat:
			f, _ := v.(json.Number).Float64()
			values[i] = f
		case domain.ColumnTypeBool:
			values[i] = v.(bool)
		default:
			if s, ok := v.(string); ok {
				values[i] = s
			} else {
				values[i] = fmt.Sprintf("%v", v)
			}
		}
	}
	return domain.Column{Name: name, Type: colType, Values: values}
}
