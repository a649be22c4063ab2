// Package dataset holds the in-memory table that flows from a source, through
// the transformations, into a sink.
//
// A Dataset can be read either as a list of records (one map per row) or as a
// column-oriented table. Both views share the same ordered columns and rows,
// so converting between them never reorders or drops values.
package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrNameCollision  = errors.New("column name collision")
)

// Form is the view a dataset was produced in. Sinks always receive records,
// the form only tells whether the source handed out records or a table.
type Form int

const (
	FormTable Form = iota
	FormRecords
)

func (f Form) String() string {
	if f == FormRecords {
		return "records"
	}
	return "table"
}

// Record is one row keyed by column name
type Record = map[string]any

type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]any
	form    Form
}

// New builds a table-form dataset. Every row must have one value per column
// and column names must be unique.
func New(columns []string, rows [][]any) (*Dataset, error) {
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}

	out := make([][]any, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(columns))
		}
		normalized := make([]any, len(row))
		for j, v := range row {
			normalized[j] = Normalize(v)
		}
		out[i] = normalized
	}

	return &Dataset{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    out,
		form:    FormTable,
	}, nil
}

// MustNew is New for literals in tests and fixtures
func MustNew(columns []string, rows [][]any) *Dataset {
	ds, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return ds
}

// FromRecords builds a record-form dataset. Columns are ordered by first
// appearance across the records; a key missing from a record reads as nil.
func FromRecords(records []Record) *Dataset {
	var columns []string
	index := make(map[string]int)

	for _, rec := range records {
		for _, key := range sortedKeys(rec) {
			if _, ok := index[key]; !ok {
				index[key] = len(columns)
				columns = append(columns, key)
			}
		}
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for key, v := range rec {
			row[index[key]] = Normalize(v)
		}
		rows[i] = row
	}

	return &Dataset{columns: columns, index: index, rows: rows, form: FormRecords}
}

// FromOrderedRecords is FromRecords with an explicit column order, used when
// the decoder still knows the key order of the source document.
func FromOrderedRecords(columns []string, records []Record) (*Dataset, error) {
	ds, err := New(columns, nil)
	if err != nil {
		return nil, err
	}
	ds.form = FormRecords

	for _, rec := range records {
		row := make([]any, len(columns))
		for key, v := range rec {
			idx, ok := ds.index[key]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, key)
			}
			row[idx] = Normalize(v)
		}
		ds.rows = append(ds.rows, row)
	}
	return ds, nil
}

func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// Rows returns the table view. The outer slice is a copy, rows are shared.
func (d *Dataset) Rows() [][]any {
	return append([][]any(nil), d.rows...)
}

func (d *Dataset) NumRows() int    { return len(d.rows) }
func (d *Dataset) NumColumns() int { return len(d.columns) }
func (d *Dataset) Form() Form      { return d.form }

// WithForm returns the same data tagged with another form
func (d *Dataset) WithForm(f Form) *Dataset {
	out := *d
	out.form = f
	return &out
}

// Column returns the values of one column in row order
func (d *Dataset) Column(name string) ([]any, error) {
	idx, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	values := make([]any, len(d.rows))
	for i, row := range d.rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Record returns row i as a map
func (d *Dataset) Record(i int) Record {
	rec := make(Record, len(d.columns))
	for j, col := range d.columns {
		rec[col] = d.rows[i][j]
	}
	return rec
}

// Records returns the list-of-records view
func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.rows))
	for i := range d.rows {
		out[i] = d.Record(i)
	}
	return out
}

func (d *Dataset) derive(columns []string, rows [][]any) (*Dataset, error) {
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	return &Dataset{columns: columns, index: index, rows: rows, form: d.form}, nil
}

func buildIndex(columns []string) (map[string]int, error) {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, dup := index[col]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrNameCollision, col)
		}
		index[col] = i
	}
	return index, nil
}
