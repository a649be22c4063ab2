package dataset

import (
	"fmt"
	"strings"
)

// Select projects the dataset onto exactly the given columns, in that order.
// A missing column fails the whole projection and the receiver is untouched.
func (d *Dataset) Select(columns []string) (*Dataset, error) {
	positions := make([]int, len(columns))
	for i, col := range columns {
		idx, ok := d.index[col]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, col)
		}
		positions[i] = idx
	}

	rows := make([][]any, len(d.rows))
	for i, row := range d.rows {
		projected := make([]any, len(positions))
		for j, idx := range positions {
			projected[j] = row[idx]
		}
		rows[i] = projected
	}

	return d.derive(append([]string(nil), columns...), rows)
}

// Rename substitutes column names. Names absent from the dataset are ignored,
// unmentioned columns keep their name. Renaming onto a name that is still in
// use, or renaming two columns onto one name, is a collision.
func (d *Dataset) Rename(mapping map[string]string) (*Dataset, error) {
	columns := make([]string, len(d.columns))
	for i, col := range d.columns {
		if to, ok := mapping[col]; ok {
			columns[i] = to
		} else {
			columns[i] = col
		}
	}

	seen := make(map[string]string, len(columns))
	for i, col := range columns {
		if prev, dup := seen[col]; dup {
			return nil, fmt.Errorf("%w: %q and %q would both be named %q", ErrNameCollision, prev, d.columns[i], col)
		}
		seen[col] = d.columns[i]
	}

	return d.derive(columns, d.rows)
}

// Filter keeps the rows the predicate accepts, in their original order
func (d *Dataset) Filter(keep func(Record) (bool, error)) (*Dataset, error) {
	var rows [][]any
	for i, row := range d.rows {
		ok, err := keep(d.Record(i))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return d.derive(d.Columns(), rows)
}

// DropNulls removes rows holding a nil in any column
func (d *Dataset) DropNulls() *Dataset {
	var rows [][]any
	for _, row := range d.rows {
		complete := true
		for _, v := range row {
			if v == nil {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, row)
		}
	}
	out, _ := d.derive(d.Columns(), rows)
	return out
}

// DropDuplicates keeps the first occurrence of each distinct row
func (d *Dataset) DropDuplicates() *Dataset {
	seen := make(map[string]struct{}, len(d.rows))
	var rows [][]any
	for _, row := range d.rows {
		key := rowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, row)
	}
	out, _ := d.derive(d.Columns(), rows)
	return out
}

// MapValues rewrites every cell through fn
func (d *Dataset) MapValues(fn func(any) any) *Dataset {
	rows := make([][]any, len(d.rows))
	for i, row := range d.rows {
		mapped := make([]any, len(row))
		for j, v := range row {
			mapped[j] = Normalize(fn(v))
		}
		rows[i] = mapped
	}
	out, _ := d.derive(d.Columns(), rows)
	return out
}

func rowKey(values []any) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(Key(v))
	}
	return b.String()
}
