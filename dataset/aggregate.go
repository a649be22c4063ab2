package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Aggregation reduces Column within each group with the named function
type Aggregation struct {
	Column string
	Func   string
}

// Aggregate partitions rows by the group-by tuple and emits one row per
// distinct tuple: the group-by values followed by one value per aggregation.
// Groups come out in first-appearance order; rows whose key holds a nil are
// dropped.
func (d *Dataset) Aggregate(groupBy []string, aggs []Aggregation) (*Dataset, error) {
	if len(groupBy) == 0 {
		return nil, errors.New("aggregate requires at least one group_by column")
	}

	keyPos := make([]int, len(groupBy))
	for i, col := range groupBy {
		idx, ok := d.index[col]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, col)
		}
		keyPos[i] = idx
	}

	aggPos := make([]int, len(aggs))
	for i, agg := range aggs {
		idx, ok := d.index[agg.Column]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, agg.Column)
		}
		if _, err := newAggregator(agg.Func); err != nil {
			return nil, err
		}
		aggPos[i] = idx
	}

	columns := append([]string(nil), groupBy...)
	for _, agg := range aggs {
		columns = append(columns, agg.Column)
	}

	type group struct {
		key   []any
		state []aggregator
	}
	groups := make(map[string]*group)
	var order []string

	for rowNum, row := range d.rows {
		key := make([]any, len(keyPos))
		skip := false
		for i, idx := range keyPos {
			if row[idx] == nil {
				skip = true
				break
			}
			key[i] = row[idx]
		}
		if skip {
			continue
		}

		k := rowKey(key)
		g, ok := groups[k]
		if !ok {
			g = &group{key: key, state: make([]aggregator, len(aggs))}
			for i, agg := range aggs {
				g.state[i], _ = newAggregator(agg.Func)
			}
			groups[k] = g
			order = append(order, k)
		}

		for i, idx := range aggPos {
			if err := g.state[i].add(row[idx]); err != nil {
				return nil, fmt.Errorf("%s(%s) at row %d: %w", aggs[i].Func, aggs[i].Column, rowNum, err)
			}
		}
	}

	rows := make([][]any, 0, len(order))
	for _, k := range order {
		g := groups[k]
		out := append([]any(nil), g.key...)
		for _, st := range g.state {
			out = append(out, st.result())
		}
		rows = append(rows, out)
	}

	return d.derive(columns, rows)
}

type aggregator interface {
	add(v any) error
	result() any
}

func newAggregator(fn string) (aggregator, error) {
	switch strings.ToLower(strings.TrimSpace(fn)) {
	case "sum":
		return &sumAgg{ints: true}, nil
	case "mean", "avg", "average":
		return &meanAgg{}, nil
	case "count":
		return &countAgg{}, nil
	case "min":
		return &extremeAgg{sign: -1}, nil
	case "max":
		return &extremeAgg{sign: 1}, nil
	case "first":
		return &firstAgg{}, nil
	case "last":
		return &lastAgg{}, nil
	case "nunique":
		return &nuniqueAgg{seen: make(map[string]struct{})}, nil
	case "median":
		return &medianAgg{}, nil
	}
	return nil, fmt.Errorf("unknown aggregation function %q", fn)
}

type sumAgg struct {
	ints bool
	isum int64
	fsum float64
}

func (a *sumAgg) add(v any) error {
	if v == nil {
		return nil
	}
	f, ok := ToFloat(v)
	if !ok {
		return fmt.Errorf("cannot sum non-numeric value %v", v)
	}
	switch val := v.(type) {
	case int64:
		a.isum += val
	case bool:
		if val {
			a.isum++
		}
	default:
		a.ints = false
	}
	a.fsum += f
	return nil
}

func (a *sumAgg) result() any {
	if a.ints {
		return a.isum
	}
	return a.fsum
}

type meanAgg struct {
	sum   float64
	count int
}

func (a *meanAgg) add(v any) error {
	if v == nil {
		return nil
	}
	f, ok := ToFloat(v)
	if !ok {
		return fmt.Errorf("cannot average non-numeric value %v", v)
	}
	a.sum += f
	a.count++
	return nil
}

func (a *meanAgg) result() any {
	if a.count == 0 {
		return nil
	}
	return a.sum / float64(a.count)
}

type countAgg struct{ n int64 }

func (a *countAgg) add(v any) error {
	if v != nil {
		a.n++
	}
	return nil
}

func (a *countAgg) result() any { return a.n }

// extremeAgg is min for sign -1 and max for sign 1
type extremeAgg struct {
	sign int
	best any
}

func (a *extremeAgg) add(v any) error {
	if v == nil {
		return nil
	}
	if a.best == nil {
		a.best = v
		return nil
	}
	cmp, err := Compare(v, a.best)
	if err != nil {
		return err
	}
	if cmp*a.sign > 0 {
		a.best = v
	}
	return nil
}

func (a *extremeAgg) result() any { return a.best }

type firstAgg struct {
	val any
	set bool
}

func (a *firstAgg) add(v any) error {
	if v != nil && !a.set {
		a.val, a.set = v, true
	}
	return nil
}

func (a *firstAgg) result() any { return a.val }

type lastAgg struct{ val any }

func (a *lastAgg) add(v any) error {
	if v != nil {
		a.val = v
	}
	return nil
}

func (a *lastAgg) result() any { return a.val }

type nuniqueAgg struct{ seen map[string]struct{} }

func (a *nuniqueAgg) add(v any) error {
	if v != nil {
		a.seen[Key(v)] = struct{}{}
	}
	return nil
}

func (a *nuniqueAgg) result() any { return int64(len(a.seen)) }

type medianAgg struct{ values []float64 }

func (a *medianAgg) add(v any) error {
	if v == nil {
		return nil
	}
	f, ok := ToFloat(v)
	if !ok {
		return fmt.Errorf("cannot take median of non-numeric value %v", v)
	}
	a.values = append(a.values, f)
	return nil
}

func (a *medianAgg) result() any {
	n := len(a.values)
	if n == 0 {
		return nil
	}
	sort.Float64s(a.values)
	if n%2 == 1 {
		return a.values[n/2]
	}
	return (a.values[n/2-1] + a.values[n/2]) / 2
}
