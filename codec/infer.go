package codec

import (
	"strconv"
	"strings"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
)

// inferTable turns text cells into typed columns. A column becomes int64,
// float64 or bool only when every non-empty cell parses as such; empty cells
// become nil.
func inferTable(header []string, cells [][]string) (*dataset.Dataset, error) {
	rows := make([][]any, len(cells))
	for i := range rows {
		rows[i] = make([]any, len(header))
	}

	for col := range header {
		parse := inferColumn(cells, col)
		for i, rec := range cells {
			if col >= len(rec) || rec[col] == "" {
				continue
			}
			rows[i][col] = parse(rec[col])
		}
	}

	return dataset.New(header, rows)
}

func inferColumn(cells [][]string, col int) func(string) any {
	allInt, allFloat, allBool := true, true, true
	seen := false

	for _, rec := range cells {
		if col >= len(rec) || rec[col] == "" {
			continue
		}
		seen = true
		v := rec[col]
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(v); !ok {
				allBool = false
			}
		}
	}

	switch {
	case !seen:
		return func(v string) any { return v }
	case allInt:
		return func(v string) any {
			i, _ := strconv.ParseInt(v, 10, 64)
			return i
		}
	case allFloat:
		return func(v string) any {
			f, _ := strconv.ParseFloat(v, 64)
			return f
		}
	case allBool:
		return func(v string) any {
			b, _ := parseBool(v)
			return b
		}
	}
	return func(v string) any { return v }
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
