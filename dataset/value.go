package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Normalize maps driver and decoder values onto the scalar set the dataset
// works with: string, int64, float64, bool and nil. Nested JSON values
// (maps, slices) are carried through untouched.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, string, int64, float64, bool:
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val > math.MaxInt64 {
			return float64(val)
		}
		return int64(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// ToFloat reads a numeric scalar. Booleans count as 0 and 1.
func ToFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Compare orders two non-nil scalars of compatible kinds
func Compare(a, b any) (int, error) {
	if fa, ok := ToFloat(a); ok {
		fb, ok := ToFloat(b)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}
		return 0, nil
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), nil
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

// Key renders a scalar into a comparable string, treating 1 and 1.0 as equal
func Key(v any) string {
	switch val := v.(type) {
	case nil:
		return "z:"
	case int64:
		return "n:" + strconv.FormatInt(val, 10)
	case float64:
		// integral floats share the key of the equal int64
		if val == math.Trunc(val) && val >= math.MinInt64 && val < math.MaxInt64 {
			return "n:" + strconv.FormatInt(int64(val), 10)
		}
		return "n:" + strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return "b:" + strconv.FormatBool(val)
	case string:
		return "s:" + val
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("o:%v", v)
	}
	return "o:" + string(raw)
}

// Format renders a scalar for text encodings such as CSV
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "True"
		}
		return "False"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

func sortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
