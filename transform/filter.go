package transform

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	goValuate "gopkg.in/Knetic/govaluate.v3"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
)

// Condition is a compiled row predicate
type Condition struct {
	source     string
	expression *goValuate.EvaluableExpression
	vars       []string
	literals   map[string]any
}

// literalPrefix names the parameters that carry quoted strings. govaluate
// parses a quoted literal that looks like a date into a unix timestamp, so
// strings are passed as parameters instead.
const literalPrefix = "__lit"

// CompileCondition accepts dataframe-query style conditions such as
// `age >= 18 and country == "NL"` and compiles them against the columns
// of ds. Unknown columns are rejected before any row is evaluated.
func CompileCondition(condition string, columns []string) (*Condition, error) {
	if strings.TrimSpace(condition) == "" {
		return nil, errors.New("filter condition is empty")
	}

	normalized, literals, err := normalizeCondition(condition)
	if err != nil {
		return nil, err
	}

	expression, err := goValuate.NewEvaluableExpression(normalized)
	if err != nil {
		return nil, fmt.Errorf("cannot compile condition %q: %w", condition, err)
	}

	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[col] = struct{}{}
	}
	var vars []string
	for _, v := range expression.Vars() {
		if _, ok := literals[v]; ok {
			continue
		}
		if _, ok := known[v]; !ok {
			return nil, fmt.Errorf("%w: %q referenced in condition", dataset.ErrColumnNotFound, v)
		}
		vars = append(vars, v)
	}

	return &Condition{source: condition, expression: expression, vars: vars, literals: literals}, nil
}

// Match evaluates the condition for one record. A row whose referenced cells
// are null and cannot be compared does not match.
func (c *Condition) Match(rec dataset.Record) (bool, error) {
	params := make(map[string]any, len(c.vars)+len(c.literals))
	for name, lit := range c.literals {
		params[name] = lit
	}
	hasNull := false
	for _, v := range c.vars {
		val := rec[v]
		if val == nil {
			hasNull = true
		}
		params[v] = evaluable(val)
	}

	result, err := c.expression.Evaluate(params)
	if err != nil {
		if hasNull {
			return false, nil
		}
		return false, fmt.Errorf("cannot evaluate condition %q: %w", c.source, err)
	}

	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q evaluated to %T, not a boolean", c.source, result)
	}
	return matched, nil
}

// govaluate does its arithmetic and comparisons on float64
func evaluable(v any) any {
	if i, ok := v.(int64); ok {
		return float64(i)
	}
	return v
}

// normalizeCondition rewrites the dataframe query dialect into govaluate
// syntax. Quoted strings are replaced by bracketed parameters whose values
// are returned alongside the expression.
func normalizeCondition(condition string) (string, map[string]any, error) {
	var b strings.Builder
	runes := []rune(condition)
	literals := make(map[string]any)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' || r == '"':
			end := indexRune(runes, i+1, r)
			if end < 0 {
				return "", nil, fmt.Errorf("unterminated string in condition %q", condition)
			}
			name := fmt.Sprintf("%s%d", literalPrefix, len(literals))
			literals[name] = string(runes[i+1 : end])
			b.WriteString("[" + name + "]")
			i = end

		case r == '`':
			end := indexRune(runes, i+1, '`')
			if end < 0 {
				return "", nil, fmt.Errorf("unterminated column name in condition %q", condition)
			}
			b.WriteString("[" + string(runes[i+1:end]) + "]")
			i = end

		case r == '&' || r == '|':
			if i+1 < len(runes) && runes[i+1] == r {
				i++
			}
			b.WriteRune(r)
			b.WriteRune(r)

		case r == '~':
			b.WriteRune('!')

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i+1 < len(runes) && (unicode.IsLetter(runes[i+1]) || unicode.IsDigit(runes[i+1]) || runes[i+1] == '_') {
				i++
			}
			b.WriteString(keyword(string(runes[start : i+1])))

		default:
			b.WriteRune(r)
		}
	}
	return b.String(), literals, nil
}

func keyword(word string) string {
	switch word {
	case "and":
		return "&&"
	case "or":
		return "||"
	case "not":
		return "!"
	case "True", "true":
		return "true"
	case "False", "false":
		return "false"
	}
	return word
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}
