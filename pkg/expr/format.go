package expr

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/scalar"

	"github.com/sandboxws/rowfilter/pkg/criteria"
)

var symbols = map[criteria.OperatorID]string{
	criteria.OpEQ:  "=",
	criteria.OpNEQ: "<>",
	criteria.OpLT:  "<",
	criteria.OpLTE: "<=",
	criteria.OpGT:  ">",
	criteria.OpGTE: ">=",
}

// Format renders c as a shorthand that ParseCriterion reads back.
func Format(c criteria.Criterion) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	target := formatTarget(c.Target)

	switch p := c.Params.(type) {
	case criteria.CountParams:
		return fmt.Sprintf("%s(%d)", c.Operator, p.Count), nil

	case criteria.ValueParams:
		if !criteria.HasLiteral(p.Value) {
			return "", fmt.Errorf("%s: missing value", c.Operator)
		}
		lit := formatLiteral(p.Value)
		if sym, ok := symbols[c.Operator]; ok {
			return fmt.Sprintf("%s %s %s", target, sym, lit), nil
		}
		return fmt.Sprintf("%s(%s, %s)", c.Operator, target, lit), nil

	case criteria.PatternParams:
		pattern := quote(p.Pattern)
		switch {
		case c.Operator == criteria.OpRegex && p.CaseSensitive:
			return fmt.Sprintf("%s REGEXP %s", target, pattern), nil
		case p.CaseSensitive:
			return fmt.Sprintf("%s(%s, %s)", c.Operator, target, pattern), nil
		default:
			return fmt.Sprintf("%s(%s, %s, 'i')", c.Operator, target, pattern), nil
		}
	}

	switch c.Operator {
	case criteria.OpIsMissing:
		return target + " IS NULL", nil
	case criteria.OpIsNotMissing:
		return target + " IS NOT NULL", nil
	case criteria.OpIsTrue:
		return target + " IS TRUE", nil
	case criteria.OpIsFalse:
		return target + " IS FALSE", nil
	}
	return "", fmt.Errorf("%w: operator %s", ErrUnsupported, c.Operator)
}

func formatTarget(t criteria.Target) string {
	switch t.Kind {
	case criteria.TargetRowID:
		return RowIDColumn
	case criteria.TargetRowNumber:
		return RowNumberColumn
	}
	return "`" + strings.ReplaceAll(t.Column, "`", "``") + "`"
}

func formatLiteral(s scalar.Scalar) string {
	switch s.(type) {
	case *scalar.Int8, *scalar.Int16, *scalar.Int32, *scalar.Int64,
		*scalar.Uint8, *scalar.Uint16, *scalar.Uint32, *scalar.Uint64:
		return criteria.RenderLiteral(s)
	case *scalar.Float32, *scalar.Float64:
		text := criteria.RenderLiteral(s)
		if strings.ContainsAny(text, "NI") {
			// NaN and Inf have no SQL literal.
			return quote(text)
		}
		if !strings.ContainsAny(text, ".e") {
			text += ".0"
		}
		return text
	}
	return quote(criteria.RenderLiteral(s))
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `''`)
	return "'" + s + "'"
}
