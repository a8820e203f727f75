// Package expr parses SQL-like shorthands into filter criteria. It uses
// TiDB's SQL parser and accepts exactly one comparison per shorthand, so
// every shorthand maps to one criterion. Lists are joined by the caller.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/scalar"
	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	"github.com/pingcap/tidb/pkg/parser/test_driver"

	"github.com/sandboxws/rowfilter/pkg/criteria"
)

// Pseudo-column names.
const (
	RowIDColumn     = "_row_id"
	RowNumberColumn = "_row_number"
)

// ErrUnsupported is returned for valid SQL that has no criterion form.
var ErrUnsupported = errors.New("unsupported shorthand")

var comparisons = map[opcode.Op]criteria.OperatorID{
	opcode.EQ: criteria.OpEQ,
	opcode.NE: criteria.OpNEQ,
	opcode.LT: criteria.OpLT,
	opcode.LE: criteria.OpLTE,
	opcode.GT: criteria.OpGT,
	opcode.GE: criteria.OpGTE,
}

// mirrored gives the operator to use when the literal is on the left.
var mirrored = map[criteria.OperatorID]criteria.OperatorID{
	criteria.OpEQ:  criteria.OpEQ,
	criteria.OpNEQ: criteria.OpNEQ,
	criteria.OpLT:  criteria.OpGT,
	criteria.OpLTE: criteria.OpGTE,
	criteria.OpGT:  criteria.OpLT,
	criteria.OpGTE: criteria.OpLTE,
}

// ParseCriterion parses one shorthand such as "qty >= 10", "name LIKE 'a%'"
// or "FIRST_N_ROWS(5)".
func ParseCriterion(sql string) (criteria.Criterion, error) {
	node, err := parseExpr(parser.New(), sql)
	if err != nil {
		return criteria.Criterion{}, err
	}
	c, err := toCriterion(node)
	if err != nil {
		return criteria.Criterion{}, fmt.Errorf("shorthand %q: %w", sql, err)
	}
	return c, nil
}

// ParseCriteria parses every shorthand and joins them with isAnd.
func ParseCriteria(sqls []string, isAnd bool) (criteria.List, error) {
	p := parser.New()
	list := criteria.List{IsAnd: isAnd, Criteria: make([]criteria.Criterion, 0, len(sqls))}
	for i, sql := range sqls {
		node, err := parseExpr(p, sql)
		if err != nil {
			return criteria.List{}, fmt.Errorf("where[%d]: %w", i, err)
		}
		c, err := toCriterion(node)
		if err != nil {
			return criteria.List{}, fmt.Errorf("where[%d] %q: %w", i, sql, err)
		}
		list.Criteria = append(list.Criteria, c)
	}
	return list, nil
}

// parseExpr parses a standalone SQL expression by wrapping it in a SELECT statement.
func parseExpr(p *parser.Parser, exprSQL string) (ast.ExprNode, error) {
	stmt, err := p.ParseOneStmt("SELECT "+exprSQL, "", "")
	if err != nil {
		return nil, fmt.Errorf("parse shorthand %q: %w", exprSQL, err)
	}
	sel, ok := stmt.(*ast.SelectStmt)
	if !ok || sel.Fields == nil || len(sel.Fields.Fields) != 1 || sel.From != nil || sel.Where != nil {
		return nil, fmt.Errorf("parse shorthand %q: expected a single expression", exprSQL)
	}
	return sel.Fields.Fields[0].Expr, nil
}

func toCriterion(node ast.ExprNode) (criteria.Criterion, error) {
	switch e := node.(type) {
	case *ast.ParenthesesExpr:
		return toCriterion(e.Expr)

	case *ast.BinaryOperationExpr:
		op, ok := comparisons[e.Op]
		if !ok {
			return criteria.Criterion{}, fmt.Errorf("%w: operator %s, only single comparisons are allowed", ErrUnsupported, e.Op)
		}
		colNode, litNode := e.L, e.R
		if _, isCol := unparen(colNode).(*ast.ColumnNameExpr); !isCol {
			colNode, litNode = e.R, e.L
			op = mirrored[op]
		}
		target, err := targetOf(colNode)
		if err != nil {
			return criteria.Criterion{}, err
		}
		lit, err := literalOf(litNode)
		if err != nil {
			return criteria.Criterion{}, err
		}
		return criteria.Criterion{Target: target, Operator: op, Params: criteria.ValueParams{Value: lit}}, nil

	case *ast.IsNullExpr:
		target, err := targetOf(e.Expr)
		if err != nil {
			return criteria.Criterion{}, err
		}
		if e.Not {
			return criteria.New(target, criteria.OpIsNotMissing), nil
		}
		return criteria.New(target, criteria.OpIsMissing), nil

	case *ast.IsTruthExpr:
		if e.Not {
			return criteria.Criterion{}, fmt.Errorf("%w: IS NOT TRUE/FALSE", ErrUnsupported)
		}
		target, err := targetOf(e.Expr)
		if err != nil {
			return criteria.Criterion{}, err
		}
		if e.True != 0 {
			return criteria.New(target, criteria.OpIsTrue), nil
		}
		return criteria.New(target, criteria.OpIsFalse), nil

	case *ast.PatternRegexpExpr:
		if e.Not {
			return criteria.Criterion{}, fmt.Errorf("%w: NOT REGEXP", ErrUnsupported)
		}
		return patternCriterion(e.Expr, e.Pattern, criteria.OpRegex, true, nil)

	case *ast.PatternLikeOrIlikeExpr:
		if e.Not {
			return criteria.Criterion{}, fmt.Errorf("%w: NOT LIKE", ErrUnsupported)
		}
		return patternCriterion(e.Expr, e.Pattern, criteria.OpWildcard, e.IsLike, func(p string) (string, error) {
			return likeToWildcard(p, e.Escape)
		})

	case *ast.FuncCallExpr:
		return callCriterion(e)

	default:
		return criteria.Criterion{}, fmt.Errorf("%w: %T", ErrUnsupported, node)
	}
}

func unparen(node ast.ExprNode) ast.ExprNode {
	for {
		p, ok := node.(*ast.ParenthesesExpr)
		if !ok {
			return node
		}
		node = p.Expr
	}
}

func targetOf(node ast.ExprNode) (criteria.Target, error) {
	col, ok := unparen(node).(*ast.ColumnNameExpr)
	if !ok {
		return criteria.Target{}, fmt.Errorf("%w: expected a column, got %T", ErrUnsupported, node)
	}
	if col.Name.Table.O != "" {
		return criteria.Target{}, fmt.Errorf("%w: qualified column %s.%s", ErrUnsupported, col.Name.Table.O, col.Name.Name.O)
	}
	name := col.Name.Name.O
	switch strings.ToLower(name) {
	case RowIDColumn:
		return criteria.RowID(), nil
	case RowNumberColumn:
		return criteria.RowNumber(), nil
	}
	return criteria.Column(name), nil
}

func literalOf(node ast.ExprNode) (scalar.Scalar, error) {
	node = unparen(node)
	if u, ok := node.(*ast.UnaryOperationExpr); ok && u.Op == opcode.Minus {
		lit, err := literalOf(u.V)
		if err != nil {
			return nil, err
		}
		return negate(lit)
	}
	v, ok := node.(*test_driver.ValueExpr)
	if !ok {
		return nil, fmt.Errorf("%w: expected a literal, got %T", ErrUnsupported, node)
	}
	d := v.Datum
	switch d.Kind() {
	case test_driver.KindInt64:
		return scalar.NewInt64Scalar(d.GetInt64()), nil
	case test_driver.KindUint64:
		return scalar.NewUint64Scalar(d.GetUint64()), nil
	case test_driver.KindFloat32:
		return scalar.NewFloat64Scalar(float64(d.GetFloat32())), nil
	case test_driver.KindFloat64:
		return scalar.NewFloat64Scalar(d.GetFloat64()), nil
	case test_driver.KindMysqlDecimal:
		f, err := strconv.ParseFloat(d.GetMysqlDecimal().String(), 64)
		if err != nil {
			return nil, fmt.Errorf("decimal literal: %w", err)
		}
		return scalar.NewFloat64Scalar(f), nil
	case test_driver.KindString:
		return scalar.NewStringScalar(d.GetString()), nil
	case test_driver.KindNull:
		return nil, fmt.Errorf("%w: comparison with NULL, use IS NULL", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: literal kind %d", ErrUnsupported, d.Kind())
	}
}

func negate(lit scalar.Scalar) (scalar.Scalar, error) {
	switch v := lit.(type) {
	case *scalar.Int64:
		return scalar.NewInt64Scalar(-v.Value), nil
	case *scalar.Uint64:
		if v.Value == 1<<63 {
			return scalar.NewInt64Scalar(-1 << 63), nil
		}
		return nil, fmt.Errorf("%w: -%d overflows int64", ErrUnsupported, v.Value)
	case *scalar.Float64:
		return scalar.NewFloat64Scalar(-v.Value), nil
	}
	return nil, fmt.Errorf("%w: cannot negate %s", ErrUnsupported, lit.DataType())
}

func stringOf(node ast.ExprNode) (string, error) {
	v, ok := unparen(node).(*test_driver.ValueExpr)
	if !ok || v.Datum.Kind() != test_driver.KindString {
		return "", fmt.Errorf("%w: expected a string literal, got %T", ErrUnsupported, node)
	}
	return v.Datum.GetString(), nil
}

func patternCriterion(colNode, patNode ast.ExprNode, op criteria.OperatorID, caseSensitive bool, convert func(string) (string, error)) (criteria.Criterion, error) {
	target, err := targetOf(colNode)
	if err != nil {
		return criteria.Criterion{}, err
	}
	pattern, err := stringOf(patNode)
	if err != nil {
		return criteria.Criterion{}, err
	}
	if convert != nil {
		if pattern, err = convert(pattern); err != nil {
			return criteria.Criterion{}, err
		}
	}
	return criteria.Criterion{
		Target:   target,
		Operator: op,
		Params:   criteria.PatternParams{Pattern: pattern, CaseSensitive: caseSensitive},
	}, nil
}

// likeToWildcard turns a LIKE pattern into a wildcard pattern.
func likeToWildcard(like string, escape byte) (string, error) {
	if escape == 0 {
		escape = '\\'
	}
	var sb strings.Builder
	for i := 0; i < len(like); i++ {
		c := like[i]
		switch {
		case c == escape && i+1 < len(like):
			i++
			if next := like[i]; next == '*' || next == '?' {
				return "", fmt.Errorf("%w: LIKE pattern %q matches a literal %c", ErrUnsupported, like, next)
			}
			sb.WriteByte(like[i])
		case c == '%':
			sb.WriteByte('*')
		case c == '_':
			sb.WriteByte('?')
		case c == '*' || c == '?':
			return "", fmt.Errorf("%w: LIKE pattern %q matches a literal %c", ErrUnsupported, like, c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// callCriterion handles the function forms. FIRST_N_ROWS(n) and
// LAST_N_ROWS(n) take a count. Every other operator can be written as
// OP(column[, value[, 'i']]), where 'i' makes pattern operators ignore case.
func callCriterion(e *ast.FuncCallExpr) (criteria.Criterion, error) {
	op, err := criteria.ParseOperatorID(strings.ToUpper(e.FnName.O))
	if err != nil {
		return criteria.Criterion{}, fmt.Errorf("%w: function %s", ErrUnsupported, e.FnName.O)
	}

	switch criteria.ShapeOf(op) {
	case criteria.ShapeCount:
		if len(e.Args) != 1 {
			return criteria.Criterion{}, fmt.Errorf("%s takes one argument, got %d", op, len(e.Args))
		}
		lit, err := literalOf(e.Args[0])
		if err != nil {
			return criteria.Criterion{}, err
		}
		n, ok := criteria.IntegralLiteral(lit)
		if !ok {
			return criteria.Criterion{}, fmt.Errorf("%s takes an integer count, got %s", op, criteria.RenderLiteral(lit))
		}
		return criteria.Criterion{Target: criteria.RowNumber(), Operator: op, Params: criteria.CountParams{Count: n}}, nil

	case criteria.ShapeNone:
		if len(e.Args) != 1 {
			return criteria.Criterion{}, fmt.Errorf("%s takes one argument, got %d", op, len(e.Args))
		}
		target, err := targetOf(e.Args[0])
		if err != nil {
			return criteria.Criterion{}, err
		}
		return criteria.New(target, op), nil

	case criteria.ShapeValue:
		if len(e.Args) != 2 {
			return criteria.Criterion{}, fmt.Errorf("%s takes two arguments, got %d", op, len(e.Args))
		}
		target, err := targetOf(e.Args[0])
		if err != nil {
			return criteria.Criterion{}, err
		}
		lit, err := literalOf(e.Args[1])
		if err != nil {
			return criteria.Criterion{}, err
		}
		return criteria.Criterion{Target: target, Operator: op, Params: criteria.ValueParams{Value: lit}}, nil

	default:
		if len(e.Args) != 2 && len(e.Args) != 3 {
			return criteria.Criterion{}, fmt.Errorf("%s takes two or three arguments, got %d", op, len(e.Args))
		}
		caseSensitive := true
		if len(e.Args) == 3 {
			flags, err := stringOf(e.Args[2])
			if err != nil {
				return criteria.Criterion{}, err
			}
			if flags != "i" {
				return criteria.Criterion{}, fmt.Errorf("%s: unknown flags %q", op, flags)
			}
			caseSensitive = false
		}
		return patternCriterion(e.Args[0], e.Args[1], op, caseSensitive, nil)
	}
}
