// Package criteria defines filter criteria: the target a criterion applies to,
// the operator it uses and the parameters that operator takes. It also owns the
// persisted form of criteria and the translation of older operator catalogs.
package criteria

import "fmt"

// OperatorID identifies a filter operator. The string values are persisted.
type OperatorID string

const (
	OpEQ           OperatorID = "EQ"
	OpNEQ          OperatorID = "NEQ"
	OpNEQMiss      OperatorID = "NEQ_MISS"
	OpLT           OperatorID = "LT"
	OpLTE          OperatorID = "LTE"
	OpGT           OperatorID = "GT"
	OpGTE          OperatorID = "GTE"
	OpFirstNRows   OperatorID = "FIRST_N_ROWS"
	OpLastNRows    OperatorID = "LAST_N_ROWS"
	OpRegex        OperatorID = "REGEX"
	OpWildcard     OperatorID = "WILDCARD"
	OpIsTrue       OperatorID = "IS_TRUE"
	OpIsFalse      OperatorID = "IS_FALSE"
	OpIsMissing    OperatorID = "IS_MISSING"
	OpIsNotMissing OperatorID = "IS_NOT_MISSING"
)

// Operators lists every operator in display order.
var Operators = []OperatorID{
	OpEQ, OpNEQ, OpNEQMiss,
	OpLT, OpLTE, OpGT, OpGTE,
	OpFirstNRows, OpLastNRows,
	OpRegex, OpWildcard,
	OpIsTrue, OpIsFalse,
	OpIsMissing, OpIsNotMissing,
}

// ParseOperatorID validates s against the current operator catalog.
func ParseOperatorID(s string) (OperatorID, error) {
	for _, op := range Operators {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// Shape is the parameter shape an operator takes.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeValue
	ShapePattern
	ShapeCount
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeValue:
		return "value"
	case ShapePattern:
		return "pattern"
	case ShapeCount:
		return "count"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ShapeOf returns the parameter shape of op.
func ShapeOf(op OperatorID) Shape {
	switch op {
	case OpEQ, OpNEQ, OpNEQMiss, OpLT, OpLTE, OpGT, OpGTE:
		return ShapeValue
	case OpRegex, OpWildcard:
		return ShapePattern
	case OpFirstNRows, OpLastNRows:
		return ShapeCount
	default:
		return ShapeNone
	}
}

// Label returns the human-readable label of op.
func (op OperatorID) Label() string {
	switch op {
	case OpEQ:
		return "="
	case OpNEQ:
		return "≠"
	case OpNEQMiss:
		return "≠ (nor missing)"
	case OpLT:
		return "<"
	case OpLTE:
		return "≤"
	case OpGT:
		return ">"
	case OpGTE:
		return "≥"
	case OpFirstNRows:
		return "First n rows"
	case OpLastNRows:
		return "Last n rows"
	case OpRegex:
		return "Matches regex"
	case OpWildcard:
		return "Matches wildcard"
	case OpIsTrue:
		return "Is true"
	case OpIsFalse:
		return "Is false"
	case OpIsMissing:
		return "Is missing"
	case OpIsNotMissing:
		return "Is not missing"
	default:
		return string(op)
	}
}
