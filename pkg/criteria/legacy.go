package criteria

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/scalar"
)

// Operator ids emitted by the previous catalog.
const (
	LegacyEqual           = "EQUAL"
	LegacyNotEqual        = "NOT_EQUAL"
	LegacyNotEqualNorMiss = "NOT_EQUAL_NOR_MISSING"
	LegacyLess            = "LESS"
	LegacyLessOrEqual     = "LESS_OR_EQUAL"
	LegacyGreater         = "GREATER"
	LegacyGreaterOrEqual  = "GREATER_OR_EQUAL"
	LegacyPattern         = "PATTERN"
	LegacyIsTrue          = "IS_TRUE"
	LegacyIsFalse         = "IS_FALSE"
	LegacyMissing         = "MISSING"
	LegacyNotMissing      = "NOT_MISSING"
	LegacyFirstNRows      = "FIRST_N_ROWS"
	LegacyLastNRows       = "LAST_N_ROWS"
)

var legacyRenames = map[string]OperatorID{
	LegacyEqual:           OpEQ,
	LegacyNotEqual:        OpNEQ,
	LegacyNotEqualNorMiss: OpNEQMiss,
	LegacyLess:            OpLT,
	LegacyLessOrEqual:     OpLTE,
	LegacyGreater:         OpGT,
	LegacyGreaterOrEqual:  OpGTE,
	LegacyIsTrue:          OpIsTrue,
	LegacyIsFalse:         OpIsFalse,
	LegacyMissing:         OpIsMissing,
	LegacyNotMissing:      OpIsNotMissing,
	LegacyFirstNRows:      OpFirstNRows,
	LegacyLastNRows:       OpLastNRows,
}

// LegacyOperators lists every operator id the previous catalog emitted.
var LegacyOperators = []string{
	LegacyEqual, LegacyNotEqual, LegacyNotEqualNorMiss,
	LegacyLess, LegacyLessOrEqual, LegacyGreater, LegacyGreaterOrEqual,
	LegacyPattern, LegacyIsTrue, LegacyIsFalse, LegacyMissing, LegacyNotMissing,
	LegacyFirstNRows, LegacyLastNRows,
}

// TranslateLegacy maps an operator id and parameter payload of the previous
// catalog onto the current one. Ids of the current catalog pass through, so
// translating twice is harmless.
//
// The previous catalog stored comparison literals as their string rendering
// next to a type name (INT, LONG, DOUBLE, STRING, BOOLEAN), regex and
// wildcard as a single PATTERN operator with an isRegex flag, and row counts
// under "value".
//
// Two renames depend on context. On pseudo-columns, which are never missing,
// NOT_EQUAL_NOR_MISSING becomes NEQ. Equality against a boolean literal
// becomes IS_TRUE or IS_FALSE, because boolean columns only offer those.
func TranslateLegacy(target Target, oldID string, payload map[string]any) (OperatorID, Parameters, error) {
	if oldID == LegacyPattern {
		op := OpWildcard
		if isRegex, _ := payload["isRegex"].(bool); isRegex {
			op = OpRegex
		}
		p := PatternParams{CaseSensitive: true}
		p.Pattern, _ = payloadText(payload, "pattern")
		if v, ok := payload["isCaseSensitive"].(bool); ok {
			p.CaseSensitive = v
		}
		return op, p, nil
	}

	op, ok := legacyRenames[oldID]
	if !ok {
		current, err := ParseOperatorID(oldID)
		if err != nil {
			return "", nil, fmt.Errorf("unknown legacy operator %q", oldID)
		}
		op = current
	}

	if op == OpNEQMiss && target.IsPseudo() {
		op = OpNEQ
	}

	params, err := decodeParams(op, payload)
	if err != nil {
		return "", nil, fmt.Errorf("translate %s: %w", oldID, err)
	}
	if truthOp, ok := booleanEquality(op, params); ok {
		return truthOp, NoParams{}, nil
	}
	return op, params, nil
}

// booleanEquality rewrites EQ, NEQ and NEQ_MISS against a boolean literal
// as the truth operator selecting the same non-missing cells. NEQ used to
// match missing cells too; IS_TRUE and IS_FALSE never do.
func booleanEquality(op OperatorID, params Parameters) (OperatorID, bool) {
	vp, ok := params.(ValueParams)
	if !ok || !HasLiteral(vp.Value) {
		return "", false
	}
	b, ok := vp.Value.(*scalar.Boolean)
	if !ok {
		return "", false
	}
	want := b.Value
	switch op {
	case OpEQ:
	case OpNEQ, OpNEQMiss:
		want = !want
	default:
		return "", false
	}
	if want {
		return OpIsTrue, true
	}
	return OpIsFalse, true
}
