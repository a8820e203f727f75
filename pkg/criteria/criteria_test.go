package criteria

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/scalar"
	"github.com/stretchr/testify/require"
)

func TestWithOperatorCarriesCompatibleValues(t *testing.T) {
	c := Criterion{Target: Column("qty"), Operator: OpEQ, Params: ValueParams{Value: scalar.NewInt64Scalar(12)}}

	pattern := c.WithOperator(OpWildcard)
	require.Equal(t, PatternParams{Pattern: "12", CaseSensitive: true}, pattern.Params)

	count := pattern.WithOperator(OpFirstNRows)
	require.Equal(t, CountParams{Count: 12}, count.Params)

	back := count.WithOperator(OpGT)
	require.NoError(t, back.Validate())
	n, ok := IntegralLiteral(back.Params.(ValueParams).Value)
	require.True(t, ok)
	require.Equal(t, int64(12), n)

	none := back.WithOperator(OpIsMissing)
	require.Equal(t, NoParams{}, none.Params)
	require.Equal(t, ValueParams{}, none.WithOperator(OpEQ).Params)
}

func TestWithOperatorKeepsCaseFlag(t *testing.T) {
	c := Criterion{Target: Column("name"), Operator: OpRegex, Params: PatternParams{Pattern: "a.*", CaseSensitive: false}}

	wc := c.WithOperator(OpWildcard)
	require.Equal(t, PatternParams{Pattern: "a.*", CaseSensitive: false}, wc.Params)

	eq := c.WithOperator(OpEQ)
	require.Equal(t, "a.*", RenderLiteral(eq.Params.(ValueParams).Value))

	// Text that is not a number cannot become a count.
	require.Equal(t, CountParams{}, c.WithOperator(OpLastNRows).Params)
}

func TestValidateShape(t *testing.T) {
	require.NoError(t, New(Column("a"), OpIsTrue).Validate())
	require.NoError(t, Criterion{Target: Column("a"), Operator: OpIsMissing}.Validate())

	err := Criterion{Target: Column("a"), Operator: OpEQ, Params: PatternParams{Pattern: "x"}}.Validate()
	require.ErrorContains(t, err, "requires value parameters")

	err = Criterion{Target: RowNumber(), Operator: OpFirstNRows}.Validate()
	require.Error(t, err)
}

func TestSelectors(t *testing.T) {
	for _, target := range []Target{Column("a"), Column("<row-id>"), RowID(), RowNumber()} {
		got, err := ParseSelector(target.Selector())
		require.NoError(t, err)
		require.Equal(t, target, got)
	}

	bare, err := ParseSelector("price")
	require.NoError(t, err)
	require.Equal(t, Column("price"), bare)

	_, err = ParseSelector("column:")
	require.Error(t, err)
}

func TestParseLiteral(t *testing.T) {
	lit, err := ParseLiteral("LONG", "42")
	require.NoError(t, err)
	require.Equal(t, "int64", LiteralTypeName(lit))

	lit, err = ParseLiteral("DOUBLE", "2.5")
	require.NoError(t, err)
	require.Equal(t, "2.5", RenderLiteral(lit))

	lit, err = ParseLiteral("", "hello")
	require.NoError(t, err)
	require.Equal(t, "utf8", LiteralTypeName(lit))

	_, err = ParseLiteral("int8", "300")
	require.Error(t, err)

	_, err = ParseLiteral("decimal", "1")
	require.ErrorContains(t, err, "unsupported literal type")
}

// plainStash drops the literal so that stashes compare by value.
func plainStash(p Parameters) Stash {
	s := p.Stash()
	s.Literal = nil
	return s
}

func TestTranslateLegacy(t *testing.T) {
	tests := []struct {
		old     string
		payload map[string]any
		wantOp  OperatorID
		want    Parameters
	}{
		{LegacyMissing, nil, OpIsMissing, NoParams{}},
		{LegacyNotMissing, nil, OpIsNotMissing, NoParams{}},
		{LegacyIsTrue, nil, OpIsTrue, NoParams{}},
		{LegacyFirstNRows, map[string]any{"value": "5"}, OpFirstNRows, CountParams{Count: 5}},
		{LegacyLastNRows, map[string]any{"value": float64(3)}, OpLastNRows, CountParams{Count: 3}},
		{LegacyPattern, map[string]any{"pattern": "a*"}, OpWildcard, PatternParams{Pattern: "a*", CaseSensitive: true}},
		{LegacyPattern, map[string]any{"pattern": "a.*", "isRegex": true, "isCaseSensitive": false}, OpRegex, PatternParams{Pattern: "a.*"}},
		{string(OpNEQMiss), map[string]any{"value": "x", "type": "utf8"}, OpNEQMiss, ValueParams{Value: scalar.NewStringScalar("x")}},
	}
	for _, tt := range tests {
		op, params, err := TranslateLegacy(Column("c"), tt.old, tt.payload)
		require.NoError(t, err, tt.old)
		require.Equal(t, tt.wantOp, op, tt.old)
		require.Equal(t, plainStash(tt.want), plainStash(params), tt.old)
	}

	op, params, err := TranslateLegacy(Column("c"), LegacyGreaterOrEqual, map[string]any{"value": "7", "type": "INT"})
	require.NoError(t, err)
	require.Equal(t, OpGTE, op)
	require.Equal(t, "int32", LiteralTypeName(params.(ValueParams).Value))

	_, _, err = TranslateLegacy(Column("c"), "BETWEEN", nil)
	require.ErrorContains(t, err, "unknown legacy operator")
}

func TestTranslateLegacyIsIdempotent(t *testing.T) {
	for _, old := range LegacyOperators {
		payload := map[string]any{"value": "1", "type": "LONG", "pattern": "x"}
		for _, target := range []Target{Column("c"), RowNumber(), RowID()} {
			op, params, err := TranslateLegacy(target, old, payload)
			require.NoError(t, err, old)

			op2, params2, err := TranslateLegacy(target, string(op), payload)
			require.NoError(t, err, old)
			require.Equal(t, op, op2, old)
			require.Equal(t, plainStash(params), plainStash(params2), old)
		}
	}
}

func TestTranslateLegacyNotEqualNorMissingOnPseudoColumns(t *testing.T) {
	payload := map[string]any{"value": "2", "type": "INT"}
	tests := []struct {
		target Target
		want   OperatorID
	}{
		{Column("qty"), OpNEQMiss},
		{RowNumber(), OpNEQ},
		{RowID(), OpNEQ},
	}
	for _, tt := range tests {
		op, params, err := TranslateLegacy(tt.target, LegacyNotEqualNorMiss, payload)
		require.NoError(t, err, tt.target.String())
		require.Equal(t, tt.want, op, tt.target.String())
		require.Equal(t, "2", params.Stash().Text)
	}
}

func TestTranslateLegacyBooleanEquality(t *testing.T) {
	tests := []struct {
		old   string
		value string
		want  OperatorID
	}{
		{LegacyEqual, "true", OpIsTrue},
		{LegacyEqual, "false", OpIsFalse},
		{LegacyNotEqual, "true", OpIsFalse},
		{LegacyNotEqual, "false", OpIsTrue},
		{LegacyNotEqualNorMiss, "true", OpIsFalse},
		{LegacyNotEqualNorMiss, "FALSE", OpIsTrue},
	}
	for _, tt := range tests {
		op, params, err := TranslateLegacy(Column("flag"), tt.old, map[string]any{"value": tt.value, "type": "BOOLEAN"})
		require.NoError(t, err, "%s %s", tt.old, tt.value)
		require.Equal(t, tt.want, op, "%s %s", tt.old, tt.value)
		require.Equal(t, NoParams{}, params)
	}

	// A JSON boolean works as well as its string rendering.
	op, _, err := TranslateLegacy(Column("flag"), LegacyEqual, map[string]any{"value": true, "type": "BOOLEAN"})
	require.NoError(t, err)
	require.Equal(t, OpIsTrue, op)
}

func TestCodec(t *testing.T) {
	list := List{IsAnd: false, Criteria: []Criterion{
		{Target: Column("qty"), Operator: OpGT, Params: ValueParams{Value: scalar.NewUint16Scalar(7)}},
		{Target: Column("name"), Operator: OpRegex, Params: PatternParams{Pattern: `\d+`, CaseSensitive: false}},
		{Target: RowNumber(), Operator: OpLastNRows, Params: CountParams{Count: 4}},
		{Target: RowID(), Operator: OpNEQ, Params: ValueParams{Value: scalar.NewStringScalar("Row1")}},
		New(Column("flag"), OpIsFalse),
	}}

	data, err := Encode(list)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.False(t, got.IsAnd)
	require.Len(t, got.Criteria, len(list.Criteria))
	for i := range list.Criteria {
		require.Equal(t, list.Criteria[i].String(), got.Criteria[i].String())
		require.Equal(t, list.Criteria[i].Params.Stash().Text, got.Criteria[i].Params.Stash().Text)
	}
	require.Equal(t, "uint16", LiteralTypeName(got.Criteria[0].Params.(ValueParams).Value))
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte(`{"version": 3, "criteria": []}`))
	require.ErrorContains(t, err, "newer")

	_, err = Decode([]byte(`{"version": 2, "criteria": [{"target": "column:a", "operator": "EQUAL"}]}`))
	require.ErrorContains(t, err, "unknown operator")

	_, err = Decode([]byte(`{"version": 2, "criteria": ["EQ"]}`))
	require.Error(t, err)

	list, err := Decode([]byte(`{"criteria": []}`))
	require.NoError(t, err)
	require.True(t, list.IsAnd)
}
