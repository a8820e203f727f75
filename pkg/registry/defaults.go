package registry

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/scalar"

	"github.com/sandboxws/rowfilter/pkg/criteria"
	"github.com/sandboxws/rowfilter/pkg/partition"
	"github.com/sandboxws/rowfilter/pkg/predicate"
)

// Default returns a registry holding the built-in column, row id and row
// number catalogs.
func Default() *Registry {
	r := New()
	registerColumnOperators(r)
	registerRowIDOperators(r)
	registerRowNumberOperators(r)
	return r
}

// trueForMissing is the answer each operator gives for a missing cell.
func trueForMissing(op criteria.OperatorID) bool {
	return op == criteria.OpNEQ || op == criteria.OpIsMissing
}

func descriptor(op criteria.OperatorID, applies func(arrow.DataType) bool, f Factory) Descriptor {
	return Descriptor{
		ID:                   op,
		Label:                op.Label(),
		Applies:              applies,
		Shape:                criteria.ShapeOf(op),
		ReturnTrueForMissing: trueForMissing(op),
		Factory:              f,
	}
}

func registerColumnOperators(r *Registry) {
	for _, op := range []criteria.OperatorID{criteria.OpEQ, criteria.OpNEQ, criteria.OpNEQMiss} {
		r.Register(criteria.TargetColumn, descriptor(op, Equatable, compareColumn(op)))
	}
	for _, op := range []criteria.OperatorID{criteria.OpLT, criteria.OpLTE, criteria.OpGT, criteria.OpGTE} {
		r.Register(criteria.TargetColumn, descriptor(op, Ordered, compareColumn(op)))
	}
	for _, op := range []criteria.OperatorID{criteria.OpRegex, criteria.OpWildcard} {
		r.Register(criteria.TargetColumn, descriptor(op, Matchable, matchColumn(op)))
	}
	r.Register(criteria.TargetColumn, descriptor(criteria.OpIsTrue, isBool, truth(true)))
	r.Register(criteria.TargetColumn, descriptor(criteria.OpIsFalse, isBool, truth(false)))
	r.Register(criteria.TargetColumn, descriptor(criteria.OpIsMissing, nil, constant(predicate.AlwaysFalse)))
	r.Register(criteria.TargetColumn, descriptor(criteria.OpIsNotMissing, nil, constant(predicate.AlwaysTrue)))
}

func registerRowIDOperators(r *Registry) {
	for _, op := range []criteria.OperatorID{criteria.OpEQ, criteria.OpNEQ} {
		d := descriptor(op, nil, compareRowID(op))
		d.ValueType = arrow.BinaryTypes.String
		r.Register(criteria.TargetRowID, d)
	}
	for _, op := range []criteria.OperatorID{criteria.OpRegex, criteria.OpWildcard} {
		r.Register(criteria.TargetRowID, descriptor(op, nil, matchRowID(op)))
	}
}

func registerRowNumberOperators(r *Registry) {
	for _, op := range []criteria.OperatorID{
		criteria.OpEQ, criteria.OpNEQ, criteria.OpLT, criteria.OpLTE, criteria.OpGT, criteria.OpGTE,
		criteria.OpFirstNRows, criteria.OpLastNRows,
	} {
		d := descriptor(op, nil, rowNumberRange(op))
		if d.Shape == criteria.ShapeValue {
			d.ValueType = arrow.PrimitiveTypes.Int64
		}
		d.Sliceable = true
		r.Register(criteria.TargetRowNumber, d)
	}
	for _, op := range []criteria.OperatorID{criteria.OpRegex, criteria.OpWildcard} {
		r.Register(criteria.TargetRowNumber, descriptor(op, nil, matchRowNumber(op)))
	}
}

func literalOf(op criteria.OperatorID, params criteria.Parameters) (scalar.Scalar, error) {
	p, ok := params.(criteria.ValueParams)
	if !ok || !criteria.HasLiteral(p.Value) {
		return nil, fmt.Errorf("%w: %s needs a value", ErrMissingValue, op)
	}
	return p.Value, nil
}

func patternOf(op criteria.OperatorID, params criteria.Parameters) (matcher, error) {
	p, ok := params.(criteria.PatternParams)
	if !ok || p.Pattern == "" {
		return nil, fmt.Errorf("%w: %s needs a pattern", ErrMissingValue, op)
	}
	return newMatcher(op, p)
}

func compareColumn(op criteria.OperatorID) Factory {
	return func(b Binding) (predicate.Predicate, error) {
		lit, err := literalOf(op, b.Params)
		if err != nil {
			return nil, err
		}
		cmp, err := newCellComparer(b.Type, lit)
		if err != nil {
			return nil, err
		}
		col := b.Column
		return predicate.Func(func(_ uint64, row predicate.RowView) bool {
			return cmp(row.Column(col), row.Index()).satisfies(op)
		}), nil
	}
}

func matchColumn(op criteria.OperatorID) Factory {
	return func(b Binding) (predicate.Predicate, error) {
		match, err := patternOf(op, b.Params)
		if err != nil {
			return nil, err
		}
		col := b.Column
		return predicate.Func(func(_ uint64, row predicate.RowView) bool {
			return match(renderCell(row.Column(col), row.Index()))
		}), nil
	}
}

func truth(want bool) Factory {
	return func(b Binding) (predicate.Predicate, error) {
		col := b.Column
		return predicate.Func(func(_ uint64, row predicate.RowView) bool {
			arr, ok := row.Column(col).(*array.Boolean)
			return ok && arr.Value(row.Index()) == want
		}), nil
	}
}

// constant is used by the missing-cell operators, whose answer for a
// present cell never depends on its value.
func constant(p predicate.Predicate) Factory {
	return func(Binding) (predicate.Predicate, error) { return p, nil }
}

func compareRowID(op criteria.OperatorID) Factory {
	return func(b Binding) (predicate.Predicate, error) {
		lit, err := literalOf(op, b.Params)
		if err != nil {
			return nil, err
		}
		want := criteria.RenderLiteral(lit)
		eq := op == criteria.OpEQ
		return predicate.Func(func(_ uint64, row predicate.RowView) bool {
			return (row.RowKey() == want) == eq
		}), nil
	}
}

func matchRowID(op criteria.OperatorID) Factory {
	return func(b Binding) (predicate.Predicate, error) {
		match, err := patternOf(op, b.Params)
		if err != nil {
			return nil, err
		}
		return predicate.Func(func(_ uint64, row predicate.RowView) bool {
			return match(row.RowKey())
		}), nil
	}
}

// Row numbers are matched on their 1-based decimal rendering.
func matchRowNumber(op criteria.OperatorID) Factory {
	return func(b Binding) (predicate.Predicate, error) {
		match, err := patternOf(op, b.Params)
		if err != nil {
			return nil, err
		}
		return predicate.Func(func(rowIndex uint64, _ predicate.RowView) bool {
			return match(strconv.FormatUint(rowIndex+1, 10))
		}), nil
	}
}

func rowNumberRange(op criteria.OperatorID) Factory {
	return func(b Binding) (predicate.Predicate, error) {
		r, err := OffsetRangeOf(op, b.Params, b.Size)
		if err != nil {
			return nil, err
		}
		return r.Predicate(), nil
	}
}

// OffsetRangeOf translates a sliceable row number criterion into its
// offset range.
func OffsetRangeOf(op criteria.OperatorID, params criteria.Parameters, size partition.TableSize) (partition.OffsetRange, error) {
	var value int64
	if p, ok := params.(criteria.CountParams); ok {
		value = p.Count
	} else {
		lit, err := literalOf(op, params)
		if err != nil {
			return partition.OffsetRange{}, err
		}
		n, ok := criteria.IntegralLiteral(lit)
		if !ok {
			return partition.OffsetRange{}, fmt.Errorf("%w: row number %s literal %q, use one of: %s",
				ErrIncompatibleLiteral, criteria.LiteralTypeName(lit), criteria.RenderLiteral(lit),
				"int8, int16, int32, int64, uint8, uint16, uint32, uint64")
		}
		value = n
	}
	return partition.ToOffsetRange(op, value, size)
}
