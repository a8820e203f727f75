package registry

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/scalar"

	"github.com/sandboxws/rowfilter/pkg/criteria"
)

// ordering is the outcome of comparing a cell with a literal. NaN compares
// as unordered: it is unequal to everything and neither less nor greater.
type ordering int

const (
	less ordering = iota - 1
	equal
	greater
	unordered
)

func order[T cmp.Ordered](a, b T) ordering {
	switch {
	case a < b:
		return less
	case a > b:
		return greater
	case a == b:
		return equal
	}
	return unordered
}

func (o ordering) satisfies(op criteria.OperatorID) bool {
	switch op {
	case criteria.OpEQ:
		return o == equal
	case criteria.OpNEQ, criteria.OpNEQMiss:
		return o != equal
	case criteria.OpLT:
		return o == less
	case criteria.OpLTE:
		return o == less || o == equal
	case criteria.OpGT:
		return o == greater
	case criteria.OpGTE:
		return o == greater || o == equal
	}
	return false
}

// cellComparer compares the non-missing cell at i with a literal bound at
// compile time.
type cellComparer func(arr arrow.Array, i int) ordering

type numKind int

const (
	numInt numKind = iota
	numUint
	numFloat
)

// numLiteral is a numeric literal in the narrowest form that can represent
// it exactly. numUint only holds values above math.MaxInt64.
type numLiteral struct {
	kind numKind
	i    int64
	u    uint64
	f    float64
}

func (l numLiteral) float() float64 {
	switch l.kind {
	case numInt:
		return float64(l.i)
	case numUint:
		return float64(l.u)
	}
	return l.f
}

// numericLiteral classifies s for comparison with a numeric column. Against
// an integral column a floating literal with no fractional part compares as
// an integer.
func numericLiteral(s scalar.Scalar, integralColumn bool) (numLiteral, bool) {
	if u, ok := s.(*scalar.Uint64); ok && int64(u.Value) < 0 {
		return numLiteral{kind: numUint, u: u.Value}, true
	}
	switch v := s.(type) {
	case *scalar.Int8, *scalar.Int16, *scalar.Int32, *scalar.Int64,
		*scalar.Uint8, *scalar.Uint16, *scalar.Uint32, *scalar.Uint64:
		n, _ := criteria.IntegralLiteral(s)
		return numLiteral{kind: numInt, i: n}, true
	case *scalar.Float32, *scalar.Float64:
		if integralColumn {
			if n, ok := criteria.IntegralLiteral(s); ok {
				return numLiteral{kind: numInt, i: n}, true
			}
		}
		if f, ok := v.(*scalar.Float32); ok {
			return numLiteral{kind: numFloat, f: float64(f.Value)}, true
		}
		return numLiteral{kind: numFloat, f: v.(*scalar.Float64).Value}, true
	}
	return numLiteral{}, false
}

func compareSigned(v int64, l numLiteral) ordering {
	switch l.kind {
	case numInt:
		return order(v, l.i)
	case numUint:
		return less
	}
	return order(float64(v), l.f)
}

func compareUnsigned(v uint64, l numLiteral) ordering {
	switch l.kind {
	case numInt:
		if l.i < 0 {
			return greater
		}
		return order(v, uint64(l.i))
	case numUint:
		return order(v, l.u)
	}
	return order(float64(v), l.f)
}

func signedAt(arr arrow.Array, i int) int64 {
	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	}
	return 0
}

func unsignedAt(arr arrow.Array, i int) uint64 {
	switch a := arr.(type) {
	case *array.Uint8:
		return uint64(a.Value(i))
	case *array.Uint16:
		return uint64(a.Value(i))
	case *array.Uint32:
		return uint64(a.Value(i))
	case *array.Uint64:
		return a.Value(i)
	}
	return 0
}

func floatAt(arr arrow.Array, i int) float64 {
	switch a := arr.(type) {
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	}
	return 0
}

func stringAt(arr arrow.Array, i int) string {
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	}
	return ""
}

func temporalAt(arr arrow.Array, i int) int64 {
	switch a := arr.(type) {
	case *array.Date32:
		return int64(a.Value(i))
	case *array.Timestamp:
		return int64(a.Value(i))
	}
	return 0
}

// renderCell returns the string rendering used by pattern operators.
func renderCell(arr arrow.Array, i int) string {
	switch {
	case isString(arr.DataType()):
		return stringAt(arr, i)
	case isSigned(arr.DataType()):
		return strconv.FormatInt(signedAt(arr, i), 10)
	case isUnsigned(arr.DataType()):
		return strconv.FormatUint(unsignedAt(arr, i), 10)
	}
	return arr.ValueStr(i)
}

func incompatible(dt arrow.DataType, lit scalar.Scalar) error {
	return fmt.Errorf("%w: %s literal %q cannot be compared with a %s column, use one of: %s",
		ErrIncompatibleLiteral, criteria.LiteralTypeName(lit), criteria.RenderLiteral(lit), dt,
		strings.Join(CompatibleLiterals(dt), ", "))
}

// newCellComparer binds lit to a comparer for cells of type dt. Every type
// decision is taken here so that comparing a cell can never fail.
func newCellComparer(dt arrow.DataType, lit scalar.Scalar) (cellComparer, error) {
	switch {
	case isSigned(dt):
		l, ok := numericLiteral(lit, true)
		if !ok {
			return nil, incompatible(dt, lit)
		}
		return func(arr arrow.Array, i int) ordering { return compareSigned(signedAt(arr, i), l) }, nil

	case isUnsigned(dt):
		l, ok := numericLiteral(lit, true)
		if !ok {
			return nil, incompatible(dt, lit)
		}
		return func(arr arrow.Array, i int) ordering { return compareUnsigned(unsignedAt(arr, i), l) }, nil

	case isFloating(dt):
		l, ok := numericLiteral(lit, false)
		if !ok {
			return nil, incompatible(dt, lit)
		}
		f := l.float()
		return func(arr arrow.Array, i int) ordering { return order(floatAt(arr, i), f) }, nil

	case isString(dt):
		var s string
		switch v := lit.(type) {
		case *scalar.String, *scalar.LargeString:
			s = criteria.RenderLiteral(v)
		default:
			return nil, incompatible(dt, lit)
		}
		return func(arr arrow.Array, i int) ordering { return order(stringAt(arr, i), s) }, nil

	case isTemporal(dt):
		v, err := temporalLiteral(dt, lit)
		if err != nil {
			return nil, err
		}
		return func(arr arrow.Array, i int) ordering { return order(temporalAt(arr, i), v) }, nil
	}
	return nil, incompatible(dt, lit)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// temporalLiteral converts lit to the storage value of a DATE32 or
// TIMESTAMP column. Strings are parsed once here. Integral literals are
// taken as raw storage values.
func temporalLiteral(dt arrow.DataType, lit scalar.Scalar) (int64, error) {
	switch lit.(type) {
	case *scalar.Int8, *scalar.Int16, *scalar.Int32, *scalar.Int64,
		*scalar.Uint8, *scalar.Uint16, *scalar.Uint32, *scalar.Uint64:
		if n, ok := criteria.IntegralLiteral(lit); ok {
			return n, nil
		}
		return 0, incompatible(dt, lit)
	}

	if dt.ID() == arrow.DATE32 {
		switch v := lit.(type) {
		case *scalar.Date32:
			return int64(v.Value), nil
		case *scalar.String, *scalar.LargeString:
			text := criteria.RenderLiteral(v)
			t, err := time.Parse("2006-01-02", text)
			if err != nil {
				return 0, fmt.Errorf("%w: date literal %q: %v", ErrIncompatibleLiteral, text, err)
			}
			return int64(arrow.Date32FromTime(t)), nil
		}
		return 0, incompatible(dt, lit)
	}

	unit := dt.(*arrow.TimestampType).Unit
	var t time.Time
	switch v := lit.(type) {
	case *scalar.Timestamp:
		t = v.Value.ToTime(v.Type.(*arrow.TimestampType).Unit)
	case *scalar.String, *scalar.LargeString:
		text := criteria.RenderLiteral(v)
		var err error
		for _, layout := range timestampLayouts {
			if t, err = time.Parse(layout, text); err == nil {
				break
			}
		}
		if err != nil {
			return 0, fmt.Errorf("%w: timestamp literal %q: %v", ErrIncompatibleLiteral, text, err)
		}
	default:
		return 0, incompatible(dt, lit)
	}
	ts, err := arrow.TimestampFromTime(t, unit)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp literal %s: %v", ErrIncompatibleLiteral, t, err)
	}
	return int64(ts), nil
}
