package criteria

import (
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow/scalar"
)

// Parameters holds the operator-specific values of a criterion.
type Parameters interface {
	Shape() Shape
	// Stash captures whatever part of the parameters can survive a switch
	// to an operator with a different shape.
	Stash() Stash
}

// NoParams is used by operators that take no parameters.
type NoParams struct{}

// ValueParams carries a single literal. A nil or invalid Value means the
// literal was never supplied.
type ValueParams struct {
	Value scalar.Scalar
}

// PatternParams carries a regex or wildcard pattern.
type PatternParams struct {
	Pattern       string
	CaseSensitive bool
}

// CountParams carries a row count.
type CountParams struct {
	Count int64
}

func (NoParams) Shape() Shape { return ShapeNone }
func (ValueParams) Shape() Shape { return ShapeValue }
func (PatternParams) Shape() Shape { return ShapePattern }
func (CountParams) Shape() Shape { return ShapeCount }

// Stash is the shape-independent carrier used when the operator of a
// criterion changes.
type Stash struct {
	Literal       scalar.Scalar
	Text          string
	HasText       bool
	Int           int64
	HasInt        bool
	CaseSensitive bool
	HasCase       bool
}

func (NoParams) Stash() Stash { return Stash{} }

func (p ValueParams) Stash() Stash {
	if !HasLiteral(p.Value) {
		return Stash{}
	}
	s := Stash{Literal: p.Value, Text: RenderLiteral(p.Value), HasText: true}
	if n, ok := IntegralLiteral(p.Value); ok {
		s.Int, s.HasInt = n, true
	}
	return s
}

func (p PatternParams) Stash() Stash {
	return Stash{Text: p.Pattern, HasText: true, CaseSensitive: p.CaseSensitive, HasCase: true}
}

func (p CountParams) Stash() Stash {
	return Stash{Int: p.Count, HasInt: true, Text: strconv.FormatInt(p.Count, 10), HasText: true}
}

// NewParameters builds the parameters for op, restoring what it can from
// stash. Pass the zero Stash for defaults.
func NewParameters(op OperatorID, stash Stash) Parameters {
	switch ShapeOf(op) {
	case ShapeValue:
		switch {
		case stash.Literal != nil:
			return ValueParams{Value: stash.Literal}
		case stash.HasInt:
			return ValueParams{Value: scalar.NewInt64Scalar(stash.Int)}
		case stash.HasText:
			return ValueParams{Value: scalar.NewStringScalar(stash.Text)}
		}
		return ValueParams{}
	case ShapePattern:
		p := PatternParams{CaseSensitive: true}
		if stash.HasText {
			p.Pattern = stash.Text
		}
		if stash.HasCase {
			p.CaseSensitive = stash.CaseSensitive
		}
		return p
	case ShapeCount:
		switch {
		case stash.HasInt:
			return CountParams{Count: stash.Int}
		case stash.HasText:
			if n, err := strconv.ParseInt(stash.Text, 10, 64); err == nil {
				return CountParams{Count: n}
			}
		}
		return CountParams{}
	default:
		return NoParams{}
	}
}

// HasLiteral reports whether s holds a non-null value.
func HasLiteral(s scalar.Scalar) bool {
	return s != nil && s.IsValid()
}

// IntegralLiteral returns the integer value of s when s is integral, or a
// floating literal without fractional part.
func IntegralLiteral(s scalar.Scalar) (int64, bool) {
	if !HasLiteral(s) {
		return 0, false
	}
	switch v := s.(type) {
	case *scalar.Int8:
		return int64(v.Value), true
	case *scalar.Int16:
		return int64(v.Value), true
	case *scalar.Int32:
		return int64(v.Value), true
	case *scalar.Int64:
		return v.Value, true
	case *scalar.Uint8:
		return int64(v.Value), true
	case *scalar.Uint16:
		return int64(v.Value), true
	case *scalar.Uint32:
		return int64(v.Value), true
	case *scalar.Uint64:
		if v.Value > math.MaxInt64 {
			return 0, false
		}
		return int64(v.Value), true
	case *scalar.Float32:
		return floatToInt(float64(v.Value))
	case *scalar.Float64:
		return floatToInt(v.Value)
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// RenderLiteral renders s the way cell values are rendered for pattern
// matching and persistence.
func RenderLiteral(s scalar.Scalar) string {
	if !HasLiteral(s) {
		return ""
	}
	switch v := s.(type) {
	case *scalar.String:
		return string(v.Data())
	case *scalar.LargeString:
		return string(v.Data())
	case *scalar.Boolean:
		return strconv.FormatBool(v.Value)
	case *scalar.Float32:
		return strconv.FormatFloat(float64(v.Value), 'g', -1, 32)
	case *scalar.Float64:
		return strconv.FormatFloat(v.Value, 'g', -1, 64)
	case *scalar.Uint64:
		return strconv.FormatUint(v.Value, 10)
	}
	if n, ok := IntegralLiteral(s); ok {
		return strconv.FormatInt(n, 10)
	}
	return s.String()
}
