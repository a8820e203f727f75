package criteria

import (
	"fmt"
	"strings"
)

// Criterion is a single filter condition.
type Criterion struct {
	Target   Target
	Operator OperatorID
	Params   Parameters
}

// New returns a criterion for op on target with default parameters.
func New(target Target, op OperatorID) Criterion {
	return Criterion{Target: target, Operator: op, Params: NewParameters(op, Stash{})}
}

// WithOperator switches the operator of c, carrying over whatever part of
// the current parameters the new operator can use.
func (c Criterion) WithOperator(op OperatorID) Criterion {
	var stash Stash
	if c.Params != nil {
		stash = c.Params.Stash()
	}
	return Criterion{Target: c.Target, Operator: op, Params: NewParameters(op, stash)}
}

// Validate checks that the parameters match the operator's shape. Parameters
// of another shape are never handed to an operator.
func (c Criterion) Validate() error {
	want := ShapeOf(c.Operator)
	if c.Params == nil {
		if want == ShapeNone {
			return nil
		}
		return fmt.Errorf("operator %s requires %s parameters, got none", c.Operator, want)
	}
	if got := c.Params.Shape(); got != want {
		return fmt.Errorf("operator %s requires %s parameters, got %s", c.Operator, want, got)
	}
	return nil
}

func (c Criterion) String() string {
	var sb strings.Builder
	sb.WriteString(c.Target.String())
	sb.WriteByte(' ')
	sb.WriteString(string(c.Operator))
	switch p := c.Params.(type) {
	case ValueParams:
		if HasLiteral(p.Value) {
			fmt.Fprintf(&sb, " %q", RenderLiteral(p.Value))
		}
	case PatternParams:
		fmt.Fprintf(&sb, " %q", p.Pattern)
		if !p.CaseSensitive {
			sb.WriteString(" (ignore case)")
		}
	case CountParams:
		fmt.Fprintf(&sb, " %d", p.Count)
	}
	return sb.String()
}

// List is an ordered set of criteria joined by a single AND or OR.
type List struct {
	IsAnd    bool
	Criteria []Criterion
}
