// Package registry holds the catalogs of filter operators: which operators
// apply to a column of a given type or to a pseudo-column, and how each one
// builds a predicate.
package registry

import (
	"errors"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/sandboxws/rowfilter/pkg/criteria"
	"github.com/sandboxws/rowfilter/pkg/partition"
	"github.com/sandboxws/rowfilter/pkg/predicate"
)

var (
	// ErrMissingValue is returned when a value or pattern operator has no
	// literal or pattern to work with.
	ErrMissingValue = errors.New("missing required value")
	// ErrIncompatibleLiteral is returned when a literal cannot be compared
	// with the target's type.
	ErrIncompatibleLiteral = errors.New("incompatible literal")
	// ErrInvalidPattern is returned for patterns that do not compile.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// Binding is everything a factory needs to build a predicate for one
// criterion.
type Binding struct {
	Target criteria.Target
	// Column is the schema index of a column target, -1 for pseudo-columns.
	Column int
	Type   arrow.DataType
	Params criteria.Parameters
	Size   partition.TableSize
}

// Factory builds the predicate of an operator.
//
// For column targets the predicate is only ever called with non-missing
// cells: the compiler answers missing cells from ReturnTrueForMissing.
type Factory func(b Binding) (predicate.Predicate, error)

// Descriptor describes one operator of a catalog.
type Descriptor struct {
	ID    criteria.OperatorID
	Label string
	// Applies reports whether the operator is offered for a column of the
	// given type. Nil means always.
	Applies func(dt arrow.DataType) bool
	Shape   criteria.Shape
	// ValueType is the literal type the operator expects, nil when any
	// compatible literal is accepted.
	ValueType            arrow.DataType
	ReturnTrueForMissing bool
	// Sliceable operators can be expressed as an offset range.
	Sliceable bool
	Factory   Factory
}

func (d Descriptor) applies(dt arrow.DataType) bool {
	return d.Applies == nil || d.Applies(dt)
}

// Registry is a set of operator catalogs, one per target kind. It is not
// safe for concurrent registration, but is read-only once populated.
type Registry struct {
	catalogs map[criteria.TargetKind][]Descriptor
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{catalogs: make(map[criteria.TargetKind][]Descriptor)}
}

// Register adds d to the catalog of kind. A descriptor registered later
// with the same id replaces the earlier one where both apply.
func (r *Registry) Register(kind criteria.TargetKind, d Descriptor) {
	r.catalogs[kind] = append(r.catalogs[kind], d)
}

// OperatorsFor returns the operators offered for target, in display order,
// with one entry per id. dt is the column type and is ignored for
// pseudo-columns.
func (r *Registry) OperatorsFor(target criteria.Target, dt arrow.DataType) []Descriptor {
	var out []Descriptor
	pos := make(map[criteria.OperatorID]int)
	for _, d := range r.catalogs[target.Kind] {
		if !d.applies(dt) {
			continue
		}
		if i, ok := pos[d.ID]; ok {
			out[i] = d
			continue
		}
		pos[d.ID] = len(out)
		out = append(out, d)
	}
	slices.SortStableFunc(out, func(a, b Descriptor) int {
		return displayRank(a.ID) - displayRank(b.ID)
	})
	return out
}

// Lookup finds the operator id for target whose parameter shape is shape.
func (r *Registry) Lookup(target criteria.Target, dt arrow.DataType, id criteria.OperatorID, shape criteria.Shape) (Descriptor, bool) {
	for _, d := range r.OperatorsFor(target, dt) {
		if d.ID == id && d.Shape == shape {
			return d, true
		}
	}
	return Descriptor{}, false
}

// displayRank orders operators the way criteria.Operators lists them.
// Operators from outside the catalog sort last.
func displayRank(id criteria.OperatorID) int {
	if i := slices.Index(criteria.Operators, id); i >= 0 {
		return i
	}
	return len(criteria.Operators)
}
