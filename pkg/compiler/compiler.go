// Package compiler binds filter criteria to a schema and turns them into
// row predicates, or into offset ranges when only row positions are
// filtered.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/sandboxws/rowfilter/pkg/criteria"
	"github.com/sandboxws/rowfilter/pkg/partition"
	"github.com/sandboxws/rowfilter/pkg/predicate"
	"github.com/sandboxws/rowfilter/pkg/registry"
)

// TableSize is the number of rows, when known.
type TableSize = partition.TableSize

// UnknownSize is used for streamed tables.
var UnknownSize = partition.UnknownSize

// KnownSize returns the size of a table with n rows.
func KnownSize(n uint64) TableSize { return partition.KnownSize(n) }

// Compiler compiles criteria against an operator registry.
type Compiler struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for compile diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// New returns a compiler over reg, or over the default registry when reg
// is nil.
func New(reg *registry.Registry, opts ...Option) *Compiler {
	if reg == nil {
		reg = registry.Default()
	}
	c := &Compiler{registry: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry the compiler looks operators up in.
func (c *Compiler) Registry() *registry.Registry { return c.registry }

type resolved struct {
	binding    registry.Binding
	descriptor registry.Descriptor
}

// resolve binds cr to schema and finds its operator.
func (c *Compiler) resolve(cr criteria.Criterion, schema *arrow.Schema, size TableSize) (resolved, error) {
	params := cr.Params
	if params == nil {
		params = criteria.NewParameters(cr.Operator, criteria.Stash{})
	}
	b := registry.Binding{Target: cr.Target, Column: -1, Params: params, Size: size}

	switch cr.Target.Kind {
	case criteria.TargetRowID:
		b.Type = arrow.BinaryTypes.String
	case criteria.TargetRowNumber:
		b.Type = arrow.PrimitiveTypes.Int64
	default:
		var idx []int
		if schema != nil {
			idx = schema.FieldIndices(cr.Target.Column)
		}
		if len(idx) == 0 {
			return resolved{}, fmt.Errorf("%w %q", ErrUnknownColumn, cr.Target.Column)
		}
		b.Column = idx[0]
		b.Type = schema.Field(idx[0]).Type
	}

	d, ok := c.registry.Lookup(cr.Target, b.Type, cr.Operator, params.Shape())
	if !ok {
		return resolved{}, fmt.Errorf("%w: %s with %s parameters on %s (%s); available: %s",
			ErrUnsupportedOperator, cr.Operator, params.Shape(), cr.Target, b.Type,
			c.available(cr.Target, b.Type))
	}
	if err := checkValueType(cr.Target, d, params); err != nil {
		return resolved{}, err
	}
	return resolved{binding: b, descriptor: d}, nil
}

// checkValueType rejects a literal of the wrong type for operators that
// declare the type they take.
func checkValueType(target criteria.Target, d registry.Descriptor, params criteria.Parameters) error {
	vp, ok := params.(criteria.ValueParams)
	if d.ValueType == nil || !ok || !criteria.HasLiteral(vp.Value) {
		return nil
	}
	if registry.AcceptsLiteral(d.ValueType, vp.Value) {
		return nil
	}
	return fmt.Errorf("%w: %s literal %q on %s, use one of: %s",
		registry.ErrIncompatibleLiteral, criteria.LiteralTypeName(vp.Value), criteria.RenderLiteral(vp.Value),
		target, strings.Join(registry.CompatibleLiterals(d.ValueType), ", "))
}

func (c *Compiler) available(target criteria.Target, dt arrow.DataType) string {
	ds := c.registry.OperatorsFor(target, dt)
	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = string(d.ID)
	}
	return strings.Join(ids, ", ")
}

// Compile turns one criterion into a predicate. Failures are *Error.
func (c *Compiler) Compile(cr criteria.Criterion, schema *arrow.Schema, size TableSize) (predicate.Predicate, error) {
	p, err := c.compile(cr, schema, size)
	if err != nil {
		return nil, newError(cr, err)
	}
	return p, nil
}

func (c *Compiler) compile(cr criteria.Criterion, schema *arrow.Schema, size TableSize) (predicate.Predicate, error) {
	r, err := c.resolve(cr, schema, size)
	if err != nil {
		return nil, err
	}
	p, err := r.descriptor.Factory(r.binding)
	if err != nil {
		return nil, err
	}
	if cr.Target.IsPseudo() {
		return p, nil
	}
	return guardMissing(p, r.binding.Column, r.descriptor.ReturnTrueForMissing), nil
}

// guardMissing answers missing cells of col with onMissing so that p only
// ever sees present values.
func guardMissing(p predicate.Predicate, col int, onMissing bool) predicate.Predicate {
	return predicate.Func(func(rowIndex uint64, row predicate.RowView) bool {
		if predicate.IsMissing(row, col) {
			return onMissing
		}
		return p.Test(rowIndex, row)
	})
}

// CompileAll compiles a criteria list into a single result. When every
// criterion targets the row number with a sliceable operator the result
// also carries the offset split. The first failing criterion aborts
// compilation.
func (c *Compiler) CompileAll(list criteria.List, schema *arrow.Schema, size TableSize) (*Result, error) {
	if len(list.Criteria) == 0 {
		return &Result{pred: predicate.AlwaysTrue}, nil
	}

	res, sliceable, err := c.compileRanges(list, schema, size)
	if err != nil {
		return nil, err
	}
	if sliceable {
		c.logger.Debug("compiled criteria to offset ranges",
			"criteria", len(list.Criteria),
			"is_and", list.IsAnd,
			"matched", res.split.Matched.String())
		return res, nil
	}

	var columns, rows []predicate.Predicate
	for i, cr := range list.Criteria {
		p, err := c.compile(cr, schema, size)
		if err != nil {
			e := newError(cr, err)
			e.Index = i
			return nil, e
		}
		if cr.Target.Kind == criteria.TargetRowNumber {
			rows = append(rows, p)
		} else {
			columns = append(columns, p)
		}
	}

	var groups []predicate.Predicate
	for _, g := range [][]predicate.Predicate{columns, rows} {
		if len(g) == 0 {
			continue
		}
		groups = append(groups, predicate.MustCompose(list.IsAnd, g...))
	}
	c.logger.Debug("compiled criteria",
		"criteria", len(list.Criteria),
		"is_and", list.IsAnd,
		"column_criteria", len(columns),
		"row_number_criteria", len(rows))
	return &Result{pred: predicate.MustCompose(list.IsAnd, groups...)}, nil
}

var errNotSliceable = errors.New("not sliceable")

// compileRanges returns the offset split of list when every criterion is a
// sliceable row number criterion. sliceable is false as soon as one is not.
func (c *Compiler) compileRanges(list criteria.List, schema *arrow.Schema, size TableSize) (*Result, bool, error) {
	sets := make([]partition.Set, 0, len(list.Criteria))
	for i, cr := range list.Criteria {
		set, err := c.offsetSet(cr, schema, size)
		if errors.Is(err, errNotSliceable) {
			return nil, false, nil
		}
		if err != nil {
			e := newError(cr, err)
			e.Index = i
			return nil, false, e
		}
		sets = append(sets, set)
	}
	matched := partition.Combine(list.IsAnd, sets...)
	return &Result{
		pred:   matched.Predicate(),
		split:  partition.NewSplit(matched),
		sliced: true,
	}, true, nil
}

func (c *Compiler) offsetSet(cr criteria.Criterion, schema *arrow.Schema, size TableSize) (partition.Set, error) {
	if cr.Target.Kind != criteria.TargetRowNumber {
		return partition.Set{}, errNotSliceable
	}
	r, err := c.resolve(cr, schema, size)
	if err != nil {
		return partition.Set{}, err
	}
	if !r.descriptor.Sliceable {
		return partition.Set{}, errNotSliceable
	}
	rng, err := registry.OffsetRangeOf(cr.Operator, r.binding.Params, size)
	if err != nil {
		return partition.Set{}, err
	}
	return partition.FromRange(rng), nil
}
