// Package predicate defines compiled row predicates and their composition.
//
// A Predicate is a pure function of a 0-based row index and a view of that
// row. Predicates keep no state between calls, so one compiled predicate can
// be shared by concurrent workers as long as each passes its own RowView.
package predicate

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
)

// RowView exposes a single row of a table.
type RowView interface {
	// RowKey returns the row identifier.
	RowKey() string
	// Column returns the array holding column col. The row's value is at Index().
	Column(col int) arrow.Array
	// Index returns the position of the row within the arrays returned by Column.
	Index() int
}

// IsMissing reports whether the cell of row in column col is missing.
func IsMissing(row RowView, col int) bool {
	return row.Column(col).IsNull(row.Index())
}

// Predicate decides whether a row is kept.
type Predicate interface {
	Test(rowIndex uint64, row RowView) bool
}

// Func adapts a plain function to Predicate.
type Func func(rowIndex uint64, row RowView) bool

func (f Func) Test(rowIndex uint64, row RowView) bool { return f(rowIndex, row) }

type constant bool

func (c constant) Test(uint64, RowView) bool { return bool(c) }

func (c constant) String() string { return "always " + strconv.FormatBool(bool(c)) }

// The short-circuit sentinels. Compose recognizes them and never evaluates
// the other operand against them.
var (
	AlwaysTrue  Predicate = constant(true)
	AlwaysFalse Predicate = constant(false)
)

// IsConstant reports whether p is one of the sentinels, and which one.
func IsConstant(p Predicate) (value, ok bool) {
	c, ok := p.(constant)
	return bool(c), ok
}

// ErrNoPredicates is returned when Compose is called without predicates.
var ErrNoPredicates = errors.New("compose requires at least one predicate")

// Compose folds preds left to right into one predicate joined by AND when
// isAnd is set and by OR otherwise.
func Compose(isAnd bool, preds ...Predicate) (Predicate, error) {
	if len(preds) == 0 {
		return nil, ErrNoPredicates
	}
	acc := preds[0]
	if acc == nil {
		return nil, fmt.Errorf("predicate[0] is nil")
	}
	for i, p := range preds[1:] {
		if p == nil {
			return nil, fmt.Errorf("predicate[%d] is nil", i+1)
		}
		if isAnd {
			acc = and(acc, p)
		} else {
			acc = or(acc, p)
		}
	}
	return acc, nil
}

// MustCompose is like Compose but panics on error. For use with predicate
// lists known to be non-empty.
func MustCompose(isAnd bool, preds ...Predicate) Predicate {
	p, err := Compose(isAnd, preds...)
	if err != nil {
		panic(err)
	}
	return p
}

func and(a, b Predicate) Predicate {
	if v, ok := IsConstant(a); ok {
		if !v {
			return AlwaysFalse
		}
		return b
	}
	if v, ok := IsConstant(b); ok {
		if !v {
			return AlwaysFalse
		}
		return a
	}
	return Func(func(rowIndex uint64, row RowView) bool {
		return a.Test(rowIndex, row) && b.Test(rowIndex, row)
	})
}

func or(a, b Predicate) Predicate {
	if v, ok := IsConstant(a); ok {
		if v {
			return AlwaysTrue
		}
		return b
	}
	if v, ok := IsConstant(b); ok {
		if v {
			return AlwaysTrue
		}
		return a
	}
	return Func(func(rowIndex uint64, row RowView) bool {
		return a.Test(rowIndex, row) || b.Test(rowIndex, row)
	})
}
