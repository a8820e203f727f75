package compiler

import (
	"github.com/sandboxws/rowfilter/pkg/partition"
	"github.com/sandboxws/rowfilter/pkg/predicate"
)

// Result is a compiled criteria list. It is always usable as a predicate;
// when the list only filters on row numbers it also exposes the offset
// split so that consumers can slice instead of testing each row.
type Result struct {
	pred   predicate.Predicate
	split  partition.Split
	sliced bool
}

func (r *Result) Test(rowIndex uint64, row predicate.RowView) bool {
	return r.pred.Test(rowIndex, row)
}

// Predicate returns the combined predicate.
func (r *Result) Predicate() predicate.Predicate { return r.pred }

// Split returns the matched and unmatched offsets, and false when the
// result has to be evaluated row by row.
func (r *Result) Split() (partition.Split, bool) { return r.split, r.sliced }
