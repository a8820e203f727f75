package partition

import "github.com/sandboxws/rowfilter/pkg/predicate"

// Predicate returns a row predicate accepting the rows inside r.
func (r OffsetRange) Predicate() predicate.Predicate {
	return predicate.Func(func(rowIndex uint64, _ predicate.RowView) bool {
		return r.Contains(rowIndex)
	})
}

// Predicate returns a row predicate accepting the rows inside s. The empty
// and full sets map to the constant predicates.
func (s Set) Predicate() predicate.Predicate {
	switch {
	case s.IsEmpty():
		return predicate.AlwaysFalse
	case s.IsFull():
		return predicate.AlwaysTrue
	}
	return predicate.Func(func(rowIndex uint64, _ predicate.RowView) bool {
		return s.Contains(rowIndex)
	})
}
