package partition

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Unbounded marks an interval that extends to the end of the table.
const Unbounded = math.MaxUint64

// Interval is the half-open offset range [Start, End).
type Interval struct {
	Start, End uint64
}

func (iv Interval) String() string {
	if iv.End == Unbounded {
		return fmt.Sprintf("[%d, ∞)", iv.Start)
	}
	return fmt.Sprintf("[%d, %d)", iv.Start, iv.End)
}

// Set is a union of sorted, disjoint, non-adjacent intervals. The zero Set
// is empty.
type Set struct {
	ivs []Interval
}

// Empty returns the set matching no rows.
func Empty() Set { return Set{} }

// Full returns the set matching every row.
func Full() Set { return Set{ivs: []Interval{{0, Unbounded}}} }

// NewSet normalizes ivs into a Set.
func NewSet(ivs ...Interval) Set {
	out := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.Start < iv.End {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	merged := out[:0]
	for _, iv := range out {
		if n := len(merged); n > 0 && iv.Start <= merged[n-1].End {
			if iv.End > merged[n-1].End {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return Set{ivs: merged}
}

// FromRange returns the offsets matched by r.
func FromRange(r OffsetRange) Set {
	v := r.Offset
	switch r.Op {
	case EQ:
		return NewSet(Interval{v, v + 1})
	case NEQ:
		return NewSet(Interval{0, v}, Interval{v + 1, Unbounded})
	case LT:
		return NewSet(Interval{0, v})
	case LTE:
		return NewSet(Interval{0, v + 1})
	case GT:
		return NewSet(Interval{v + 1, Unbounded})
	case GTE:
		return NewSet(Interval{v, Unbounded})
	default:
		return Empty()
	}
}

// IsEmpty reports whether s matches no rows.
func (s Set) IsEmpty() bool { return len(s.ivs) == 0 }

// IsFull reports whether s matches every row.
func (s Set) IsFull() bool {
	return len(s.ivs) == 1 && s.ivs[0].Start == 0 && s.ivs[0].End == Unbounded
}

// Intervals returns a copy of the intervals of s.
func (s Set) Intervals() []Interval {
	return append([]Interval(nil), s.ivs...)
}

// Contains reports whether offset is in s.
func (s Set) Contains(offset uint64) bool {
	i := sort.Search(len(s.ivs), func(i int) bool { return s.ivs[i].End > offset })
	return i < len(s.ivs) && s.ivs[i].Start <= offset
}

// And returns the intersection of a and b.
func And(a, b Set) Set {
	switch {
	case a.IsEmpty() || b.IsEmpty():
		return Empty()
	case a.IsFull():
		return b
	case b.IsFull():
		return a
	}

	var out []Interval
	i, j := 0, 0
	for i < len(a.ivs) && j < len(b.ivs) {
		x, y := a.ivs[i], b.ivs[j]
		start := max(x.Start, y.Start)
		end := min(x.End, y.End)
		if start < end {
			out = append(out, Interval{start, end})
		}
		if x.End < y.End {
			i++
		} else {
			j++
		}
	}
	return Set{ivs: out}
}

// Or returns the union of a and b.
func Or(a, b Set) Set {
	switch {
	case a.IsFull() || b.IsFull():
		return Full()
	case a.IsEmpty():
		return b
	case b.IsEmpty():
		return a
	}
	ivs := make([]Interval, 0, len(a.ivs)+len(b.ivs))
	ivs = append(ivs, a.ivs...)
	ivs = append(ivs, b.ivs...)
	return NewSet(ivs...)
}

// Combine folds sets left to right with And or Or.
func Combine(isAnd bool, sets ...Set) Set {
	if len(sets) == 0 {
		if isAnd {
			return Full()
		}
		return Empty()
	}
	acc := sets[0]
	for _, s := range sets[1:] {
		if isAnd {
			acc = And(acc, s)
		} else {
			acc = Or(acc, s)
		}
	}
	return acc
}

// Complement returns every offset not in s.
func Complement(s Set) Set {
	var out []Interval
	var next uint64
	for _, iv := range s.ivs {
		if iv.Start > next {
			out = append(out, Interval{next, iv.Start})
		}
		next = iv.End
	}
	if next != Unbounded {
		out = append(out, Interval{next, Unbounded})
	}
	return Set{ivs: out}
}

// Clip restricts s to the first n offsets.
func (s Set) Clip(n uint64) Set {
	return And(s, NewSet(Interval{0, n}))
}

// Count returns the number of offsets of s below n.
func (s Set) Count(n uint64) uint64 {
	var total uint64
	for _, iv := range s.Clip(n).ivs {
		total += iv.End - iv.Start
	}
	return total
}

func (s Set) String() string {
	if s.IsEmpty() {
		return "∅"
	}
	parts := make([]string, len(s.ivs))
	for i, iv := range s.ivs {
		parts[i] = iv.String()
	}
	return strings.Join(parts, " ∪ ")
}

// Split is the pair of matched and unmatched offsets produced by a set of
// row-position criteria.
type Split struct {
	Matched   Set
	Unmatched Set
}

// NewSplit returns the split of matched and its complement.
func NewSplit(matched Set) Split {
	return Split{Matched: matched, Unmatched: Complement(matched)}
}

// Swap exchanges matched and unmatched, for consumers that want the
// non-matching rows as their primary output.
func (s Split) Swap() Split {
	return Split{Matched: s.Unmatched, Unmatched: s.Matched}
}
