package partition

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/sandboxws/rowfilter/pkg/criteria"
)

func TestToOffsetRange(t *testing.T) {
	tests := []struct {
		op    criteria.OperatorID
		value int64
		size  TableSize
		want  OffsetRange
	}{
		{criteria.OpEQ, 5, UnknownSize, OffsetRange{EQ, 4}},
		{criteria.OpNEQ, 1, UnknownSize, OffsetRange{NEQ, 0}},
		{criteria.OpNEQMiss, 2, UnknownSize, OffsetRange{NEQ, 1}},
		{criteria.OpLT, 3, UnknownSize, OffsetRange{LT, 2}},
		{criteria.OpLTE, 3, UnknownSize, OffsetRange{LTE, 2}},
		{criteria.OpGT, 3, UnknownSize, OffsetRange{GT, 2}},
		{criteria.OpGTE, 3, UnknownSize, OffsetRange{GTE, 2}},
		{criteria.OpFirstNRows, 3, UnknownSize, OffsetRange{LT, 3}},
		{criteria.OpFirstNRows, 0, UnknownSize, OffsetRange{LT, 0}},
		{criteria.OpLastNRows, 2, KnownSize(10), OffsetRange{GTE, 8}},
		{criteria.OpLastNRows, 20, KnownSize(10), OffsetRange{GTE, 0}},
		{criteria.OpLastNRows, 0, KnownSize(10), OffsetRange{GTE, 10}},
	}
	for _, tt := range tests {
		got, err := ToOffsetRange(tt.op, tt.value, tt.size)
		require.NoError(t, err, "%s %d", tt.op, tt.value)
		require.Equal(t, tt.want, got, "%s %d", tt.op, tt.value)
	}
}

func TestToOffsetRangeErrors(t *testing.T) {
	_, err := ToOffsetRange(criteria.OpLastNRows, 2, UnknownSize)
	require.ErrorIs(t, err, ErrUnknownTableSize)

	_, err = ToOffsetRange(criteria.OpFirstNRows, -1, UnknownSize)
	require.ErrorIs(t, err, ErrInvalidCount)

	_, err = ToOffsetRange(criteria.OpLastNRows, -1, KnownSize(3))
	require.ErrorIs(t, err, ErrInvalidCount)

	_, err = ToOffsetRange(criteria.OpEQ, 0, UnknownSize)
	require.ErrorIs(t, err, ErrInvalidCount)

	_, err = ToOffsetRange(criteria.OpRegex, 1, UnknownSize)
	require.ErrorIs(t, err, ErrNotSliceable)
}

func TestFromRangeMatchesContains(t *testing.T) {
	for _, op := range []Op{EQ, NEQ, LT, LTE, GT, GTE} {
		for _, offset := range []uint64{0, 1, 4} {
			r := OffsetRange{op, offset}
			set := FromRange(r)
			for i := uint64(0); i < 10; i++ {
				require.Equal(t, r.Contains(i), set.Contains(i), "%s row %d", r, i)
			}
		}
	}
}

func TestSetAlgebra(t *testing.T) {
	first5 := FromRange(OffsetRange{LT, 5})
	from3 := FromRange(OffsetRange{GTE, 3})
	not4 := FromRange(OffsetRange{NEQ, 4})

	if diff := cmp.Diff([]Interval{{3, 5}}, And(first5, from3).Intervals()); diff != "" {
		t.Errorf("And mismatch (-want +got):\n%s", diff)
	}
	require.True(t, Or(first5, from3).IsFull())
	if diff := cmp.Diff([]Interval{{3, 4}}, And(And(first5, from3), not4).Intervals()); diff != "" {
		t.Errorf("And mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Interval{{5, Unbounded}}, Complement(first5).Intervals()); diff != "" {
		t.Errorf("Complement mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Interval{{4, 5}}, Complement(not4).Intervals()); diff != "" {
		t.Errorf("Complement mismatch (-want +got):\n%s", diff)
	}

	eq1 := FromRange(OffsetRange{EQ, 1})
	eq2 := FromRange(OffsetRange{EQ, 2})
	if diff := cmp.Diff([]Interval{{1, 3}}, Or(eq1, eq2).Intervals()); diff != "" {
		t.Errorf("adjacent intervals must merge (-want +got):\n%s", diff)
	}
	require.True(t, And(eq1, eq2).IsEmpty())
}

func TestSetShortCircuit(t *testing.T) {
	s := FromRange(OffsetRange{EQ, 7})

	require.Equal(t, s, And(Full(), s))
	require.Equal(t, s, Or(Empty(), s))
	require.True(t, And(s, Empty()).IsEmpty())
	require.True(t, Or(s, Full()).IsFull())

	require.True(t, Combine(true).IsFull())
	require.True(t, Combine(false).IsEmpty())
}

func TestSetCount(t *testing.T) {
	s := NewSet(Interval{1, 3}, Interval{8, Unbounded})
	require.Equal(t, uint64(4), s.Count(10))
	require.Equal(t, uint64(2), s.Count(5))
	require.Equal(t, uint64(0), Empty().Count(10))
}

func TestSplitSwap(t *testing.T) {
	split := NewSplit(FromRange(OffsetRange{LT, 3}))
	swapped := split.Swap()

	for i := uint64(0); i < 6; i++ {
		require.Equal(t, i < 3, split.Matched.Contains(i))
		require.Equal(t, i >= 3, split.Unmatched.Contains(i))
		require.Equal(t, split.Matched.Contains(i), swapped.Unmatched.Contains(i))
		require.Equal(t, split.Unmatched.Contains(i), swapped.Matched.Contains(i))
	}
}

func TestSetPredicate(t *testing.T) {
	require.Equal(t, "always false", Empty().Predicate().(interface{ String() string }).String())

	p := FromRange(OffsetRange{GT, 1}).Predicate()
	require.False(t, p.Test(1, nil))
	require.True(t, p.Test(2, nil))
}
