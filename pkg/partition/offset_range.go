// Package partition turns row-position criteria into 0-based offset ranges
// so that consumers can skip rows instead of testing each one.
package partition

import (
	"errors"
	"fmt"

	"github.com/sandboxws/rowfilter/pkg/criteria"
)

var (
	// ErrUnknownTableSize is returned when LAST_N_ROWS is requested before
	// the number of rows is known.
	ErrUnknownTableSize = errors.New("table size is not known")
	// ErrInvalidCount is returned for negative counts and non-positive row numbers.
	ErrInvalidCount = errors.New("invalid row count")
	// ErrNotSliceable is returned for operators that cannot be expressed as a range.
	ErrNotSliceable = errors.New("operator cannot be expressed as an offset range")
)

// TableSize is the row count of a table, when known.
type TableSize struct {
	rows  uint64
	known bool
}

// UnknownSize is the size of a streamed table whose end has not been reached.
var UnknownSize = TableSize{}

// KnownSize returns the size of a table with n rows.
func KnownSize(n uint64) TableSize { return TableSize{rows: n, known: true} }

// Rows returns the row count and whether it is known.
func (s TableSize) Rows() (uint64, bool) { return s.rows, s.known }

func (s TableSize) String() string {
	if !s.known {
		return "unknown"
	}
	return fmt.Sprintf("%d", s.rows)
}

// Op is the comparison an OffsetRange applies to a row offset.
type Op int

const (
	EQ Op = iota
	NEQ
	LT
	LTE
	GT
	GTE
)

func (o Op) String() string {
	switch o {
	case EQ:
		return "EQ"
	case NEQ:
		return "NEQ"
	case LT:
		return "LT"
	case LTE:
		return "LTE"
	case GT:
		return "GT"
	case GTE:
		return "GTE"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// OffsetRange is a row-position criterion over 0-based row offsets.
type OffsetRange struct {
	Op     Op
	Offset uint64
}

func (r OffsetRange) String() string { return fmt.Sprintf("(%s, %d)", r.Op, r.Offset) }

// Contains reports whether the row at offset is inside the range.
func (r OffsetRange) Contains(offset uint64) bool {
	switch r.Op {
	case EQ:
		return offset == r.Offset
	case NEQ:
		return offset != r.Offset
	case LT:
		return offset < r.Offset
	case LTE:
		return offset <= r.Offset
	case GT:
		return offset > r.Offset
	case GTE:
		return offset >= r.Offset
	default:
		return false
	}
}

// Sliceable reports whether op can be turned into an OffsetRange.
func Sliceable(op criteria.OperatorID) bool {
	switch op {
	case criteria.OpEQ, criteria.OpNEQ, criteria.OpNEQMiss,
		criteria.OpLT, criteria.OpLTE, criteria.OpGT, criteria.OpGTE,
		criteria.OpFirstNRows, criteria.OpLastNRows:
		return true
	default:
		return false
	}
}

// ToOffsetRange translates a row-position criterion into an offset range.
// value is the user-facing value: a 1-based row number for comparisons and
// a row count for FIRST_N_ROWS and LAST_N_ROWS.
func ToOffsetRange(op criteria.OperatorID, value int64, size TableSize) (OffsetRange, error) {
	switch op {
	case criteria.OpFirstNRows:
		if value < 0 {
			return OffsetRange{}, fmt.Errorf("%w: %s requires a non-negative count, got %d", ErrInvalidCount, op, value)
		}
		return OffsetRange{Op: LT, Offset: uint64(value)}, nil

	case criteria.OpLastNRows:
		if value < 0 {
			return OffsetRange{}, fmt.Errorf("%w: %s requires a non-negative count, got %d", ErrInvalidCount, op, value)
		}
		rows, ok := size.Rows()
		if !ok {
			return OffsetRange{}, fmt.Errorf("%w: %s needs the number of rows", ErrUnknownTableSize, op)
		}
		var offset uint64
		if uint64(value) < rows {
			offset = rows - uint64(value)
		}
		return OffsetRange{Op: GTE, Offset: offset}, nil
	}

	if !Sliceable(op) {
		return OffsetRange{}, fmt.Errorf("%w: %s", ErrNotSliceable, op)
	}
	if value < 1 {
		return OffsetRange{}, fmt.Errorf("%w: row numbers start at 1, got %d", ErrInvalidCount, value)
	}
	v := uint64(value - 1)

	switch op {
	case criteria.OpEQ:
		return OffsetRange{Op: EQ, Offset: v}, nil
	case criteria.OpNEQ, criteria.OpNEQMiss:
		return OffsetRange{Op: NEQ, Offset: v}, nil
	case criteria.OpLT:
		return OffsetRange{Op: LT, Offset: v}, nil
	case criteria.OpLTE:
		return OffsetRange{Op: LTE, Offset: v}, nil
	case criteria.OpGT:
		return OffsetRange{Op: GT, Offset: v}, nil
	default:
		return OffsetRange{Op: GTE, Offset: v}, nil
	}
}
