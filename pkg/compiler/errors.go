package compiler

import (
	"errors"
	"fmt"

	"github.com/sandboxws/rowfilter/pkg/criteria"
	"github.com/sandboxws/rowfilter/pkg/partition"
	"github.com/sandboxws/rowfilter/pkg/registry"
)

// Error kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrUnknownColumn        = errors.New("unknown column")
	ErrUnsupportedOperator  = errors.New("operator not supported for type")
	ErrMissingRequiredValue = registry.ErrMissingValue
	ErrIncompatibleLiteral  = registry.ErrIncompatibleLiteral
	ErrInvalidPattern       = registry.ErrInvalidPattern
	ErrInvalidCount         = partition.ErrInvalidCount
	ErrUnknownTableSize     = partition.ErrUnknownTableSize
	errUnclassified         = errors.New("compile failed")
)

var kinds = []error{
	ErrUnknownColumn,
	ErrUnsupportedOperator,
	ErrMissingRequiredValue,
	ErrIncompatibleLiteral,
	ErrInvalidPattern,
	ErrInvalidCount,
	ErrUnknownTableSize,
}

// Error is a failure to compile one criterion.
type Error struct {
	Kind      error
	Criterion criteria.Criterion
	// Index is the position of the criterion in its list, -1 when compiled
	// on its own.
	Index int
	Err   error
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("criterion[%d] %s: %v", e.Index, e.Criterion, e.Err)
	}
	return fmt.Sprintf("criterion %s: %v", e.Criterion, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

func newError(c criteria.Criterion, err error) *Error {
	kind := errUnclassified
	for _, k := range kinds {
		if errors.Is(err, k) {
			kind = k
			break
		}
	}
	return &Error{Kind: kind, Criterion: c, Index: -1, Err: err}
}
