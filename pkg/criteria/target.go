package criteria

import "fmt"

// TargetKind distinguishes real columns from the two pseudo-columns.
type TargetKind int

const (
	TargetColumn TargetKind = iota
	TargetRowID
	TargetRowNumber
)

// Reserved selector tokens for the pseudo-columns. They can never clash with
// a column name because the persisted selector of a real column is prefixed.
const (
	RowIDToken     = "<row-id>"
	RowNumberToken = "<row-number>"
)

// Target is what a criterion is evaluated against.
type Target struct {
	Kind   TargetKind
	Column string
}

// Column targets the named schema column.
func Column(name string) Target { return Target{Kind: TargetColumn, Column: name} }

// RowID targets the row identifier pseudo-column.
func RowID() Target { return Target{Kind: TargetRowID} }

// RowNumber targets the 1-based row position pseudo-column.
func RowNumber() Target { return Target{Kind: TargetRowNumber} }

// IsPseudo reports whether t is one of the pseudo-columns.
func (t Target) IsPseudo() bool { return t.Kind != TargetColumn }

func (t Target) String() string {
	switch t.Kind {
	case TargetRowID:
		return RowIDToken
	case TargetRowNumber:
		return RowNumberToken
	default:
		return t.Column
	}
}

// Selector returns the persisted form of t.
func (t Target) Selector() string {
	if t.IsPseudo() {
		return t.String()
	}
	return "column:" + t.Column
}

// ParseSelector is the inverse of Selector. A bare name without the
// "column:" prefix is accepted as a column for hand-written configs.
func ParseSelector(s string) (Target, error) {
	switch s {
	case RowIDToken:
		return RowID(), nil
	case RowNumberToken:
		return RowNumber(), nil
	case "", "column:":
		return Target{}, fmt.Errorf("empty target selector")
	}
	if len(s) > len("column:") && s[:len("column:")] == "column:" {
		return Column(s[len("column:"):]), nil
	}
	return Column(s), nil
}
