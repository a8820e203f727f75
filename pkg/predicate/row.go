package predicate

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// DefaultRowKey is the identifier of a row that has no key column.
func DefaultRowKey(rowIndex uint64) string {
	return "Row" + strconv.FormatUint(rowIndex, 10)
}

// RecordRow is a RowView over one row of an arrow.Record. It is meant to be
// reused: call Reset to move it to another row.
type RecordRow struct {
	rec      arrow.Record
	keyCol   int
	keys     *array.String
	index    int
	rowIndex uint64
}

// NewRecordRow returns a view over rec. keyCol names the column holding row
// identifiers, or -1 to derive them from the row index. A key column that is
// not of string type is ignored.
func NewRecordRow(rec arrow.Record, keyCol int) *RecordRow {
	r := &RecordRow{rec: rec, keyCol: -1}
	if keyCol >= 0 && keyCol < int(rec.NumCols()) {
		if s, ok := rec.Column(keyCol).(*array.String); ok {
			r.keyCol = keyCol
			r.keys = s
		}
	}
	return r
}

// Reset points the view at position index of the record, which is row
// rowIndex of the whole table.
func (r *RecordRow) Reset(index int, rowIndex uint64) {
	r.index = index
	r.rowIndex = rowIndex
}

func (r *RecordRow) RowKey() string {
	if r.keys != nil && r.keys.IsValid(r.index) {
		return r.keys.Value(r.index)
	}
	return DefaultRowKey(r.rowIndex)
}

func (r *RecordRow) Column(col int) arrow.Array { return r.rec.Column(col) }

func (r *RecordRow) Index() int { return r.index }
