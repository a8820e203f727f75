package registry

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/scalar"
)

func isSigned(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		return true
	}
	return false
}

func isUnsigned(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}

func isIntegral(dt arrow.DataType) bool { return isSigned(dt) || isUnsigned(dt) }

func isFloating(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}

func isNumeric(dt arrow.DataType) bool { return isIntegral(dt) || isFloating(dt) }

func isString(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return true
	}
	return false
}

func isTemporal(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.DATE32, arrow.TIMESTAMP:
		return true
	}
	return false
}

func isBool(dt arrow.DataType) bool { return dt.ID() == arrow.BOOL }

// Ordered reports whether columns of type dt support LT, LTE, GT and GTE.
func Ordered(dt arrow.DataType) bool {
	return dt != nil && (isNumeric(dt) || isTemporal(dt))
}

// Equatable reports whether columns of type dt support EQ, NEQ and NEQ_MISS.
func Equatable(dt arrow.DataType) bool {
	return dt != nil && (isNumeric(dt) || isString(dt) || isTemporal(dt))
}

// Matchable reports whether the string rendering of dt cells can be matched
// against REGEX and WILDCARD patterns.
func Matchable(dt arrow.DataType) bool {
	return dt != nil && (isString(dt) || isIntegral(dt))
}

var numericLiterals = []string{
	"int8", "int16", "int32", "int64",
	"uint8", "uint16", "uint32", "uint64",
	"float32", "float64",
}

// CompatibleLiterals lists the literal type names that can be compared
// with a column of type dt.
func CompatibleLiterals(dt arrow.DataType) []string {
	switch {
	case dt == nil:
		return nil
	case isNumeric(dt):
		return numericLiterals
	case isString(dt):
		return []string{"utf8", "large_utf8"}
	case dt.ID() == arrow.DATE32:
		return []string{"utf8", "date32", "int64"}
	case dt.ID() == arrow.TIMESTAMP:
		return []string{"utf8", "timestamp", "int64"}
	case isBool(dt):
		return []string{"bool"}
	}
	return nil
}

// AcceptsLiteral reports whether lit can be compared with values of type dt.
func AcceptsLiteral(dt arrow.DataType, lit scalar.Scalar) bool {
	_, err := newCellComparer(dt, lit)
	return err == nil
}
