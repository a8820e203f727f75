package criteria

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/scalar"
)

// LiteralTypeName returns the persisted type name of a literal.
func LiteralTypeName(s scalar.Scalar) string {
	if s == nil {
		return ""
	}
	switch s.DataType().ID() {
	case arrow.STRING:
		return "utf8"
	case arrow.LARGE_STRING:
		return "large_utf8"
	case arrow.BOOL:
		return "bool"
	default:
		return s.DataType().Name()
	}
}

// ParseLiteral builds a literal of the named type from its string rendering.
// Besides the Arrow type names it accepts the type names used by the legacy
// catalog (INT, LONG, DOUBLE, STRING, BOOLEAN).
func ParseLiteral(typeName, text string) (scalar.Scalar, error) {
	switch strings.ToLower(typeName) {
	case "int8":
		n, err := strconv.ParseInt(text, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("parse int8 literal %q: %w", text, err)
		}
		return scalar.NewInt8Scalar(int8(n)), nil
	case "int16":
		n, err := strconv.ParseInt(text, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("parse int16 literal %q: %w", text, err)
		}
		return scalar.NewInt16Scalar(int16(n)), nil
	case "int32", "int":
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse int32 literal %q: %w", text, err)
		}
		return scalar.NewInt32Scalar(int32(n)), nil
	case "int64", "long":
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse int64 literal %q: %w", text, err)
		}
		return scalar.NewInt64Scalar(n), nil
	case "uint8":
		n, err := strconv.ParseUint(text, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("parse uint8 literal %q: %w", text, err)
		}
		return scalar.NewUint8Scalar(uint8(n)), nil
	case "uint16":
		n, err := strconv.ParseUint(text, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("parse uint16 literal %q: %w", text, err)
		}
		return scalar.NewUint16Scalar(uint16(n)), nil
	case "uint32":
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse uint32 literal %q: %w", text, err)
		}
		return scalar.NewUint32Scalar(uint32(n)), nil
	case "uint64":
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse uint64 literal %q: %w", text, err)
		}
		return scalar.NewUint64Scalar(n), nil
	case "float32":
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, fmt.Errorf("parse float32 literal %q: %w", text, err)
		}
		return scalar.NewFloat32Scalar(float32(f)), nil
	case "float64", "double":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("parse float64 literal %q: %w", text, err)
		}
		return scalar.NewFloat64Scalar(f), nil
	case "bool", "boolean":
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("parse bool literal %q: %w", text, err)
		}
		return scalar.NewBooleanScalar(b), nil
	case "utf8", "string", "":
		return scalar.NewStringScalar(text), nil
	case "large_utf8":
		return scalar.NewLargeStringScalar(text), nil
	default:
		return nil, fmt.Errorf("unsupported literal type %q", typeName)
	}
}
