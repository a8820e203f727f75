package connectors

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// FieldSpec declares one column of a connector schema.
type FieldSpec struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Nullable bool   `mapstructure:"nullable"`
}

// BuildSchema converts field declarations to an Arrow schema.
func BuildSchema(specs []FieldSpec) (*arrow.Schema, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("empty schema")
	}
	fields := make([]arrow.Field, len(specs))
	for i, f := range specs {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d: missing name", i)
		}
		dt, err := ParseType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields[i] = arrow.Field{Name: f.Name, Type: dt, Nullable: f.Nullable}
	}
	return arrow.NewSchema(fields, nil), nil
}

// ParseType maps a type name to an Arrow data type.
func ParseType(name string) (arrow.DataType, error) {
	switch strings.ToLower(name) {
	case "int8":
		return arrow.PrimitiveTypes.Int8, nil
	case "int16":
		return arrow.PrimitiveTypes.Int16, nil
	case "int32":
		return arrow.PrimitiveTypes.Int32, nil
	case "int64":
		return arrow.PrimitiveTypes.Int64, nil
	case "uint8":
		return arrow.PrimitiveTypes.Uint8, nil
	case "uint16":
		return arrow.PrimitiveTypes.Uint16, nil
	case "uint32":
		return arrow.PrimitiveTypes.Uint32, nil
	case "uint64":
		return arrow.PrimitiveTypes.Uint64, nil
	case "float32":
		return arrow.PrimitiveTypes.Float32, nil
	case "float64":
		return arrow.PrimitiveTypes.Float64, nil
	case "string":
		return arrow.BinaryTypes.String, nil
	case "bool", "boolean":
		return arrow.FixedWidthTypes.Boolean, nil
	case "date32", "date":
		return arrow.FixedWidthTypes.Date32, nil
	case "timestamp_ms":
		return arrow.FixedWidthTypes.Timestamp_ms, nil
	case "timestamp_us", "timestamp":
		return arrow.FixedWidthTypes.Timestamp_us, nil
	default:
		return nil, fmt.Errorf("unsupported arrow type: %q", name)
	}
}
