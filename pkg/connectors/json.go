package connectors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// decodeJSONRow parses one JSON object keeping numbers exact.
func decodeJSONRow(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}

// jsonRowsToRecord converts JSON row maps to an Arrow RecordBatch. Missing
// keys and values that do not fit the column type become nulls.
func jsonRowsToRecord(alloc memory.Allocator, schema *arrow.Schema, rows []map[string]any) arrow.Record {
	numCols := schema.NumFields()
	builders := make([]array.Builder, numCols)
	for i := 0; i < numCols; i++ {
		builders[i] = array.NewBuilder(alloc, schema.Field(i).Type)
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for _, row := range rows {
		for i := 0; i < numCols; i++ {
			f := schema.Field(i)
			val, exists := row[f.Name]
			if !exists || val == nil {
				builders[i].AppendNull()
				continue
			}
			appendJSONValue(builders[i], f.Type, val)
		}
	}

	arrays := make([]arrow.Array, numCols)
	for i, b := range builders {
		arrays[i] = b.NewArray()
	}

	rec := array.NewRecord(schema, arrays, int64(len(rows)))
	for _, a := range arrays {
		a.Release()
	}
	return rec
}

func jsonInt(val any) (int64, bool) {
	switch v := val.(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		return int64(v), v == float64(int64(v))
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func jsonUint(val any) (uint64, bool) {
	switch v := val.(type) {
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		return n, err == nil
	case float64:
		return uint64(v), v >= 0 && v == float64(uint64(v))
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func jsonFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	case float64:
		return v, true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	}
	return 0, false
}

func appendJSONValue(bldr array.Builder, dt arrow.DataType, val any) {
	ok := true
	switch b := bldr.(type) {
	case *array.Int8Builder:
		var n int64
		if n, ok = jsonInt(val); ok {
			b.Append(int8(n))
		}
	case *array.Int16Builder:
		var n int64
		if n, ok = jsonInt(val); ok {
			b.Append(int16(n))
		}
	case *array.Int32Builder:
		var n int64
		if n, ok = jsonInt(val); ok {
			b.Append(int32(n))
		}
	case *array.Int64Builder:
		var n int64
		if n, ok = jsonInt(val); ok {
			b.Append(n)
		}
	case *array.Uint8Builder:
		var n uint64
		if n, ok = jsonUint(val); ok {
			b.Append(uint8(n))
		}
	case *array.Uint16Builder:
		var n uint64
		if n, ok = jsonUint(val); ok {
			b.Append(uint16(n))
		}
	case *array.Uint32Builder:
		var n uint64
		if n, ok = jsonUint(val); ok {
			b.Append(uint32(n))
		}
	case *array.Uint64Builder:
		var n uint64
		if n, ok = jsonUint(val); ok {
			b.Append(n)
		}
	case *array.Float32Builder:
		var f float64
		if f, ok = jsonFloat(val); ok {
			b.Append(float32(f))
		}
	case *array.Float64Builder:
		var f float64
		if f, ok = jsonFloat(val); ok {
			b.Append(f)
		}
	case *array.StringBuilder:
		if s, isString := val.(string); isString {
			b.Append(s)
		} else {
			b.Append(fmt.Sprintf("%v", val))
		}
	case *array.BooleanBuilder:
		var v bool
		if v, ok = val.(bool); ok {
			b.Append(v)
		}
	case *array.Date32Builder:
		var s string
		if s, ok = val.(string); ok {
			t, err := time.Parse("2006-01-02", s)
			if ok = err == nil; ok {
				b.Append(arrow.Date32FromTime(t))
			}
		}
	case *array.TimestampBuilder:
		unit := dt.(*arrow.TimestampType).Unit
		if n, isInt := jsonInt(val); isInt {
			b.Append(arrow.Timestamp(n))
		} else if s, isString := val.(string); isString {
			t, err := time.Parse(time.RFC3339Nano, s)
			if ok = err == nil; ok {
				ts, _ := arrow.TimestampFromTime(t, unit)
				b.Append(ts)
			}
		} else {
			ok = false
		}
	default:
		ok = false
	}
	if !ok {
		bldr.AppendNull()
	}
}

// rowToJSON renders row of batch as a JSON object keyed by column name.
func rowToJSON(batch arrow.Record, row int) map[string]any {
	schema := batch.Schema()
	record := make(map[string]any, schema.NumFields())
	for col := 0; col < schema.NumFields(); col++ {
		arr := batch.Column(col)
		if arr.IsNull(row) {
			record[schema.Field(col).Name] = nil
			continue
		}
		record[schema.Field(col).Name] = jsonValue(arr, row)
	}
	return record
}

func jsonValue(arr arrow.Array, row int) any {
	switch a := arr.(type) {
	case *array.Int8:
		return a.Value(row)
	case *array.Int16:
		return a.Value(row)
	case *array.Int32:
		return a.Value(row)
	case *array.Int64:
		return a.Value(row)
	case *array.Uint8:
		return a.Value(row)
	case *array.Uint16:
		return a.Value(row)
	case *array.Uint32:
		return a.Value(row)
	case *array.Uint64:
		return a.Value(row)
	case *array.Float32:
		return a.Value(row)
	case *array.Float64:
		return a.Value(row)
	case *array.Boolean:
		return a.Value(row)
	case *array.String:
		return a.Value(row)
	default:
		return formatValue(arr, row)
	}
}
