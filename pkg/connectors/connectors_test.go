package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/sandboxws/rowfilter/pkg/operator"
)

func mustSchema(t *testing.T, specs ...FieldSpec) *arrow.Schema {
	t.Helper()
	s, err := BuildSchema(specs)
	require.NoError(t, err)
	return s
}

func runSource(t *testing.T, src operator.Source, opCtx *operator.Context) []arrow.Record {
	t.Helper()
	out := make(chan arrow.Record, 100)
	done := make(chan error, 1)
	go func() {
		done <- src.Run(opCtx, out)
	}()

	var batches []arrow.Record
	for batch := range out {
		batches = append(batches, batch)
	}
	require.NoError(t, <-done)
	return batches
}

func TestBuildSchema(t *testing.T) {
	s := mustSchema(t,
		FieldSpec{Name: "id", Type: "int64"},
		FieldSpec{Name: "day", Type: "date32", Nullable: true},
		FieldSpec{Name: "at", Type: "timestamp_ms"},
	)
	require.Equal(t, arrow.INT64, s.Field(0).Type.ID())
	require.Equal(t, arrow.DATE32, s.Field(1).Type.ID())
	require.True(t, s.Field(1).Nullable)
	require.Equal(t, arrow.Millisecond, s.Field(2).Type.(*arrow.TimestampType).Unit)

	_, err := BuildSchema([]FieldSpec{{Name: "x", Type: "decimal"}})
	require.ErrorContains(t, err, `field "x"`)
	_, err = BuildSchema(nil)
	require.Error(t, err)
}

func TestGeneratorMaxRows(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	schema := mustSchema(t, FieldSpec{Name: "id", Type: "int64"}, FieldSpec{Name: "name", Type: "string"})
	gen := NewGenerator(schema, GeneratorOptions{MaxRows: 50, BatchSize: 16})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opCtx := operator.NewContext(ctx, alloc, "gen", "generator")
	require.NoError(t, gen.Open(opCtx))
	defer gen.Close()

	n, ok := gen.NumRows()
	require.True(t, ok)
	require.EqualValues(t, 50, n)

	var totalRows int64
	for _, batch := range runSource(t, gen, opCtx) {
		require.LessOrEqual(t, batch.NumRows(), int64(16))
		totalRows += batch.NumRows()
		batch.Release()
	}
	require.EqualValues(t, 50, totalRows)
	require.EqualValues(t, 50, opCtx.Metrics.RowsProcessed.Load())
}

func TestGeneratorUnbounded(t *testing.T) {
	gen := NewGenerator(mustSchema(t, FieldSpec{Name: "id", Type: "int64"}), GeneratorOptions{})
	_, ok := gen.NumRows()
	require.False(t, ok)
}

func TestGeneratorValues(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	schema := mustSchema(t,
		FieldSpec{Name: "id", Type: "int64"},
		FieldSpec{Name: "value", Type: "float64", Nullable: true},
		FieldSpec{Name: "label", Type: "string"},
		FieldSpec{Name: "flag", Type: "bool"},
		FieldSpec{Name: "day", Type: "date32"},
	)
	gen := NewGenerator(schema, GeneratorOptions{MaxRows: 4, NullEvery: 2})
	opCtx := operator.NewContext(context.Background(), alloc, "gen", "generator")
	require.NoError(t, gen.Open(opCtx))
	defer gen.Close()

	batches := runSource(t, gen, opCtx)
	require.Len(t, batches, 1)
	batch := batches[0]
	defer batch.Release()

	require.Equal(t, []int64{0, 1, 2, 3}, batch.Column(0).(*array.Int64).Int64Values())
	value := batch.Column(1)
	require.False(t, value.IsNull(0))
	require.True(t, value.IsNull(1), "every second row is null in nullable columns")
	require.True(t, value.IsNull(3))
	require.Equal(t, 0, batch.Column(0).NullN(), "non-nullable columns stay populated")
	require.Equal(t, "label_2", batch.Column(2).(*array.String).Value(2))
	require.True(t, batch.Column(3).(*array.Boolean).Value(0))
	require.Equal(t, "2024-01-02", batch.Column(4).(*array.Date32).Value(1).FormattedString())
}

func TestGeneratorRejectsUnsupportedType(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "d", Type: &arrow.Decimal128Type{Precision: 10, Scale: 2}}}, nil)
	gen := NewGenerator(schema, GeneratorOptions{MaxRows: 1})
	err := gen.Open(operator.NewContext(context.Background(), memory.DefaultAllocator, "gen", "generator"))
	require.ErrorContains(t, err, "unsupported type")
}

func TestGeneratorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := NewGenerator(mustSchema(t, FieldSpec{Name: "id", Type: "int64"}), GeneratorOptions{RowsPerSecond: 10})
	opCtx := operator.NewContext(ctx, memory.DefaultAllocator, "gen", "generator")
	require.NoError(t, gen.Open(opCtx))

	out := make(chan arrow.Record)
	done := make(chan error, 1)
	go func() { done <- gen.Run(opCtx, out) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("generator did not stop after cancel")
	}
	for batch := range out {
		batch.Release()
	}
}

func makeBatch(alloc memory.Allocator) arrow.Record {
	fields := []arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}
	schema := arrow.NewSchema(fields, nil)

	idBldr := array.NewInt64Builder(alloc)
	idBldr.AppendValues([]int64{1, 2, 3}, nil)
	idArr := idBldr.NewArray()
	idBldr.Release()

	nameBldr := array.NewStringBuilder(alloc)
	nameBldr.Append("alice")
	nameBldr.AppendNull()
	nameBldr.Append("charlie")
	nameArr := nameBldr.NewArray()
	nameBldr.Release()

	batch := array.NewRecord(schema, []arrow.Array{idArr, nameArr}, 3)
	idArr.Release()
	nameArr.Release()
	return batch
}

func TestConsole(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)
	batch := makeBatch(alloc)
	defer batch.Release()

	var buf bytes.Buffer
	c := NewConsole(10, "matched")
	c.SetWriter(&buf)
	require.NoError(t, c.Open(nil))
	defer c.Close()

	require.NoError(t, c.WriteBatch(batch))

	output := buf.String()
	require.Contains(t, output, "[matched]")
	require.Contains(t, output, "alice")
	require.Contains(t, output, "NULL")
	require.Contains(t, output, "| id")
	require.EqualValues(t, 3, c.Rows())
}

func TestConsoleMaxRows(t *testing.T) {
	alloc := memory.DefaultAllocator

	fields := []arrow.Field{
		{Name: "x", Type: arrow.PrimitiveTypes.Int64},
	}
	schema := arrow.NewSchema(fields, nil)

	vals := make([]int64, 100)
	for i := range vals {
		vals[i] = int64(i)
	}
	bldr := array.NewInt64Builder(alloc)
	bldr.AppendValues(vals, nil)
	arr := bldr.NewArray()
	bldr.Release()

	batch := array.NewRecord(schema, []arrow.Array{arr}, 100)
	arr.Release()
	defer batch.Release()

	var buf bytes.Buffer
	c := NewConsole(5, "") // Only show 5 rows.
	c.SetWriter(&buf)
	require.NoError(t, c.Open(nil))
	defer c.Close()

	require.NoError(t, c.WriteBatch(batch))
	require.Contains(t, buf.String(), "... (95 more rows)")
}

func TestFormatValue(t *testing.T) {
	alloc := memory.DefaultAllocator

	db := array.NewDate32Builder(alloc)
	db.Append(arrow.Date32FromTime(time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)))
	dates := db.NewArray()
	db.Release()
	defer dates.Release()
	require.Equal(t, "2024-03-09", formatValue(dates, 0))

	tb := array.NewTimestampBuilder(alloc, &arrow.TimestampType{Unit: arrow.Second})
	tb.Append(arrow.Timestamp(0))
	stamps := tb.NewArray()
	tb.Release()
	defer stamps.Release()
	require.Equal(t, "1970-01-01T00:00:00Z", formatValue(stamps, 0))
}

func TestJSONRowsToRecord(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	schema := mustSchema(t,
		FieldSpec{Name: "id", Type: "int64", Nullable: true},
		FieldSpec{Name: "big", Type: "uint64", Nullable: true},
		FieldSpec{Name: "name", Type: "string", Nullable: true},
		FieldSpec{Name: "ok", Type: "bool", Nullable: true},
		FieldSpec{Name: "day", Type: "date32", Nullable: true},
	)
	var rows []map[string]any
	for _, line := range []string{
		`{"id": 9007199254740993, "big": 18446744073709551615, "name": "a", "ok": true, "day": "2024-02-01"}`,
		`{"id": "x", "name": 5, "ok": "yes"}`,
	} {
		row, err := decodeJSONRow([]byte(line))
		require.NoError(t, err)
		rows = append(rows, row)
	}

	rec := jsonRowsToRecord(alloc, schema, rows)
	defer rec.Release()

	ids := rec.Column(0).(*array.Int64)
	require.EqualValues(t, 9007199254740993, ids.Value(0), "numbers are decoded exactly")
	require.True(t, ids.IsNull(1), "values of the wrong type become null")
	require.Equal(t, uint64(18446744073709551615), rec.Column(1).(*array.Uint64).Value(0))
	require.True(t, rec.Column(1).IsNull(1), "missing keys become null")
	require.Equal(t, "5", rec.Column(2).(*array.String).Value(1))
	require.True(t, rec.Column(3).IsNull(1))
	require.Equal(t, "2024-02-01", rec.Column(4).(*array.Date32).Value(0).FormattedString())
}

func TestEncodeBatch(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)
	batch := makeBatch(alloc)
	defer batch.Release()

	records, err := encodeBatch(batch, []string{"id"})
	require.NoError(t, err)
	require.Len(t, records, 3)

	var row map[string]any
	require.NoError(t, json.Unmarshal(records[1].Value, &row))
	require.Equal(t, map[string]any{"id": float64(2), "name": nil}, row)
	require.JSONEq(t, `{"id": 2}`, string(records[1].Key))
}

func TestCSVRoundTrip(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(in, []byte("id,name\n1,alice\n2,\n3,charlie\n"), 0o644))

	schema := mustSchema(t,
		FieldSpec{Name: "id", Type: "int64"},
		FieldSpec{Name: "name", Type: "string", Nullable: true},
	)
	opCtx := operator.NewContext(context.Background(), alloc, "csv", "csv")

	src := NewCSVSource(in, schema, 2)
	require.NoError(t, src.Open(opCtx))
	n, ok := src.NumRows()
	require.True(t, ok)
	require.EqualValues(t, 3, n)

	out := filepath.Join(dir, "out.csv")
	sink := NewCSVSink(out)
	require.NoError(t, sink.Open(opCtx))
	batches := runSource(t, src, opCtx)
	require.Len(t, batches, 2)
	for _, b := range batches {
		require.NoError(t, sink.WriteBatch(b))
		b.Release()
	}
	require.NoError(t, sink.Close())
	require.NoError(t, src.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{"id,name", "1,alice", "2,NULL", "3,charlie"}, lines)
}
