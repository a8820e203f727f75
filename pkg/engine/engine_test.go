package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	helpers "github.com/sandboxws/rowfilter/pkg/arrow/helpers"
	"github.com/sandboxws/rowfilter/pkg/compiler"
	"github.com/sandboxws/rowfilter/pkg/connectors"
	"github.com/sandboxws/rowfilter/pkg/expr"
	"github.com/sandboxws/rowfilter/pkg/operator"
	"github.com/sandboxws/rowfilter/pkg/operators"
)

var idNameSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "name", Type: arrow.BinaryTypes.String},
}, nil)

func generator(maxRows int64) *connectors.Generator {
	return connectors.NewGenerator(idNameSchema, connectors.GeneratorOptions{MaxRows: maxRows, BatchSize: 10})
}

func where(t *testing.T, isAnd bool, sqls ...string) operators.Config {
	t.Helper()
	list, err := expr.ParseCriteria(sqls, isAnd)
	require.NoError(t, err)
	return operators.Config{Criteria: list}
}

func discardConsole(title string) *connectors.Console {
	c := connectors.NewConsole(0, title)
	c.SetWriter(io.Discard)
	return c
}

func runPipeline(t *testing.T, p *Pipeline) (Stats, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.Run(ctx)
}

// TestGeneratorFilterConsole runs Generator(100 rows) → RowFilter(id >= 50) → Console.
func TestGeneratorFilterConsole(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	alloc := helpers.NewTestAllocator(t)

	var buf bytes.Buffer
	sink := connectors.NewConsole(0, "")
	sink.SetWriter(&buf)

	p := &Pipeline{
		Name:   "e2e",
		Source: generator(100),
		Filter: where(t, true, "id >= 50"),
		Sink:   sink,
		Alloc:  alloc,
	}
	stats, err := runPipeline(t, p)
	require.NoError(t, err)

	require.EqualValues(t, 100, stats.RowsIn)
	require.EqualValues(t, 50, stats.RowsMatched)
	require.EqualValues(t, 50, stats.RowsUnmatched)
	require.EqualValues(t, 10, stats.Batches)
	require.EqualValues(t, 50, sink.Rows())

	out := buf.String()
	require.Contains(t, out, "name_50")
	require.Contains(t, out, "name_99")
	require.NotContains(t, out, "name_49")
}

func TestSplitterRoutesUnmatchedRows(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	alloc := helpers.NewTestAllocator(t)

	matched, unmatched := discardConsole("matched"), discardConsole("unmatched")
	p := &Pipeline{
		Source:    generator(100),
		Filter:    where(t, false, "id < 10", "name = 'name_42'"),
		Sink:      matched,
		Unmatched: unmatched,
		Alloc:     alloc,
	}
	stats, err := runPipeline(t, p)
	require.NoError(t, err)

	require.EqualValues(t, 11, stats.RowsMatched)
	require.EqualValues(t, 89, stats.RowsUnmatched)
	require.EqualValues(t, 11, matched.Rows())
	require.EqualValues(t, 89, unmatched.Rows())
}

func TestInvertWithoutUnmatchedSink(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	alloc := helpers.NewTestAllocator(t)

	sink := discardConsole("")
	p := &Pipeline{
		Source: generator(100),
		Filter: where(t, true, "id < 30"),
		Invert: true,
		Sink:   sink,
		Alloc:  alloc,
	}
	stats, err := runPipeline(t, p)
	require.NoError(t, err)
	require.EqualValues(t, 70, sink.Rows())
	require.EqualValues(t, 30, stats.RowsMatched)
	require.EqualValues(t, 70, stats.RowsUnmatched)
}

func TestLastRowsUsesSourceSize(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	alloc := helpers.NewTestAllocator(t)

	out := filepath.Join(t.TempDir(), "tail.csv")
	p := &Pipeline{
		Source: generator(100),
		Filter: where(t, true, "LAST_N_ROWS(5)"),
		Sink:   connectors.NewCSVSink(out),
		Alloc:  alloc,
	}
	stats, err := runPipeline(t, p)
	require.NoError(t, err)
	require.EqualValues(t, 5, stats.RowsMatched)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{
		"id,name",
		"95,name_95",
		"96,name_96",
		"97,name_97",
		"98,name_98",
		"99,name_99",
	}, lines)
}

func TestLastRowsOnUnboundedSourceFailsBeforeRows(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	alloc := helpers.NewTestAllocator(t)

	sink := discardConsole("")
	p := &Pipeline{
		Source: generator(0),
		Filter: where(t, true, "LAST_N_ROWS(5)"),
		Sink:   sink,
		Alloc:  alloc,
	}
	stats, err := runPipeline(t, p)
	require.ErrorIs(t, err, compiler.ErrUnknownTableSize)
	require.Zero(t, stats.RowsIn)
	require.Zero(t, sink.Rows())
}

func TestCompileErrorSurfacesAtOpen(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	alloc := helpers.NewTestAllocator(t)

	p := &Pipeline{
		Source: generator(100),
		Filter: where(t, true, "missing = 1"),
		Sink:   discardConsole(""),
		Alloc:  alloc,
	}
	_, err := runPipeline(t, p)
	require.ErrorIs(t, err, compiler.ErrUnknownColumn)
	require.Contains(t, err.Error(), "open filter")
}

type failingSink struct {
	err    error
	closed bool
}

func (f *failingSink) Open(*operator.Context) error { return nil }

func (f *failingSink) WriteBatch(arrow.Record) error { return f.err }

func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestSinkErrorStopsUnboundedPipeline(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	alloc := helpers.NewTestAllocator(t)

	errBroken := errors.New("broken pipe")
	sink := &failingSink{err: errBroken}
	p := &Pipeline{
		Source: generator(0),
		Filter: where(t, true, "id >= 0"),
		Sink:   sink,
		Alloc:  alloc,
	}
	_, err := runPipeline(t, p)
	require.ErrorIs(t, err, errBroken)
	require.True(t, sink.closed)
}

func TestStopEndsUnboundedPipeline(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	alloc := helpers.NewTestAllocator(t)

	p := &Pipeline{
		Source: connectors.NewGenerator(idNameSchema, connectors.GeneratorOptions{RowsPerSecond: 1000, BatchSize: 10}),
		Filter: where(t, true, "id >= 0"),
		Sink:   discardConsole(""),
		Alloc:  alloc,
	}
	stop := time.AfterFunc(100*time.Millisecond, p.Stop)
	defer stop.Stop()

	stats, err := runPipeline(t, p)
	require.NoError(t, err)
	require.Positive(t, stats.RowsIn)
}

func TestBuildFromConfig(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	in := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(in, []byte("id,status\n1,open\n2,closed\n3,open\n4,void\n"), 0o644))
	out := filepath.Join(dir, "open.csv")

	cfg := &Config{
		Name: "orders",
		Source: SourceConfig{
			Type: "csv",
			Path: in,
			Schema: []connectors.FieldSpec{
				{Name: "id", Type: "int64"},
				{Name: "status", Type: "string"},
			},
		},
		Filter:    FilterConfig{Where: []string{"status = 'open'"}, Match: "all"},
		Sink:      SinkConfig{Type: "csv", Path: out},
		Unmatched: SinkConfig{Type: "console"},
	}
	require.NoError(t, ValidateConfig(cfg))

	var console bytes.Buffer
	p, err := Build(cfg, &console)
	require.NoError(t, err)
	p.Alloc = helpers.NewTestAllocator(t)

	stats, err := runPipeline(t, p)
	require.NoError(t, err)
	require.EqualValues(t, 4, stats.RowsIn)
	require.EqualValues(t, 2, stats.RowsMatched)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "id,status\n1,open\n3,open\n", string(data))

	require.Contains(t, console.String(), "[unmatched]")
	require.Contains(t, console.String(), "closed")
	require.Contains(t, console.String(), "void")
}
