// Package connectors implements the sources and sinks of a rowfilter pipeline.
package connectors

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/sandboxws/rowfilter/pkg/operator"
)

const defaultBatchSize = 1024

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	// RowsPerSecond caps the emit rate. Zero or less emits as fast as the
	// consumer reads.
	RowsPerSecond int64
	// MaxRows bounds the output. Zero or less generates forever.
	MaxRows int64
	// BatchSize defaults to 1024.
	BatchSize int
	// NullEvery makes every nth row null in nullable columns.
	NullEvery int64
}

// Generator produces synthetic Arrow record batches. Column values derive
// from the row sequence number so that output is reproducible.
type Generator struct {
	schema *arrow.Schema
	opts   GeneratorOptions
	alloc  memory.Allocator
	epoch  time.Time
}

// NewGenerator creates a Generator source.
func NewGenerator(schema *arrow.Schema, opts GeneratorOptions) *Generator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Generator{
		schema: schema,
		opts:   opts,
		epoch:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (g *Generator) Open(ctx *operator.Context) error {
	g.alloc = ctx.Alloc
	for _, f := range g.schema.Fields() {
		if !generatable(f.Type) {
			return fmt.Errorf("generator: field %q: unsupported type %s", f.Name, f.Type)
		}
	}
	return nil
}

func (g *Generator) Schema() *arrow.Schema { return g.schema }

func (g *Generator) NumRows() (uint64, bool) {
	if g.opts.MaxRows <= 0 {
		return 0, false
	}
	return uint64(g.opts.MaxRows), true
}

func (g *Generator) Run(ctx *operator.Context, out chan<- arrow.Record) error {
	defer close(out)

	batchSize := g.opts.BatchSize
	var tick <-chan time.Time
	if rps := g.opts.RowsPerSecond; rps > 0 {
		if int64(batchSize) > rps {
			batchSize = int(rps)
		}
		interval := time.Duration(float64(time.Second) * float64(batchSize) / float64(rps))
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var seq int64
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}

		remaining := int64(batchSize)
		if g.opts.MaxRows > 0 {
			left := g.opts.MaxRows - seq
			if left <= 0 {
				return nil
			}
			remaining = min(remaining, left)
		}

		batch := g.generateBatch(seq, int(remaining))
		select {
		case out <- batch:
			seq += remaining
			ctx.Metrics.BatchesProcessed.Add(1)
			ctx.Metrics.RowsProcessed.Add(remaining)
		case <-ctx.Done():
			batch.Release()
			return nil
		}
	}
}

func (g *Generator) Close() error { return nil }

func generatable(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64, arrow.STRING, arrow.BOOL,
		arrow.DATE32, arrow.TIMESTAMP:
		return true
	}
	return false
}

func (g *Generator) generateBatch(startSeq int64, numRows int) arrow.Record {
	builders := make([]array.Builder, g.schema.NumFields())
	for i := range builders {
		builders[i] = array.NewBuilder(g.alloc, g.schema.Field(i).Type)
	}

	for row := 0; row < numRows; row++ {
		seq := startSeq + int64(row)
		null := g.opts.NullEvery > 0 && (seq+1)%g.opts.NullEvery == 0
		for i, f := range g.schema.Fields() {
			if null && f.Nullable {
				builders[i].AppendNull()
				continue
			}
			g.appendValue(builders[i], f, seq)
		}
	}

	arrays := make([]arrow.Array, len(builders))
	for i, b := range builders {
		arrays[i] = b.NewArray()
		b.Release()
	}

	rec := array.NewRecord(g.schema, arrays, int64(numRows))
	for _, a := range arrays {
		a.Release()
	}
	return rec
}

func (g *Generator) appendValue(bldr array.Builder, f arrow.Field, seq int64) {
	switch b := bldr.(type) {
	case *array.Int8Builder:
		b.Append(int8(seq % 128))
	case *array.Int16Builder:
		b.Append(int16(seq))
	case *array.Int32Builder:
		b.Append(int32(seq))
	case *array.Int64Builder:
		b.Append(seq)
	case *array.Uint8Builder:
		b.Append(uint8(seq % 256))
	case *array.Uint16Builder:
		b.Append(uint16(seq))
	case *array.Uint32Builder:
		b.Append(uint32(seq))
	case *array.Uint64Builder:
		b.Append(uint64(seq))
	case *array.Float32Builder:
		b.Append(float32(seq) * 1.1)
	case *array.Float64Builder:
		b.Append(float64(seq) * 1.1)
	case *array.StringBuilder:
		b.Append(fmt.Sprintf("%s_%d", f.Name, seq))
	case *array.BooleanBuilder:
		b.Append(seq%2 == 0)
	case *array.Date32Builder:
		b.Append(arrow.Date32FromTime(g.epoch.AddDate(0, 0, int(seq))))
	case *array.TimestampBuilder:
		ts, _ := arrow.TimestampFromTime(g.epoch.Add(time.Duration(seq)*time.Second), f.Type.(*arrow.TimestampType).Unit)
		b.Append(ts)
	default:
		bldr.AppendNull()
	}
}
