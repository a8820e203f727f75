package connectors

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/sandboxws/rowfilter/pkg/operator"
)

// CSVSource reads a CSV file with a header row. The whole file is loaded at
// Open, so its row count is known before the first batch is emitted.
type CSVSource struct {
	path      string
	schema    *arrow.Schema
	batchSize int
	batches   []arrow.Record
	rows      uint64
}

// NewCSVSource creates a CSV file source.
func NewCSVSource(path string, schema *arrow.Schema, batchSize int) *CSVSource {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &CSVSource{path: path, schema: schema, batchSize: batchSize}
}

func (c *CSVSource) Open(ctx *operator.Context) error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("csv source: %w", err)
	}
	defer f.Close()

	batches, err := readCSV(ctx, f, c.schema, c.batchSize)
	if err != nil {
		return fmt.Errorf("csv source: %s: %w", c.path, err)
	}
	c.batches = batches
	for _, b := range batches {
		c.rows += uint64(b.NumRows())
	}
	ctx.Logger.Info("csv file loaded", "path", c.path, "rows", c.rows, "batches", len(batches))
	return nil
}

func readCSV(ctx *operator.Context, r io.Reader, schema *arrow.Schema, batchSize int) ([]arrow.Record, error) {
	reader := csv.NewReader(r, schema,
		csv.WithAllocator(ctx.Alloc),
		csv.WithHeader(true),
		csv.WithNullReader(true),
		csv.WithChunk(batchSize),
	)
	defer reader.Release()

	var batches []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		batches = append(batches, rec)
	}
	if err := reader.Err(); err != nil {
		for _, b := range batches {
			b.Release()
		}
		return nil, err
	}
	return batches, nil
}

func (c *CSVSource) Schema() *arrow.Schema { return c.schema }

func (c *CSVSource) NumRows() (uint64, bool) { return c.rows, true }

func (c *CSVSource) Run(ctx *operator.Context, out chan<- arrow.Record) error {
	defer close(out)

	for len(c.batches) > 0 {
		batch := c.batches[0]
		select {
		case out <- batch:
			c.batches = c.batches[1:]
			ctx.Metrics.BatchesProcessed.Add(1)
			ctx.Metrics.RowsProcessed.Add(batch.NumRows())
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func (c *CSVSource) Close() error {
	for _, b := range c.batches {
		b.Release()
	}
	c.batches = nil
	return nil
}

// CSVSink writes batches to a CSV file with a header row.
type CSVSink struct {
	path   string
	out    io.WriteCloser
	writer *csv.Writer
}

// NewCSVSink creates a CSV file sink. The file is truncated at Open.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (c *CSVSink) Open(_ *operator.Context) error {
	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	c.out = f
	return nil
}

func (c *CSVSink) WriteBatch(batch arrow.Record) error {
	if c.writer == nil {
		c.writer = csv.NewWriter(c.out, batch.Schema(), csv.WithHeader(true))
	}
	if err := c.writer.Write(batch); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	return nil
}

func (c *CSVSink) Close() error {
	if c.out == nil {
		return nil
	}
	if c.writer != nil {
		if err := c.writer.Flush(); err != nil {
			c.out.Close()
			return fmt.Errorf("csv sink: flush: %w", err)
		}
	}
	return c.out.Close()
}
