// Package operators implements the stream operators that apply compiled
// criteria to record batches.
package operators

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	helpers "github.com/sandboxws/rowfilter/pkg/arrow/helpers"
	"github.com/sandboxws/rowfilter/pkg/compiler"
	"github.com/sandboxws/rowfilter/pkg/criteria"
	"github.com/sandboxws/rowfilter/pkg/metrics"
	"github.com/sandboxws/rowfilter/pkg/operator"
	"github.com/sandboxws/rowfilter/pkg/predicate"
	"github.com/sandboxws/rowfilter/pkg/registry"
)

// Config configures RowFilter and Splitter.
type Config struct {
	Criteria criteria.List

	// Size is the number of rows the operator will see in total. It is only
	// required by LAST_N_ROWS.
	Size compiler.TableSize

	// KeyColumn names the string column holding row identifiers. Rows get
	// Row<n> identifiers when it is empty.
	KeyColumn string

	// Registry overrides the default operator registry.
	Registry *registry.Registry

	// Schema, when set, compiles the criteria at Open instead of on the
	// first batch.
	Schema *arrow.Schema

	// DeferUntilSized holds every batch back until Flush when the table
	// size is unknown and a criterion needs it.
	DeferUntilSized bool
}

// filter holds the compilation state shared by RowFilter and Splitter.
type filter struct {
	cfg      Config
	ctx      *operator.Context
	compiler *compiler.Compiler

	schema *arrow.Schema
	result *compiler.Result
	keyCol int
	// size is the row count criteria are compiled with. It starts as
	// cfg.Size and becomes known once held batches are drained.
	size compiler.TableSize

	// invert makes the non-matching rows the primary output.
	invert bool

	// offset is the table position of the next batch's first row.
	offset uint64

	deferred bool
	pending  []arrow.Record
	seen     uint64
}

func (f *filter) open(ctx *operator.Context) error {
	f.ctx = ctx
	f.compiler = compiler.New(f.cfg.Registry, compiler.WithLogger(ctx.Logger))
	f.size = f.cfg.Size
	if f.cfg.Schema != nil {
		return f.bind(f.cfg.Schema, f.size)
	}
	return nil
}

// bind compiles the criteria against schema.
func (f *filter) bind(schema *arrow.Schema, size compiler.TableSize) error {
	res, err := f.compiler.CompileAll(f.cfg.Criteria, schema, size)
	if err != nil {
		if f.cfg.DeferUntilSized && errors.Is(err, compiler.ErrUnknownTableSize) {
			f.ctx.Logger.Info("table size unknown, holding batches until flush")
			f.schema = schema
			f.deferred = true
			return nil
		}
		var cerr *compiler.Error
		kind := "unclassified"
		if errors.As(err, &cerr) {
			kind = cerr.Kind.Error()
		}
		metrics.CompileErrors.WithLabelValues(f.ctx.OperatorID, kind).Inc()
		f.ctx.Metrics.Errors.Add(1)
		return fmt.Errorf("compile criteria: %w", err)
	}
	f.schema = schema
	f.result = res
	f.keyCol = -1
	if f.cfg.KeyColumn != "" {
		f.keyCol = helpers.ColumnIndex(schema, f.cfg.KeyColumn)
	}
	return nil
}

// split partitions batch into primary and secondary records. Secondary
// records are only built when wantSecondary is set. Nothing is returned for
// a batch held back until the table size is known.
func (f *filter) split(batch arrow.Record, wantSecondary bool) (primary, secondary []arrow.Record, err error) {
	if f.schema == nil || (!f.deferred && !f.schema.Equal(batch.Schema())) {
		if f.schema != nil {
			f.ctx.Logger.Debug("schema changed, recompiling criteria")
		}
		if err := f.bind(batch.Schema(), f.size); err != nil {
			return nil, nil, err
		}
	}
	if f.deferred {
		batch.Retain()
		f.pending = append(f.pending, batch)
		f.seen += uint64(batch.NumRows())
		return nil, nil, nil
	}

	n := uint64(batch.NumRows())
	start := time.Now()
	defer func() { f.offset += n }()

	if s, ok := f.result.Split(); ok {
		if f.invert {
			s = s.Swap()
		}
		primary = helpers.SliceRanges(batch, f.offset, s.Matched)
		if wantSecondary {
			secondary = helpers.SliceRanges(batch, f.offset, s.Unmatched)
		}
		f.observe(primary, n, start, metrics.PathRange)
		return primary, secondary, nil
	}

	primary, secondary, err = f.evaluate(batch, wantSecondary)
	if err != nil {
		return nil, nil, err
	}
	f.observe(primary, n, start, metrics.PathPredicate)
	return primary, secondary, nil
}

func (f *filter) evaluate(batch arrow.Record, wantSecondary bool) (primary, secondary []arrow.Record, err error) {
	ctx := context.Background()
	row := predicate.NewRecordRow(batch, f.keyCol)
	mask, kept := helpers.Mask(f.ctx.Alloc, int(batch.NumRows()), func(i int) bool {
		row.Reset(i, f.offset+uint64(i))
		return f.result.Test(f.offset+uint64(i), row) != f.invert
	})
	defer mask.Release()

	if kept > 0 {
		rec, err := helpers.Filter(ctx, batch, mask)
		if err != nil {
			return nil, nil, err
		}
		primary = []arrow.Record{rec}
	}
	if wantSecondary && kept < int(batch.NumRows()) {
		inv := helpers.Invert(f.ctx.Alloc, mask)
		defer inv.Release()
		rec, err := helpers.Filter(ctx, batch, inv)
		if err != nil {
			release(primary)
			return nil, nil, err
		}
		secondary = []arrow.Record{rec}
	}
	return primary, secondary, nil
}

func (f *filter) observe(primary []arrow.Record, n uint64, start time.Time, path string) {
	var kept int64
	for _, r := range primary {
		kept += r.NumRows()
	}
	if f.invert {
		kept = int64(n) - kept
	}
	m := f.ctx.Metrics
	m.BatchesProcessed.Add(1)
	m.RowsProcessed.Add(int64(n))
	m.RowsMatched.Add(kept)
	m.RowsUnmatched.Add(int64(n) - kept)

	id, name := f.ctx.OperatorID, f.ctx.OperatorName
	metrics.RowsMatched.WithLabelValues(id, name).Add(float64(kept))
	metrics.RowsUnmatched.WithLabelValues(id, name).Add(float64(int64(n) - kept))
	metrics.BatchLatency.WithLabelValues(id, name, path).Observe(time.Since(start).Seconds())
}

// drain compiles held batches against the now known row count and splits
// them in arrival order. A held batch whose schema differs from the one
// before it is recompiled with the same known count.
func (f *filter) drain(wantSecondary bool) (primary, secondary []arrow.Record, err error) {
	if !f.deferred {
		return nil, nil, nil
	}
	pending := f.pending
	f.pending = nil
	f.deferred = false
	defer release(pending)

	f.size = compiler.KnownSize(f.offset + f.seen)
	if err := f.bind(f.schema, f.size); err != nil {
		return nil, nil, err
	}
	for _, batch := range pending {
		p, s, err := f.split(batch, wantSecondary)
		if err != nil {
			release(primary)
			release(secondary)
			return nil, nil, err
		}
		primary = append(primary, p...)
		secondary = append(secondary, s...)
	}
	return primary, secondary, nil
}

func (f *filter) close() {
	release(f.pending)
	f.pending = nil
}

func release(recs []arrow.Record) {
	for _, r := range recs {
		r.Release()
	}
}

// RowFilter keeps the rows matching its criteria and drops the rest.
type RowFilter struct {
	filter
}

// NewRowFilter creates a RowFilter.
func NewRowFilter(cfg Config) *RowFilter {
	return &RowFilter{filter: filter{cfg: cfg, keyCol: -1}}
}

func (r *RowFilter) Open(ctx *operator.Context) error {
	return r.open(ctx)
}

func (r *RowFilter) ProcessBatch(batch arrow.Record) ([]arrow.Record, error) {
	matched, _, err := r.split(batch, false)
	return matched, err
}

func (r *RowFilter) Flush() ([]arrow.Record, error) {
	matched, _, err := r.drain(false)
	return matched, err
}

func (r *RowFilter) Close() error {
	r.close()
	return nil
}
