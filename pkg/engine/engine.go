// Package engine runs filter pipelines: a source feeding a RowFilter or
// Splitter whose outputs go to one or two sinks. Every stage runs in its own
// goroutine and stages are wired by channels.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/sandboxws/rowfilter/pkg/compiler"
	"github.com/sandboxws/rowfilter/pkg/operator"
	"github.com/sandboxws/rowfilter/pkg/operators"
)

const defaultChannelBuffer = 16

// Pipeline is a source, a filter and its sinks.
type Pipeline struct {
	Name   string
	Source operator.Source
	Filter operators.Config
	// Invert sends non-matching rows to Sink and matching rows to Unmatched.
	Invert bool
	Sink   operator.Sink
	// Unmatched optionally receives the rows Sink does not.
	Unmatched operator.Sink
	Alloc     memory.Allocator

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Stats summarizes a pipeline run.
type Stats struct {
	RowsIn        int64
	RowsMatched   int64
	RowsUnmatched int64
	Batches       int64
	Elapsed       time.Duration
}

// Run opens every stage, then streams batches until the source is exhausted
// or ctx is cancelled. Stages are opened before any batch flows so that
// configuration and compile errors surface first.
func (p *Pipeline) Run(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	alloc := p.Alloc
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	logger := slog.Default().With("pipeline", p.Name)

	g, gctx := errgroup.WithContext(ctx)
	srcCtx := operator.NewContext(gctx, alloc, "source", "source")
	filterCtx := operator.NewContext(gctx, alloc, "filter", "filter")
	sinkCtx := operator.NewContext(gctx, alloc, "sink", "matched")
	unmatchedCtx := operator.NewContext(gctx, alloc, "unmatched", "unmatched")

	closeStage := func(name string, c interface{ Close() error }) {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close %s: %w", name, cerr))
		}
	}

	if err := p.Source.Open(srcCtx); err != nil {
		return Stats{}, fmt.Errorf("open source: %w", err)
	}
	defer closeStage("source", p.Source)

	cfg := p.Filter
	cfg.Schema = p.Source.Schema()
	if sized, ok := p.Source.(operator.Sized); ok {
		if n, known := sized.NumRows(); known {
			cfg.Size = compiler.KnownSize(n)
		}
	}

	var filter operator.Operator
	var splitter operator.Splitting
	if p.Unmatched != nil || p.Invert {
		s := operators.NewSplitter(cfg, p.Invert)
		filter, splitter = s, s
	} else {
		filter = operators.NewRowFilter(cfg)
	}
	if err := filter.Open(filterCtx); err != nil {
		return Stats{}, fmt.Errorf("open filter: %w", err)
	}
	defer closeStage("filter", filter)

	if err := p.Sink.Open(sinkCtx); err != nil {
		return Stats{}, fmt.Errorf("open sink: %w", err)
	}
	defer closeStage("sink", p.Sink)

	if p.Unmatched != nil {
		if err := p.Unmatched.Open(unmatchedCtx); err != nil {
			return Stats{}, fmt.Errorf("open unmatched sink: %w", err)
		}
		defer closeStage("unmatched sink", p.Unmatched)
	}

	logger.Info("pipeline started",
		"criteria", len(cfg.Criteria.Criteria),
		"table_size", cfg.Size.String(),
		"invert", p.Invert,
		"unmatched_sink", p.Unmatched != nil)

	in := make(chan arrow.Record, defaultChannelBuffer)
	matched := make(chan arrow.Record, defaultChannelBuffer)
	var unmatched chan arrow.Record
	if p.Unmatched != nil {
		unmatched = make(chan arrow.Record, defaultChannelBuffer)
		splitter.SetSecondary(unmatched)
	}

	g.Go(func() error {
		if err := p.Source.Run(srcCtx, in); err != nil {
			return fmt.Errorf("source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer close(matched)
		if unmatched != nil {
			defer close(unmatched)
		}
		err := runFilter(filterCtx, filter, in, matched)
		if err != nil {
			cancel()
		}
		// The source closes in once it stops.
		drain(in)
		return err
	})
	g.Go(func() error { return runSink(sinkCtx, cancel, p.Sink, matched) })
	if unmatched != nil {
		g.Go(func() error { return runSink(unmatchedCtx, cancel, p.Unmatched, unmatched) })
	}

	err = g.Wait()

	stats = Stats{
		RowsIn:        srcCtx.Metrics.RowsProcessed.Load(),
		RowsMatched:   filterCtx.Metrics.RowsMatched.Load(),
		RowsUnmatched: filterCtx.Metrics.RowsUnmatched.Load(),
		Batches:       filterCtx.Metrics.BatchesProcessed.Load(),
		Elapsed:       time.Since(start),
	}
	if err != nil {
		logger.Error("pipeline failed", "error", err)
		return stats, err
	}
	logger.Info("pipeline finished",
		"rows_in", stats.RowsIn,
		"rows_matched", stats.RowsMatched,
		"rows_unmatched", stats.RowsUnmatched,
		"elapsed", stats.Elapsed)
	return stats, nil
}

// Stop triggers a graceful shutdown.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func runFilter(ctx *operator.Context, op operator.Operator, in <-chan arrow.Record, out chan<- arrow.Record) error {
	for batch := range in {
		outputs, err := op.ProcessBatch(batch)
		batch.Release()
		if err != nil {
			ctx.Metrics.Errors.Add(1)
			return fmt.Errorf("filter: %w", err)
		}
		if !emit(ctx, out, outputs) {
			return nil
		}
	}
	if ctx.Ctx.Err() != nil {
		// Interrupted: held batches do not cover the whole input.
		return nil
	}
	outputs, err := op.Flush()
	if err != nil {
		ctx.Metrics.Errors.Add(1)
		return fmt.Errorf("filter flush: %w", err)
	}
	emit(ctx, out, outputs)
	return nil
}

func runSink(ctx *operator.Context, cancel context.CancelFunc, sink operator.Sink, in <-chan arrow.Record) error {
	for batch := range in {
		err := sink.WriteBatch(batch)
		batch.Release()
		if err != nil {
			ctx.Metrics.Errors.Add(1)
			cancel()
			drain(in)
			return fmt.Errorf("sink %s: %w", ctx.OperatorName, err)
		}
		ctx.Metrics.BatchesProcessed.Add(1)
		ctx.Metrics.RowsProcessed.Add(batch.NumRows())
	}
	return nil
}

// emit sends recs on out and reports false when ctx was cancelled first.
// Unsent records are released.
func emit(ctx *operator.Context, out chan<- arrow.Record, recs []arrow.Record) bool {
	for i, rec := range recs {
		select {
		case out <- rec:
		case <-ctx.Done():
			for _, r := range recs[i:] {
				r.Release()
			}
			return false
		}
	}
	return true
}

func drain(ch <-chan arrow.Record) {
	for rec := range ch {
		rec.Release()
	}
}
