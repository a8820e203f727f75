// Package operator defines the interfaces implemented by the pipeline stages
// that move record batches between sources, filters and sinks.
package operator

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Operator transforms batches.
// The lifecycle is: Open -> ProcessBatch* -> Flush -> Close.
type Operator interface {
	// Open initializes the operator. Called once before any ProcessBatch.
	Open(ctx *Context) error

	// ProcessBatch processes one record batch and returns zero or more output batches.
	// Implementations MUST Retain any input batch data they hold beyond this call.
	// The caller is responsible for releasing the input batch after this returns.
	ProcessBatch(batch arrow.Record) ([]arrow.Record, error)

	// Flush is called once after the last input batch. Operators that held
	// batches back return them here.
	Flush() ([]arrow.Record, error)

	// Close releases resources. Called once during shutdown.
	Close() error
}

// Splitting is implemented by operators that also route the rows they reject
// to a second output.
type Splitting interface {
	Operator

	// SetSecondary sets the channel receiving the secondary output. Batches
	// sent on it are owned by the receiver.
	SetSecondary(out chan<- arrow.Record)
}

// Source produces batches.
// Sources run in their own goroutine and push batches to the output channel.
type Source interface {
	// Open initializes the source.
	Open(ctx *Context) error

	// Schema returns the schema of the batches the source emits.
	Schema() *arrow.Schema

	// Run starts producing batches to the output channel.
	// It should return when ctx.Done() is signaled or an error occurs.
	// The source MUST close the output channel when it stops.
	Run(ctx *Context, out chan<- arrow.Record) error

	// Close releases resources.
	Close() error
}

// Sized is implemented by sources that may know how many rows they will
// emit before emitting the first one. ok is false for unbounded sources.
type Sized interface {
	NumRows() (n uint64, ok bool)
}

// Sink consumes batches.
type Sink interface {
	// Open initializes the sink.
	Open(ctx *Context) error

	// WriteBatch writes a record batch to the external system.
	WriteBatch(batch arrow.Record) error

	// Close flushes and releases resources.
	Close() error
}
