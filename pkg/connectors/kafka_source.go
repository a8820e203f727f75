package connectors

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sandboxws/rowfilter/pkg/operator"
)

// KafkaSourceOptions configures a KafkaSource.
type KafkaSourceOptions struct {
	Topic            string
	BootstrapServers []string
	ConsumerGroup    string
	// StartupMode is "earliest" (default) or "latest".
	StartupMode string
	BatchSize   int
}

// KafkaSource consumes JSON records from a Kafka topic and produces Arrow
// record batches. The stream is unbounded so its row count is never known.
type KafkaSource struct {
	opts   KafkaSourceOptions
	schema *arrow.Schema
	alloc  memory.Allocator
	client *kgo.Client
}

// NewKafkaSource creates a Kafka source connector.
func NewKafkaSource(schema *arrow.Schema, opts KafkaSourceOptions) *KafkaSource {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &KafkaSource{opts: opts, schema: schema}
}

func (k *KafkaSource) Open(ctx *operator.Context) error {
	k.alloc = ctx.Alloc

	opts := []kgo.Opt{
		kgo.SeedBrokers(k.opts.BootstrapServers...),
		kgo.ConsumeTopics(k.opts.Topic),
	}
	if k.opts.ConsumerGroup != "" {
		opts = append(opts, kgo.ConsumerGroup(k.opts.ConsumerGroup))
	}
	switch k.opts.StartupMode {
	case "latest-offset", "latest":
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	default:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("kafka source: create client: %w", err)
	}
	k.client = client
	return nil
}

func (k *KafkaSource) Schema() *arrow.Schema { return k.schema }

func (k *KafkaSource) NumRows() (uint64, bool) { return 0, false }

func (k *KafkaSource) Run(ctx *operator.Context, out chan<- arrow.Record) error {
	defer close(out)

	var buffer []map[string]any
	emit := func(rows []map[string]any) bool {
		batch := jsonRowsToRecord(k.alloc, k.schema, rows)
		select {
		case out <- batch:
			ctx.Metrics.BatchesProcessed.Add(1)
			ctx.Metrics.RowsProcessed.Add(int64(len(rows)))
			return true
		case <-ctx.Done():
			batch.Release()
			return false
		}
	}

	for {
		fetches := k.client.PollFetches(ctx.Ctx)
		if fetches.IsClientClosed() || ctx.Ctx.Err() != nil {
			return nil
		}
		for _, e := range fetches.Errors() {
			ctx.Logger.Error("kafka fetch error", "topic", e.Topic, "partition", e.Partition, "error", e.Err)
			ctx.Metrics.Errors.Add(1)
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			row, err := decodeJSONRow(rec.Value)
			if err != nil {
				ctx.Logger.Error("kafka json decode error", "offset", rec.Offset, "error", err)
				ctx.Metrics.Errors.Add(1)
				return
			}
			buffer = append(buffer, row)
		})

		for len(buffer) >= k.opts.BatchSize {
			chunk := buffer[:k.opts.BatchSize]
			buffer = buffer[k.opts.BatchSize:]
			if !emit(chunk) {
				return nil
			}
		}
		// Records are not held across polls.
		if len(buffer) > 0 {
			if !emit(buffer) {
				return nil
			}
			buffer = nil
		}
	}
}

func (k *KafkaSource) Close() error {
	if k.client != nil {
		k.client.Close()
	}
	return nil
}
