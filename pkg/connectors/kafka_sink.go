package connectors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sandboxws/rowfilter/pkg/operator"
)

// KafkaSinkOptions configures a KafkaSink.
type KafkaSinkOptions struct {
	Topic            string
	BootstrapServers []string
	// KeyBy lists the columns whose values form the record key.
	KeyBy []string
}

// KafkaSink serializes Arrow RecordBatches as JSON and produces them to a Kafka topic.
type KafkaSink struct {
	opts   KafkaSinkOptions
	client *kgo.Client
}

// NewKafkaSink creates a Kafka sink connector.
func NewKafkaSink(opts KafkaSinkOptions) *KafkaSink {
	return &KafkaSink{opts: opts}
}

func (k *KafkaSink) Open(_ *operator.Context) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(k.opts.BootstrapServers...),
		kgo.DefaultProduceTopic(k.opts.Topic),
	)
	if err != nil {
		return fmt.Errorf("kafka sink: create client: %w", err)
	}
	k.client = client
	return nil
}

func (k *KafkaSink) WriteBatch(batch arrow.Record) error {
	records, err := encodeBatch(batch, k.opts.KeyBy)
	if err != nil {
		return fmt.Errorf("kafka sink: %w", err)
	}
	if err := k.client.ProduceSync(context.Background(), records...).FirstErr(); err != nil {
		return fmt.Errorf("kafka sink: produce: %w", err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	if k.client != nil {
		k.client.Close()
	}
	return nil
}

// encodeBatch converts every row of batch to a Kafka record.
func encodeBatch(batch arrow.Record, keyBy []string) ([]*kgo.Record, error) {
	records := make([]*kgo.Record, 0, batch.NumRows())
	for row := 0; row < int(batch.NumRows()); row++ {
		record := rowToJSON(batch, row)
		value, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("marshal row %d: %w", row, err)
		}

		rec := &kgo.Record{Value: value}
		if len(keyBy) > 0 {
			keyParts := make(map[string]any, len(keyBy))
			for _, keyCol := range keyBy {
				if v, ok := record[keyCol]; ok {
					keyParts[keyCol] = v
				}
			}
			rec.Key, err = json.Marshal(keyParts)
			if err != nil {
				return nil, fmt.Errorf("marshal key of row %d: %w", row, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
