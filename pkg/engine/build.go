package engine

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/sandboxws/rowfilter/pkg/connectors"
	"github.com/sandboxws/rowfilter/pkg/operator"
	"github.com/sandboxws/rowfilter/pkg/operators"
)

// Build assembles a Pipeline from a validated config. Console sinks write
// to stdout.
func Build(cfg *Config, stdout io.Writer) (*Pipeline, error) {
	schema, err := connectors.BuildSchema(cfg.Source.Schema)
	if err != nil {
		return nil, fmt.Errorf("source.schema: %w", err)
	}
	list, err := LoadCriteria(cfg.Filter)
	if err != nil {
		return nil, err
	}

	src, err := buildSource(cfg.Source, schema)
	if err != nil {
		return nil, err
	}
	sink, err := buildSink(cfg.Sink, "matched", stdout)
	if err != nil {
		return nil, err
	}
	var unmatched operator.Sink
	if cfg.Unmatched.Type != "" {
		if unmatched, err = buildSink(cfg.Unmatched, "unmatched", stdout); err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		Name:   cfg.Name,
		Source: src,
		Filter: operators.Config{
			Criteria:        list,
			KeyColumn:       cfg.Filter.KeyColumn,
			DeferUntilSized: cfg.Filter.DeferUntilSized,
		},
		Invert:    cfg.Filter.Invert,
		Sink:      sink,
		Unmatched: unmatched,
	}, nil
}

func buildSource(cfg SourceConfig, schema *arrow.Schema) (operator.Source, error) {
	switch cfg.Type {
	case "generator":
		return connectors.NewGenerator(schema, connectors.GeneratorOptions{
			RowsPerSecond: cfg.RowsPerSecond,
			MaxRows:       cfg.MaxRows,
			BatchSize:     cfg.BatchSize,
			NullEvery:     cfg.NullEvery,
		}), nil
	case "csv":
		return connectors.NewCSVSource(cfg.Path, schema, cfg.BatchSize), nil
	case "kafka":
		return connectors.NewKafkaSource(schema, connectors.KafkaSourceOptions{
			Topic:            cfg.Topic,
			BootstrapServers: cfg.Brokers,
			ConsumerGroup:    cfg.ConsumerGroup,
			StartupMode:      cfg.StartupMode,
			BatchSize:        cfg.BatchSize,
		}), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}

func buildSink(cfg SinkConfig, title string, stdout io.Writer) (operator.Sink, error) {
	switch cfg.Type {
	case "console":
		c := connectors.NewConsole(cfg.MaxRows, title)
		if stdout != nil {
			c.SetWriter(stdout)
		}
		return c, nil
	case "csv":
		return connectors.NewCSVSink(cfg.Path), nil
	case "kafka":
		return connectors.NewKafkaSink(connectors.KafkaSinkOptions{
			Topic:            cfg.Topic,
			BootstrapServers: cfg.Brokers,
			KeyBy:            cfg.KeyBy,
		}), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}
