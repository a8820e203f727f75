package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateConfig checks the pipeline config for structural integrity.
func ValidateConfig(cfg *Config) error {
	var errs []error

	switch cfg.Source.Type {
	case "generator":
		if len(cfg.Source.Schema) == 0 {
			errs = append(errs, fmt.Errorf("source.schema is required for the generator"))
		}
	case "csv":
		if cfg.Source.Path == "" {
			errs = append(errs, fmt.Errorf("source.path is required for csv"))
		}
		if len(cfg.Source.Schema) == 0 {
			errs = append(errs, fmt.Errorf("source.schema is required for csv"))
		}
	case "kafka":
		if cfg.Source.Topic == "" || len(cfg.Source.Brokers) == 0 {
			errs = append(errs, fmt.Errorf("source.topic and source.brokers are required for kafka"))
		}
		if len(cfg.Source.Schema) == 0 {
			errs = append(errs, fmt.Errorf("source.schema is required for kafka"))
		}
	case "":
		errs = append(errs, fmt.Errorf("source.type is required"))
	default:
		errs = append(errs, fmt.Errorf("unknown source.type %q", cfg.Source.Type))
	}

	seen := make(map[string]bool, len(cfg.Source.Schema))
	for i, f := range cfg.Source.Schema {
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("source.schema[%d]: duplicate field %q", i, f.Name))
		}
		seen[f.Name] = true
	}

	switch strings.ToLower(cfg.Filter.Match) {
	case "", "all", "any":
	default:
		errs = append(errs, fmt.Errorf("filter.match must be all or any, got %q", cfg.Filter.Match))
	}
	if cfg.Filter.KeyColumn != "" && len(cfg.Source.Schema) > 0 && !seen[cfg.Filter.KeyColumn] {
		errs = append(errs, fmt.Errorf("filter.key_column %q is not in source.schema", cfg.Filter.KeyColumn))
	}

	if cfg.Sink.Type == "" {
		errs = append(errs, fmt.Errorf("sink.type is required"))
	} else if err := validateSink("sink", cfg.Sink); err != nil {
		errs = append(errs, err)
	}
	if cfg.Unmatched.Type != "" {
		if err := validateSink("unmatched", cfg.Unmatched); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateSink(key string, s SinkConfig) error {
	switch s.Type {
	case "console":
		return nil
	case "csv":
		if s.Path == "" {
			return fmt.Errorf("%s.path is required for csv", key)
		}
	case "kafka":
		if s.Topic == "" || len(s.Brokers) == 0 {
			return fmt.Errorf("%s.topic and %s.brokers are required for kafka", key, key)
		}
	default:
		return fmt.Errorf("unknown %s.type %q", key, s.Type)
	}
	return nil
}
