package engine

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sandboxws/rowfilter/pkg/connectors"
)

// EnvPrefix prefixes environment overrides, e.g. ROWFILTER_SINK_TYPE.
const EnvPrefix = "ROWFILTER"

// Config describes one pipeline.
type Config struct {
	Name            string        `mapstructure:"name"`
	Source          SourceConfig  `mapstructure:"source"`
	Filter          FilterConfig  `mapstructure:"filter"`
	Sink            SinkConfig    `mapstructure:"sink"`
	Unmatched       SinkConfig    `mapstructure:"unmatched"`
	Log             LogConfig     `mapstructure:"log"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SourceConfig selects and configures the source connector.
type SourceConfig struct {
	Type      string                 `mapstructure:"type"`
	Schema    []connectors.FieldSpec `mapstructure:"schema"`
	BatchSize int                    `mapstructure:"batch_size"`

	// generator
	RowsPerSecond int64 `mapstructure:"rows_per_second"`
	MaxRows       int64 `mapstructure:"max_rows"`
	NullEvery     int64 `mapstructure:"null_every"`

	// csv
	Path string `mapstructure:"path"`

	// kafka
	Topic         string   `mapstructure:"topic"`
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	StartupMode   string   `mapstructure:"startup_mode"`
}

// FilterConfig holds the criteria and how they are applied.
type FilterConfig struct {
	// CriteriaFile is a persisted criteria document. It takes precedence
	// over Where.
	CriteriaFile string `mapstructure:"criteria_file"`
	// Where lists shorthands joined by Match.
	Where []string `mapstructure:"where"`
	// Match is "all" (AND, default) or "any" (OR).
	Match           string `mapstructure:"match"`
	KeyColumn       string `mapstructure:"key_column"`
	Invert          bool   `mapstructure:"invert"`
	DeferUntilSized bool   `mapstructure:"defer_until_sized"`
}

// SinkConfig selects and configures a sink connector. An empty Type
// disables the sink.
type SinkConfig struct {
	Type    string   `mapstructure:"type"`
	MaxRows int32    `mapstructure:"max_rows"`
	Path    string   `mapstructure:"path"`
	Topic   string   `mapstructure:"topic"`
	Brokers []string `mapstructure:"brokers"`
	KeyBy   []string `mapstructure:"key_by"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads a YAML pipeline config. Keys can be overridden from the
// environment: ROWFILTER_SINK_TYPE=console sets sink.type.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("name", "rowfilter")
	v.SetDefault("filter.match", "all")
	v.SetDefault("sink.type", "console")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("shutdown_timeout", "30s")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the process logger.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
}
