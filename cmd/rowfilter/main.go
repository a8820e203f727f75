// Command rowfilter runs filter pipelines and inspects filter criteria.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/cobra"

	"github.com/sandboxws/rowfilter/pkg/compiler"
	"github.com/sandboxws/rowfilter/pkg/connectors"
	"github.com/sandboxws/rowfilter/pkg/criteria"
	"github.com/sandboxws/rowfilter/pkg/engine"
	"github.com/sandboxws/rowfilter/pkg/expr"
	"github.com/sandboxws/rowfilter/pkg/metrics"
	"github.com/sandboxws/rowfilter/pkg/registry"
)

var rootCmd = &cobra.Command{
	Use:           "rowfilter",
	Short:         "Filter Arrow record streams by row criteria",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// filterCompiler backs the check and operators commands.
var filterCompiler = compiler.New(registry.Default())

func init() {
	rootCmd.AddCommand(newRunCmd(), newCheckCmd(), newOperatorsCmd(), newMigrateCmd())
}

// ---- run ----

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline described by a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), configPath, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "pipeline config file (YAML)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runPipeline(ctx context.Context, configPath string, stdout, stderr io.Writer) error {
	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	p, err := engine.Build(cfg, stdout)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		server := metrics.ServeMetrics(cfg.MetricsAddr)
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	stats, err := engine.RunWithGracefulShutdown(ctx, p, cfg.ShutdownTimeout)
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", cfg.Name, err)
	}
	fmt.Fprintf(stderr, "%s: %d rows in, %d matched, %d unmatched in %s\n",
		cfg.Name, stats.RowsIn, stats.RowsMatched, stats.RowsUnmatched, stats.Elapsed.Round(time.Millisecond))
	return nil
}

// ---- check ----

func newCheckCmd() *cobra.Command {
	var (
		where  []string
		match  string
		schema []string
		rows   int64
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Parse where shorthands and optionally compile them against a schema",
		Example: `  rowfilter check --where "qty > 3" --where "name LIKE 'a%'" --match any
  rowfilter check --where "LAST_N_ROWS(10)" --schema qty:int64 --rows 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(cmd.OutOrStdout(), where, match, schema, rows)
		},
	}
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "criterion shorthand, repeatable")
	cmd.Flags().StringVar(&match, "match", "all", "join criteria with all (AND) or any (OR)")
	cmd.Flags().StringSliceVar(&schema, "schema", nil, "columns as name:type to compile against")
	cmd.Flags().Int64Var(&rows, "rows", -1, "table row count, negative when unknown")
	_ = cmd.MarkFlagRequired("where")
	return cmd
}

func check(w io.Writer, where []string, match string, schemaSpec []string, rows int64) error {
	list, err := engine.LoadCriteria(engine.FilterConfig{Where: where, Match: match})
	if err != nil {
		return err
	}
	join := "AND"
	if !list.IsAnd {
		join = "OR"
	}
	for i, c := range list.Criteria {
		text, err := expr.Format(c)
		if err != nil {
			return fmt.Errorf("criterion %d: %w", i, err)
		}
		if i > 0 {
			fmt.Fprintf(w, "%s ", join)
		}
		fmt.Fprintf(w, "%s\n", text)
	}
	if len(schemaSpec) == 0 {
		return nil
	}

	schema, err := parseSchemaFlag(schemaSpec)
	if err != nil {
		return err
	}
	size := compiler.UnknownSize
	if rows >= 0 {
		size = compiler.KnownSize(uint64(rows))
	}
	res, err := filterCompiler.CompileAll(list, schema, size)
	if err != nil {
		return err
	}
	if split, ok := res.Split(); ok {
		fmt.Fprintf(w, "compiled to row ranges: matched %s, unmatched %s\n", split.Matched, split.Unmatched)
		return nil
	}
	fmt.Fprintln(w, "compiled to a row predicate")
	return nil
}

func parseSchemaFlag(specs []string) (*arrow.Schema, error) {
	fields := make([]connectors.FieldSpec, 0, len(specs))
	for _, s := range specs {
		name, typ, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("schema entry %q: want name:type", s)
		}
		fields = append(fields, connectors.FieldSpec{Name: name, Type: typ, Nullable: true})
	}
	return connectors.BuildSchema(fields)
}

// ---- operators ----

func newOperatorsCmd() *cobra.Command {
	var (
		typeName string
		target   string
	)
	cmd := &cobra.Command{
		Use:   "operators",
		Short: "List the operators offered for a column type or pseudo-column",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listOperators(cmd.OutOrStdout(), target, typeName)
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "string", "column type")
	cmd.Flags().StringVar(&target, "target", "column", "column, row_id or row_number")
	return cmd
}

func listOperators(w io.Writer, target, typeName string) error {
	var t criteria.Target
	var dt arrow.DataType
	switch target {
	case "column":
		var err error
		if dt, err = connectors.ParseType(typeName); err != nil {
			return err
		}
		t = criteria.Column(typeName)
	case "row_id":
		t = criteria.RowID()
	case "row_number":
		t = criteria.RowNumber()
	default:
		return fmt.Errorf("unknown target %q", target)
	}

	for _, d := range filterCompiler.Registry().OperatorsFor(t, dt) {
		missing := "false"
		if d.ReturnTrueForMissing {
			missing = "true"
		}
		fmt.Fprintf(w, "%-15s %-28s shape=%-8s missing=%s\n", d.ID, d.Label, d.Shape, missing)
	}
	return nil
}

// ---- migrate ----

func newMigrateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "migrate <criteria-file>",
		Short: "Rewrite a criteria document in the current format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := engine.LoadCriteriaFile(args[0])
			if err != nil {
				return err
			}
			data, err := criteria.Encode(list)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return os.WriteFile(output, append(data, '\n'), 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
