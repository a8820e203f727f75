// Package metrics provides Prometheus instrumentation for rowfilter pipelines.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RowsMatched counts rows kept by each filter operator.
	RowsMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowfilter_rows_matched_total",
		Help: "Total number of rows matching the filter criteria",
	}, []string{"operator_id", "operator_name"})

	// RowsUnmatched counts rows rejected by each filter operator.
	RowsUnmatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowfilter_rows_unmatched_total",
		Help: "Total number of rows not matching the filter criteria",
	}, []string{"operator_id", "operator_name"})

	// BatchLatency tracks per-batch filtering latency.
	BatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rowfilter_batch_latency_seconds",
		Help:    "Latency of batch filtering in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"operator_id", "operator_name", "path"})

	// CompileErrors counts criteria compilation failures by error kind.
	CompileErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowfilter_compile_errors_total",
		Help: "Total number of criteria compilation failures",
	}, []string{"operator_id", "kind"})
)

// Path labels for BatchLatency.
const (
	PathRange     = "range"
	PathPredicate = "predicate"
)

// ServeMetrics starts an HTTP server on the given address to serve
// Prometheus metrics at /metrics.
func ServeMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return server
}
