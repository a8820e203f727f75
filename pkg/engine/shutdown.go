package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

const defaultShutdownTimeout = 30 * time.Second

// RunWithGracefulShutdown runs p until its source is exhausted, ctx is
// cancelled or SIGINT/SIGTERM arrives. After a signal the pipeline stops
// reading and drains in-flight batches to the sinks. If that takes longer
// than timeout the run is abandoned and an error returned.
func RunWithGracefulShutdown(ctx context.Context, p *Pipeline, timeout time.Duration) (Stats, error) {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	type result struct {
		stats Stats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := p.Run(ctx)
		done <- result{stats, err}
	}()

	select {
	case res := <-done:
		return res.stats, res.err
	case <-sigCtx.Done():
	}

	slog.Info("stopping pipeline", "pipeline", p.Name, "cause", context.Cause(sigCtx), "timeout", timeout)
	p.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res.stats, res.err
	case <-timer.C:
		slog.Warn("pipeline did not drain in time", "pipeline", p.Name, "timeout", timeout)
		return Stats{}, fmt.Errorf("pipeline %s did not stop within %s", p.Name, timeout)
	}
}
