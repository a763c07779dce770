package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jpokornyiii/ntcore-client/internal/cli/output"
	"github.com/jpokornyiii/ntcore-client/internal/logger"
	"github.com/jpokornyiii/ntcore-client/internal/metrics"
	"github.com/jpokornyiii/ntcore-client/pkg/client"
	"github.com/jpokornyiii/ntcore-client/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// loadConfig resolves the effective config: the named file (or the default
// XDG path if --config wasn't given), with --server/--port flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if flagServer != "" {
		cfg.ServerAddress = flagServer
	}
	if flagPort != 0 {
		cfg.ServerPort = flagPort
	}

	if flagVerbose {
		cfg.Logging.Level = "DEBUG"
	}

	return cfg, nil
}

// connectAndWait builds a Client from the effective config, starts it, and
// blocks until the session reaches Ready, ctx is cancelled, or timeout
// elapses (whichever first).
func connectAndWait(ctx context.Context, cfg *config.Config, cb client.Callbacks, timeout time.Duration) (*client.Client, error) {
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	ready := make(chan struct{})
	var readyOnce sync.Once

	userChanged := cb.ConnectionStateChanged
	cb.ConnectionStateChanged = func(s client.State) {
		if s == client.Ready {
			readyOnce.Do(func() { close(ready) })
		}
		if userChanged != nil {
			userChanged(s)
		}
	}

	c := client.New(cfg, cb, maybeStartMetrics(cfg))
	c.Connect(ctx)

	select {
	case <-ready:
		return c, nil
	case <-time.After(timeout):
		c.Close()
		return nil, fmt.Errorf("timed out waiting for connection to %s:%d", cfg.ServerAddress, cfg.ServerPort)
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
}

// maybeStartMetrics builds the client's Prometheus collectors and, if
// enabled, serves them at /metrics on cfg.Metrics.Port for an external
// scraper; returns nil when metrics are disabled.
func maybeStartMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", logger.Err(err))
		}
	}()

	return m
}

// newPrinter builds an output.Printer honoring --output and --no-color.
func newPrinter() (*output.Printer, error) {
	format, err := output.ParseFormat(flagOutput)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, format, !flagNoColor), nil
}
