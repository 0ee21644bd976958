// Package app provides the shared entry point for the rjob binary.
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hi-liyan/rjob/internal/config"
	"github.com/hi-liyan/rjob/internal/executor"
	"github.com/hi-liyan/rjob/internal/history"
	"github.com/hi-liyan/rjob/internal/scheduler"
	"github.com/hi-liyan/rjob/internal/status"
	"github.com/hi-liyan/rjob/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the jobs file. If empty, the
	// working directory is searched for jobs.json, jobs.yaml, or jobs.yml.
	ConfigPath string

	// Version is injected at build time via ldflags.
	Version string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads and validates the jobs document, wires the optional history
// store, status server, and trace exporter, starts the scheduler, and
// blocks until the process receives a termination signal. The scheduler
// runs for the process lifetime; there is no graceful-shutdown API, only
// resource flushing on the way out.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := config.Discover(".")
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	doc, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(doc); err != nil {
		return err
	}

	// Bootstrap logger; rebuilt once the registry timezone is known so the
	// timezone fallback warning itself is still visible.
	logger := NewLogger(os.Stderr, params.LogLevel, time.UTC)

	registry, err := config.BuildRegistry(doc, logger)
	if err != nil {
		return err
	}

	// Every log record from here on carries a timezone-local timestamp.
	logger = NewLogger(os.Stderr, params.LogLevel, registry.Location())
	logger.Info("jobs loaded",
		"source", cfgPath,
		"jobs", registry.Len(),
		"enabled", registry.Enabled(),
		"timezone", registry.Timezone(),
	)

	if doc.Tracing.Endpoint != "" {
		shutdown, err := telemetry.Init(context.Background(), doc.Tracing.Endpoint, params.Version)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
		logger.Info("tracing enabled", "endpoint", doc.Tracing.Endpoint)
	}

	var store *history.Store
	if doc.History.Path != "" {
		store, err = history.Open(doc.History.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		logger.Info("firing history enabled", "path", doc.History.Path)
	}

	var server *status.Server
	if doc.Status.Bind != "" {
		var src status.HistorySource
		if store != nil {
			src = store
		}
		server, err = status.NewServer(status.Config{Bind: doc.Status.Bind}, registry, status.NewMetrics(), src, logger)
		if err != nil {
			return err
		}
	}

	execCfg := executor.Config{Logger: logger}
	if server != nil {
		execCfg.Metrics = server.Metrics()
	}
	if store != nil {
		execCfg.Recorder = storeRecorder{store: store}
	}
	exec := executor.New(execCfg)

	sched := scheduler.New(registry, exec, logger,
		scheduler.WithSingleFlight(doc.SingleFlight),
	)

	if server != nil {
		if err := server.Start(); err != nil {
			return err
		}
	}
	if err := sched.Start(); err != nil {
		return err
	}

	// Block for the process lifetime.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	logger.Info("signal received, exiting", "signal", received.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = sched.Stop(ctx)
	if server != nil {
		_ = server.Stop(ctx)
	}
	return nil
}

// storeRecorder adapts the history store to executor.Recorder.
type storeRecorder struct {
	store *history.Store
}

func (r storeRecorder) Record(ctx context.Context, res executor.Result) error {
	return r.store.Record(ctx, history.Firing{
		ID:         res.FiringID,
		Job:        res.Job,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Attempts:   res.Attempts,
		Outcome:    string(res.Outcome),
		Status:     res.Status,
		Error:      res.Error,
	})
}
