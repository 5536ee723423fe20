package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/mybench/internal/config"
	"github.com/torosent/mybench/internal/history"
	"github.com/torosent/mybench/internal/httpclient"
	"github.com/torosent/mybench/internal/metrics"
	"github.com/torosent/mybench/internal/output"
	"github.com/torosent/mybench/internal/runner"
	"github.com/torosent/mybench/internal/spawn"
	"github.com/torosent/mybench/internal/threshold"
	"github.com/torosent/mybench/internal/tracing"
)

var version = "1.0.0"

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

type stderrLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func newStderrLogger(w io.Writer) *stderrLogger {
	if w == nil {
		w = os.Stderr
	}
	return &stderrLogger{w: w}
}

func (l *stderrLogger) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[mybench] "+format+"\n", args...)
}

func (l *stderrLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.Logf("request failed [%s]: %v", metrics.ErrorName(err), err)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(args) > 0 {
		switch args[0] {
		case spawn.WorkerCommand:
			return runWorker(ctx, os.Stdin, stderr)
		case historyCommand:
			return runHistory(ctx, args[1:], stdout, stderr)
		}
	}

	err := benchmark(ctx, args, stdout, stderr)
	code := config.ExitCode(err)
	switch {
	case err == nil, errors.Is(err, config.ErrHelpRequested), errors.Is(err, config.ErrVersionRequested):
	case errors.Is(err, config.ErrMissingURL):
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		config.Usage(stderr)
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

func benchmark(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().WithOutput(stdout).Load(args)
	if err != nil {
		if errors.Is(err, config.ErrVersionRequested) {
			fmt.Fprintf(stdout, "mybench %s\n", version)
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger := newStderrLogger(stderr)
	startedAt := time.Now()
	runID := history.NewRunID(startedAt)

	tp, err := tracing.Init(ctx, cfg.Tracing, attribute.String("mybench.run_id", runID))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing(tp, logger)

	spawner, err := newSpawner(cfg, tp, logger)
	if err != nil {
		return err
	}

	output.PrintBanner(stderr, version, cfg)

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(cfg.Stagger+cfg.BenchTime(), progressInterval, stderr)
		progress.Start()
	}
	rep, err := runner.New(runner.OptionsFromConfig(cfg, spawner, logger)).Run(ctx)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}
	rep.RunID = runID
	rep.Target = cfg.TargetURL
	rep.Method = cfg.Method

	results := threshold.NewEvaluator(thresholds).Evaluate(rep)

	switch {
	case cfg.JSONOutput:
		err = output.PrintJSONReport(stdout, rep, results)
	case cfg.YAMLOutput:
		err = output.PrintYAMLReport(stdout, rep, results)
	default:
		output.PrintReport(stdout, rep)
		output.PrintThresholds(stdout, results)
	}
	if err != nil {
		return err
	}

	passed := threshold.AllPassed(results)
	if cfg.HistoryFile != "" {
		rec := history.Record{
			RunID:      runID,
			StartedAt:  startedAt.UTC(),
			Target:     cfg.TargetURL,
			Method:     cfg.Method,
			Clients:    cfg.Clients,
			Time:       cfg.Time,
			Round:      cfg.Round,
			Isolation:  string(cfg.Isolation),
			Report:     rep,
			Thresholds: results,
			Passed:     passed,
		}
		// The run already happened; record it even after an interrupt.
		if err := history.Append(context.WithoutCancel(ctx), cfg.HistoryFile, rec); err != nil {
			logger.Logf("history not saved: %v", err)
		}
	}

	if !passed {
		return config.ErrThresholdsFailed
	}
	return nil
}

func newSpawner(cfg *config.Config, tp *tracing.Provider, logger *stderrLogger) (runner.Spawner, error) {
	if cfg.Isolation == config.IsolationProcess {
		// Children build their own executor; reject bad headers before any start.
		if _, err := httpclient.NewExecutor(cfg, nil); err != nil {
			return nil, err
		}
		ps, err := spawn.NewProcessSpawner(cfg, logger)
		if err != nil {
			return nil, err
		}
		return ps, nil
	}
	exec, err := newExecutor(cfg, tp, logger)
	if err != nil {
		return nil, err
	}
	work := runner.Worker(runner.WorkerOptionsFromConfig(cfg, exec))
	return runner.NewGoroutineSpawner(work, logger), nil
}

func newExecutor(cfg *config.Config, tp *tracing.Provider, logger *stderrLogger) (runner.Executor, error) {
	exec, err := httpclient.NewExecutor(cfg, tp)
	if err != nil {
		return nil, err
	}
	if cfg.LogErrors {
		return runner.WithLogging(exec, logger), nil
	}
	return exec, nil
}

func shutdownTracing(tp *tracing.Provider, logger runner.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		logger.Logf("tracing shutdown: %v", err)
	}
}
