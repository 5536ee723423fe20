package main

import (
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/mybench/internal/spawn"
	"github.com/torosent/mybench/internal/tracing"
)

// runWorker is the entry point of a child started by spawn.ProcessSpawner.
func runWorker(ctx context.Context, stdin io.Reader, stderr io.Writer) int {
	logger := newStderrLogger(stderr)
	if err := serveWorker(ctx, stdin, logger); err != nil {
		logger.Logf("worker failed: %v", err)
		return 1
	}
	return 0
}

func serveWorker(ctx context.Context, stdin io.Reader, logger *stderrLogger) error {
	p, err := spawn.ReadPayload(stdin)
	if err != nil {
		return err
	}

	out := os.NewFile(uintptr(spawn.ReportFD), "report")
	if out == nil {
		return errors.New("report descriptor is not open")
	}
	defer out.Close()

	tp, err := tracing.Init(ctx, p.Config.Tracing, attribute.Int("mybench.worker", p.ID))
	if err != nil {
		return err
	}
	defer shutdownTracing(tp, logger)

	exec, err := newExecutor(&p.Config, tp, logger)
	if err != nil {
		return err
	}
	return spawn.Serve(ctx, p, exec, out, logger)
}
