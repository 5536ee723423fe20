package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/torosent/mybench/internal/config"
	"github.com/torosent/mybench/internal/metrics"
	"github.com/torosent/mybench/internal/report"
)

// ErrChannelSetup is returned when the reporting channel cannot be created.
var ErrChannelSetup = config.ErrChannelSetup

// Runner spawns workers, collects one report per worker and aggregates them.
type Runner struct {
	opt Options
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Run executes the benchmark. The only error it returns is a channel setup
// failure; lost workers are recorded in the report.
func (r *Runner) Run(ctx context.Context) (metrics.Report, error) {
	if r.opt.Spawner == nil {
		return metrics.Report{}, errors.New("runner: spawner is required")
	}

	pr, pw, err := r.opt.PipeFactory()
	if err != nil {
		return metrics.Report{}, fmt.Errorf("%w: %v", ErrChannelSetup, err)
	}

	start := time.Now()
	ch := Channel{File: pw, Writer: report.NewLineWriter(pw)}

	spawned := 0
	for i := 0; i < r.opt.Workers; i++ {
		if ctx.Err() != nil {
			r.opt.Logger.Logf("run cancelled, %d of %d workers started", spawned, r.opt.Workers)
			break
		}
		if err := r.opt.Spawner.Spawn(ctx, i, ch); err != nil {
			r.opt.Logger.Logf("worker #%d spawn failed: %v", i, err)
			continue
		}
		spawned++
	}

	// Closing the write end once every worker has exited turns missing
	// reports into EOF instead of a timeout.
	go func() {
		r.opt.Spawner.Wait()
		_ = pw.Close()
	}()

	if err := pr.SetReadDeadline(time.Now().Add(r.opt.collectTimeout())); err != nil {
		r.opt.Logger.Logf("reporting channel has no read deadline: %v", err)
	}

	collected := report.Collect(pr, spawned)
	elapsed := time.Since(start)

	go drain(pr)

	agg := metrics.NewAggregator(spawned)
	for _, res := range collected.Results {
		if err := agg.Add(res); err != nil {
			r.opt.Logger.Logf("ignoring report: %v", err)
			break
		}
	}
	if collected.Err != nil {
		r.opt.Logger.Logf("some workers died: %v", collected.Err)
	}

	return agg.Report(r.opt.BenchTime, elapsed), nil
}

// drain consumes whatever late workers still write so they never block on a
// full pipe. It returns once every writer has closed its end.
func drain(pr *os.File) {
	_ = pr.SetReadDeadline(time.Time{})
	_, _ = io.Copy(io.Discard, pr)
	_ = pr.Close()
}
