package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/mybench/internal/report"
)

// RunWorker executes requests until the deadline passes, the round budget is
// spent or ctx is cancelled, and returns the worker's counters.
//
// The deadline is armed after the stagger delay and only checked between
// requests: a request in flight when it expires runs to completion and is
// counted. Failing to open a handle counts as a failure but does not consume a
// round.
func RunWorker(ctx context.Context, opt WorkerOptions) report.Result {
	opt.normalize()

	var res report.Result
	if opt.Executor == nil {
		return res
	}
	if !sleepContext(ctx, opt.Stagger) {
		return res
	}

	deadline := time.Now().Add(opt.BenchTime)
	limiter := opt.LimiterFactory(opt.RatePerSecond)
	reqCtx := context.WithoutCancel(ctx)

	var (
		handle    Handle
		performed int
	)
	defer func() {
		if handle != nil {
			_ = handle.Release()
		}
	}()

	for {
		if !time.Now().Before(deadline) || ctx.Err() != nil {
			break
		}
		if opt.Rounds > 0 && performed >= opt.Rounds {
			break
		}

		if handle == nil {
			h, err := opt.Executor.Open(reqCtx)
			if err != nil {
				res.Failed++
				continue
			}
			handle = h
		}

		if err := waitTurn(ctx, limiter, deadline); err != nil {
			break
		}

		performed++
		n, err := handle.Perform(reqCtx)
		if err != nil {
			res.Failed++
			_ = handle.Release()
			handle = nil
			continue
		}
		res.Success++
		if n > 0 {
			res.Bytes += n
		}
		if !opt.KeepAlive {
			_ = handle.Release()
			handle = nil
		}
	}

	return res
}

// WorkFunc runs one worker and returns its counters.
type WorkFunc func(ctx context.Context, id int) report.Result

// Worker returns a WorkFunc running RunWorker with base and the given id.
func Worker(base WorkerOptions) WorkFunc {
	return func(ctx context.Context, id int) report.Result {
		opt := base
		opt.ID = id
		return RunWorker(ctx, opt)
	}
}

// Deliver logs a finished worker and writes its result to the reporting
// channel. It is the last thing a worker does.
func Deliver(w *report.LineWriter, logger Logger, id int, res report.Result) error {
	if logger != nil {
		logger.Logf("worker #%d - %d %d", id, res.Success, res.Failed)
	}
	return w.Write(res)
}

func waitTurn(ctx context.Context, limiter *rate.Limiter, deadline time.Time) error {
	if limiter == nil || limiter.Limit() == rate.Inf {
		return nil
	}
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	return limiter.Wait(waitCtx)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
