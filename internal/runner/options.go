package runner

import (
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/mybench/internal/config"
)

// WorkerOptions configure a single worker loop.
type WorkerOptions struct {
	ID             int
	Executor       Executor      // handle factory (required)
	BenchTime      time.Duration // per-worker deadline, armed after the stagger delay
	Rounds         int           // maximum Perform calls (0 means unbounded)
	KeepAlive      bool          // keep the handle across successful requests
	RatePerSecond  int           // requests per second pacing (0 means unlimited)
	Stagger        time.Duration // delay before the deadline is armed
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

// WorkerOptionsFromConfig maps the run configuration onto a worker.
func WorkerOptionsFromConfig(cfg *config.Config, exec Executor) WorkerOptions {
	return WorkerOptions{
		Executor:      exec,
		BenchTime:     cfg.BenchTime(),
		Rounds:        cfg.Round,
		KeepAlive:     cfg.KeepAlive,
		RatePerSecond: cfg.Rate,
		Stagger:       cfg.Stagger,
	}
}

// OptionsFromConfig maps the run configuration onto the coordinator.
func OptionsFromConfig(cfg *config.Config, spawner Spawner, logger Logger) Options {
	return Options{
		Workers:   cfg.Clients,
		BenchTime: cfg.BenchTime(),
		Stagger:   cfg.Stagger,
		Timeout:   cfg.Timeout,
		Grace:     cfg.Grace,
		Spawner:   spawner,
		Logger:    logger,
	}
}

func (o *WorkerOptions) normalize() {
	if o.Rounds < 0 {
		o.Rounds = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Stagger < 0 {
		o.Stagger = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// A burst of one keeps a single worker evenly spaced.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// Options configure the Runner.
type Options struct {
	Workers   int           // number of workers to spawn
	BenchTime time.Duration // configured run length, also the rate divisor
	Stagger   time.Duration
	Timeout   time.Duration // per-request timeout
	Grace     time.Duration // slack on top of the expected finish time
	Spawner   Spawner       // starts workers (required)
	Logger    Logger
	// PipeFactory creates the reporting channel; optional injection for tests.
	PipeFactory func() (r *os.File, w *os.File, err error)
}

func (o *Options) normalize() {
	if o.Workers < 0 {
		o.Workers = 0
	}
	if o.Grace < 0 {
		o.Grace = 0
	}
	if o.PipeFactory == nil {
		o.PipeFactory = os.Pipe
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
}

// collectTimeout bounds how long the coordinator waits for reports. A worker
// sleeps Stagger, runs BenchTime and may finish one request of up to Timeout.
func (o Options) collectTimeout() time.Duration {
	return o.Stagger + o.BenchTime + o.Timeout + o.Grace
}

type nopLogger struct{}

func (nopLogger) Logf(string, ...any) {}
