package metrics

import (
	"errors"
	"math"
	"math/bits"
	"time"

	"github.com/torosent/mybench/internal/report"
)

// ErrTooManyResults is returned when more results are added than workers were spawned.
var ErrTooManyResults = errors.New("more results than spawned workers")

// Aggregator sums worker results for a single run. It is owned by the
// coordinator and is not safe for concurrent use.
type Aggregator struct {
	workers  int
	reported int
	totals   report.Result
}

// Report is the aggregate outcome of a run.
type Report struct {
	RunID    string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
	Method   string `json:"method,omitempty" yaml:"method,omitempty"`
	Workers  int    `json:"workers" yaml:"workers"`
	Reported int    `json:"reported" yaml:"reported"`
	Lost     int    `json:"lost" yaml:"lost"`

	TotalSuccess int64 `json:"total_success" yaml:"total_success"`
	TotalFailed  int64 `json:"total_failed" yaml:"total_failed"`
	TotalBytes   int64 `json:"total_bytes" yaml:"total_bytes"`

	BenchTime time.Duration `json:"-" yaml:"-"`
	Elapsed   time.Duration `json:"-" yaml:"-"`

	// Rates are floored and divided by the configured bench time, not the
	// measured elapsed time.
	RequestsPerSec int64 `json:"requests_per_sec" yaml:"requests_per_sec"`
	BytesPerSec    int64 `json:"bytes_per_sec" yaml:"bytes_per_sec"`

	BenchTimeSeconds float64 `json:"bench_time_seconds" yaml:"bench_time_seconds"`
	ElapsedSeconds   float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
}

// TotalRequests returns succeeded plus failed requests.
func (r Report) TotalRequests() int64 {
	return r.TotalSuccess + r.TotalFailed
}

// FailureRate returns failed/total, or 0 when nothing ran.
func (r Report) FailureRate() float64 {
	total := r.TotalRequests()
	if total == 0 {
		return 0
	}
	return float64(r.TotalFailed) / float64(total)
}

// NewAggregator creates an aggregator expecting one result per spawned worker.
func NewAggregator(workers int) *Aggregator {
	if workers < 0 {
		workers = 0
	}
	return &Aggregator{workers: workers}
}

// Add folds one worker result into the totals.
func (a *Aggregator) Add(r report.Result) error {
	if a.reported >= a.workers {
		return ErrTooManyResults
	}
	a.reported++
	a.totals = a.totals.Add(r)
	return nil
}

// Totals returns the running sum.
func (a *Aggregator) Totals() report.Result {
	return a.totals
}

// Report computes the final aggregate. Workers that never reported are
// counted as lost and contribute nothing.
func (a *Aggregator) Report(benchTime, elapsed time.Duration) Report {
	return Report{
		Workers:          a.workers,
		Reported:         a.reported,
		Lost:             a.workers - a.reported,
		TotalSuccess:     a.totals.Success,
		TotalFailed:      a.totals.Failed,
		TotalBytes:       a.totals.Bytes,
		BenchTime:        benchTime,
		Elapsed:          elapsed,
		RequestsPerSec:   PerSecond(a.totals.Requests(), benchTime),
		BytesPerSec:      PerSecond(a.totals.Bytes, benchTime),
		BenchTimeSeconds: benchTime.Seconds(),
		ElapsedSeconds:   elapsed.Seconds(),
	}
}

// PerSecond returns floor(count / d) in units per second. It returns 0 for a
// non-positive duration or count.
func PerSecond(count int64, d time.Duration) int64 {
	if count <= 0 || d <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(count), uint64(time.Second))
	if hi >= uint64(d) {
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, uint64(d))
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}
