package output

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
)

// ProgressReporter shows how far into the run the benchmark is. Workers only
// report when they finish, so the line carries time, not counters. On a
// terminal the line is redrawn in place; anywhere else each update is its
// own line.
type ProgressReporter struct {
	total    time.Duration
	inline   bool
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
	now      func() time.Time
}

// NewProgressReporter creates a reporter for a run expected to last total,
// updating at the given interval.
func NewProgressReporter(total, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		total:    total,
		inline:   isTerminal(writer),
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    time.Now(),
		now:      time.Now,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return
	}
	go p.run()
}

// Stop halts progress updates and ends the line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		if p.inline {
			fmt.Fprintln(p.writer)
		}
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			line := p.line(p.now().Sub(p.start))
			if p.inline {
				fmt.Fprint(p.writer, "\r"+line)
			} else {
				fmt.Fprintln(p.writer, line)
			}
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line(elapsed time.Duration) string {
	elapsed = elapsed.Truncate(time.Second)
	if p.total <= 0 {
		return fmt.Sprintf("Running: %s", elapsed)
	}
	pct := float64(elapsed) / float64(p.total) * 100
	if pct > 100 {
		return fmt.Sprintf("Running: %s / %s | waiting for workers", elapsed, p.total)
	}
	return fmt.Sprintf("Running: %s / %s (%.0f%%)", elapsed, p.total, pct)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
