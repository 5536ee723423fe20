package runner

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/torosent/mybench/internal/report"
)

// Channel is the write side of the reporting channel handed to each worker.
type Channel struct {
	File   *os.File           // raw write end, inherited by worker processes
	Writer *report.LineWriter // serialised writer for in-process workers
}

// Spawner starts workers. Each started worker writes exactly one message to
// the channel before it finishes.
type Spawner interface {
	Spawn(ctx context.Context, id int, ch Channel) error
	// Wait blocks until every started worker has finished.
	Wait()
}

// GoroutineSpawner runs each worker on its own goroutine. A panicking worker
// is recovered and writes nothing, so the coordinator sees it as lost.
type GoroutineSpawner struct {
	work   WorkFunc
	logger Logger
	wg     sync.WaitGroup
}

// NewGoroutineSpawner creates a spawner running work for every worker.
func NewGoroutineSpawner(work WorkFunc, logger Logger) *GoroutineSpawner {
	if logger == nil {
		logger = nopLogger{}
	}
	return &GoroutineSpawner{work: work, logger: logger}
}

func (s *GoroutineSpawner) Spawn(ctx context.Context, id int, ch Channel) error {
	if s.work == nil {
		return errors.New("no work function configured")
	}
	if ch.Writer == nil {
		return errors.New("reporting channel has no writer")
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Logf("worker #%d died: %v", id, rec)
			}
		}()
		res := s.work(ctx, id)
		if err := Deliver(ch.Writer, s.logger, id, res); err != nil {
			s.logger.Logf("worker #%d report failed: %v", id, err)
		}
	}()
	return nil
}

func (s *GoroutineSpawner) Wait() {
	s.wg.Wait()
}
