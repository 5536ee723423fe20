// Package spawn runs benchmark workers as child processes.
//
// The parent re-executes its own binary with the hidden worker command. The
// child reads a JSON [Payload] from stdin, runs one worker loop and writes its
// single report line to the inherited file descriptor [ReportFD]. A child that
// crashes writes nothing and is counted as lost by the coordinator.
package spawn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/torosent/mybench/internal/config"
	"github.com/torosent/mybench/internal/report"
	"github.com/torosent/mybench/internal/runner"
)

// WorkerCommand is the hidden subcommand a child process is started with.
const WorkerCommand = "worker"

// ReportFD is the descriptor a child writes its report to. It is the first
// entry of exec.Cmd.ExtraFiles.
const ReportFD = 3

// stopDelay bounds how long a cancelled child may take to report before it
// is killed.
const stopDelay = 5 * time.Second

// Payload is everything a child needs to run its worker.
type Payload struct {
	ID     int           `json:"id"`
	Config config.Config `json:"config"`
}

// ProcessSpawner starts one child process per worker.
type ProcessSpawner struct {
	Path   string    // executable to run
	Args   []string  // arguments passed to the executable
	Env    []string  // child environment; nil inherits the parent's
	Stderr io.Writer // child stderr; nil discards

	cfg    config.Config
	logger runner.Logger
	wg     sync.WaitGroup
}

// NewProcessSpawner prepares a spawner that re-executes the running binary.
func NewProcessSpawner(cfg *config.Config, logger runner.Logger) (*ProcessSpawner, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return &ProcessSpawner{
		Path:   path,
		Args:   []string{WorkerCommand},
		Stderr: os.Stderr,
		cfg:    *cfg,
		logger: logger,
	}, nil
}

func (s *ProcessSpawner) Spawn(ctx context.Context, id int, ch runner.Channel) error {
	if ch.File == nil {
		return errors.New("reporting channel has no file")
	}
	payload, err := json.Marshal(Payload{ID: id, Config: s.cfg})
	if err != nil {
		return fmt.Errorf("encode worker payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.Path, s.Args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = stopDelay
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = s.Stderr
	cmd.Env = s.Env
	cmd.ExtraFiles = []*os.File{ch.File}

	if err := cmd.Start(); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := cmd.Wait(); err != nil && s.logger != nil {
			s.logger.Logf("worker #%d exited: %v", id, err)
		}
	}()
	return nil
}

func (s *ProcessSpawner) Wait() {
	s.wg.Wait()
}

// ReadPayload decodes the payload a child receives on stdin.
func ReadPayload(r io.Reader) (Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("decode worker payload: %w", err)
	}
	return p, nil
}

// Serve runs the child's worker loop and writes the report line to out as
// its last act.
func Serve(ctx context.Context, p Payload, exec runner.Executor, out io.Writer, logger runner.Logger) error {
	res := runner.RunWorker(ctx, runner.WorkerOptionsFromConfig(&p.Config, exec))
	return runner.Deliver(report.NewLineWriter(out), logger, p.ID, res)
}
