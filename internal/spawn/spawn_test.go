package spawn_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/torosent/mybench/internal/config"
	"github.com/torosent/mybench/internal/report"
	"github.com/torosent/mybench/internal/runner"
	"github.com/torosent/mybench/internal/spawn"
)

const (
	childEnv = "MYBENCH_SPAWN_TEST_CHILD"
	dieEnv   = "MYBENCH_SPAWN_TEST_DIE"
)

// TestMain lets the test binary double as the worker process.
func TestMain(m *testing.M) {
	if os.Getenv(childEnv) == "1" {
		os.Exit(runChild())
	}
	os.Exit(m.Run())
}

func runChild() int {
	p, err := spawn.ReadPayload(os.Stdin)
	if err != nil {
		return 10
	}
	if p.ID == 1 && os.Getenv(dieEnv) == "1" {
		return 2
	}
	// Each child runs ID+1 rounds so totals identify who reported.
	p.Config.Round = p.ID + 1
	out := os.NewFile(spawn.ReportFD, "report")
	if out == nil {
		return 11
	}
	defer out.Close()
	if err := spawn.Serve(context.Background(), p, fixedExecutor{bytes: 10}, out, nil); err != nil {
		return 12
	}
	return 0
}

type fixedExecutor struct{ bytes int64 }

func (f fixedExecutor) Open(context.Context) (runner.Handle, error) { return fixedHandle{bytes: f.bytes}, nil }

type fixedHandle struct{ bytes int64 }

func (h fixedHandle) Perform(context.Context) (int64, error) { return h.bytes, nil }
func (h fixedHandle) Release() error                         { return nil }

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.TargetURL = "http://127.0.0.1:1"
	cfg.Time = 10
	cfg.Stagger = 0
	cfg.Grace = time.Second
	return cfg
}

func newSpawner(t *testing.T, cfg *config.Config, extraEnv ...string) *spawn.ProcessSpawner {
	t.Helper()
	s, err := spawn.NewProcessSpawner(cfg, nil)
	if err != nil {
		t.Fatalf("NewProcessSpawner() error = %v", err)
	}
	s.Path = os.Args[0]
	s.Args = nil
	s.Env = append(append(os.Environ(), childEnv+"=1"), extraEnv...)
	s.Stderr = nil
	return s
}

func TestProcessSpawnerCollectsChildReports(t *testing.T) {
	cfg := testConfig()
	cfg.Clients = 3

	r := runner.New(runner.OptionsFromConfig(cfg, newSpawner(t, cfg), nil))
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rep.Reported != 3 || rep.Lost != 0 {
		t.Fatalf("reported/lost = %d/%d, want 3/0", rep.Reported, rep.Lost)
	}
	if rep.TotalSuccess != 6 || rep.TotalFailed != 0 || rep.TotalBytes != 60 {
		t.Errorf("totals = %d/%d/%d, want 6/0/60", rep.TotalSuccess, rep.TotalFailed, rep.TotalBytes)
	}
}

func TestProcessSpawnerCountsCrashedChildAsLost(t *testing.T) {
	cfg := testConfig()
	cfg.Clients = 3

	r := runner.New(runner.OptionsFromConfig(cfg, newSpawner(t, cfg, dieEnv+"=1"), nil))
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rep.Reported != 2 || rep.Lost != 1 {
		t.Fatalf("reported/lost = %d/%d, want 2/1", rep.Reported, rep.Lost)
	}
	if rep.TotalSuccess != 4 {
		t.Errorf("TotalSuccess = %d, want 1+3 from surviving children", rep.TotalSuccess)
	}
}

func TestProcessSpawnerStartFailure(t *testing.T) {
	cfg := testConfig()
	s := newSpawner(t, cfg)
	s.Path = "/nonexistent/mybench"

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe() error = %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	if err := s.Spawn(context.Background(), 0, runner.Channel{File: pw}); err == nil {
		t.Fatal("expected start failure")
	}
	s.Wait()
}

func TestSpawnRequiresFile(t *testing.T) {
	s := newSpawner(t, testConfig())
	if err := s.Spawn(context.Background(), 0, runner.Channel{}); err == nil {
		t.Fatal("expected error without a channel file")
	}
}

func TestReadPayloadRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.Headers = map[string]string{"X-Run": "1"}
	cfg.KeepAlive = true
	cfg.Timeout = 1500 * time.Millisecond

	var buf bytes.Buffer
	buf.WriteString(`{"id":4,"config":`)
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	buf.Write(data)
	buf.WriteString("}")

	p, err := spawn.ReadPayload(&buf)
	if err != nil {
		t.Fatalf("ReadPayload() error = %v", err)
	}
	if p.ID != 4 {
		t.Errorf("ID = %d, want 4", p.ID)
	}
	if p.Config.TargetURL != cfg.TargetURL || !p.Config.KeepAlive || p.Config.Timeout != cfg.Timeout {
		t.Errorf("Config = %+v", p.Config)
	}
	if p.Config.Headers["X-Run"] != "1" {
		t.Errorf("Headers = %v", p.Config.Headers)
	}
}

func TestReadPayloadRejectsGarbage(t *testing.T) {
	if _, err := spawn.ReadPayload(strings.NewReader("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestServeWritesOneLine(t *testing.T) {
	cfg := testConfig()
	cfg.Round = 3

	var out bytes.Buffer
	if err := spawn.Serve(context.Background(), spawn.Payload{ID: 0, Config: *cfg}, fixedExecutor{bytes: 5}, &out, nil); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if out.String() != "3 0 15\n" {
		t.Errorf("report line = %q, want %q", out.String(), "3 0 15\n")
	}
	if _, err := report.Parse(out.String()); err != nil {
		t.Errorf("Parse() error = %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestServeReportsWriteFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Round = 1
	if err := spawn.Serve(context.Background(), spawn.Payload{Config: *cfg}, fixedExecutor{}, failingWriter{}, nil); err == nil {
		t.Fatal("expected write error")
	}
}
