// Package history keeps a JSON-lines log of finished benchmark runs.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"
	"github.com/tidwall/gjson"

	"github.com/torosent/mybench/internal/metrics"
	"github.com/torosent/mybench/internal/threshold"
)

const (
	lockRetry     = 50 * time.Millisecond
	maxRecordSize = 1 << 20
)

// Record is one line of the history file.
type Record struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	Target     string             `json:"target"`
	Method     string             `json:"method"`
	Clients    int                `json:"clients"`
	Time       int                `json:"time"`
	Round      int                `json:"round,omitempty"`
	Isolation  string             `json:"isolation"`
	Report     metrics.Report     `json:"report"`
	Thresholds []threshold.Result `json:"thresholds,omitempty"`
	Passed     bool               `json:"passed"`
}

// Summary is the subset of a record shown by the history listing.
type Summary struct {
	RunID          string
	StartedAt      time.Time
	Target         string
	Success        int64
	Failed         int64
	RequestsPerSec int64
	Lost           int64
	Passed         bool
}

// NewRunID returns a lexically sortable identifier stamped with t.
func NewRunID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// RunTime recovers the timestamp embedded in a run ID.
func RunTime(id string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run id: %w", err)
	}
	return ulid.Time(parsed.Time()), nil
}

func lockPath(path string) string {
	return path + ".lock"
}

// Append writes rec as a single line at the end of path. Concurrent runs
// sharing the file are serialized through an advisory lock.
func Append(ctx context.Context, path string, rec Record) error {
	if path == "" {
		return errors.New("history file path is empty")
	}
	if rec.RunID == "" {
		rec.RunID = NewRunID(rec.StartedAt)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	lock := flock.New(lockPath(path))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock history file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock history file: %s is busy", path)
	}
	defer lock.Unlock()

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	if _, err := file.Write(line); err != nil {
		file.Close()
		return fmt.Errorf("write history file: %w", err)
	}
	return file.Close()
}

// Tail returns summaries of the last n records in path, oldest first.
// n <= 0 returns every record. Lines that are not valid JSON are skipped.
func Tail(ctx context.Context, path string, n int) ([]Summary, error) {
	lock := flock.New(lockPath(path))
	locked, err := lock.TryRLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("lock history file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock history file: %s is busy", path)
	}
	defer lock.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	return readSummaries(file, n)
}

func readSummaries(r io.Reader, n int) ([]Summary, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	var out []Summary
	for scanner.Scan() {
		line := scanner.Bytes()
		if !gjson.ValidBytes(line) {
			continue
		}
		out = append(out, summarize(line))
		if n > 0 && len(out) > n {
			out = out[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return out, nil
}

func summarize(line []byte) Summary {
	fields := gjson.GetManyBytes(line,
		"run_id",
		"started_at",
		"target",
		"report.total_success",
		"report.total_failed",
		"report.requests_per_sec",
		"report.lost",
		"passed",
	)
	s := Summary{
		RunID:          fields[0].String(),
		Target:         fields[2].String(),
		Success:        fields[3].Int(),
		Failed:         fields[4].Int(),
		RequestsPerSec: fields[5].Int(),
		Lost:           fields[6].Int(),
		Passed:         fields[7].Bool(),
	}
	if t, err := time.Parse(time.RFC3339Nano, fields[1].String()); err == nil {
		s.StartedAt = t
	} else if t, err := RunTime(s.RunID); err == nil {
		s.StartedAt = t
	}
	return s
}

// Print writes one line per summary.
func Print(w io.Writer, summaries []Summary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No recorded runs.")
		return
	}
	for _, s := range summaries {
		status := "PASS"
		if !s.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %s  %-4s  %6d qps  %d ok / %d failed",
			s.RunID, s.StartedAt.Local().Format(time.DateTime), status, s.RequestsPerSec, s.Success, s.Failed)
		if s.Lost > 0 {
			fmt.Fprintf(w, "  (%d lost)", s.Lost)
		}
		fmt.Fprintf(w, "  %s\n", s.Target)
	}
}
